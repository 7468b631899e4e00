package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
)

var (
	benchURL      string
	benchWorkers  int
	benchDuration time.Duration
	benchWorkload string
	benchUsers    int
	benchOut      string
)

type benchCounters struct {
	total    uint64
	ok       uint64
	rejected uint64 // 422: overdraft rejection or plan bounds
	failed   uint64
}

func (c *benchCounters) observe(code int) {
	atomic.AddUint64(&c.total, 1)
	switch {
	case code >= 200 && code < 300:
		atomic.AddUint64(&c.ok, 1)
	case code == http.StatusUnprocessableEntity:
		atomic.AddUint64(&c.rejected, 1)
	default:
		atomic.AddUint64(&c.failed, 1)
	}
}

func (c *benchCounters) results(workload string, d time.Duration) map[string]interface{} {
	total := atomic.LoadUint64(&c.total)
	rejected := atomic.LoadUint64(&c.rejected)
	rejectRate := 0.0
	if total > 0 {
		rejectRate = float64(rejected) / float64(total) * 100
	}
	return map[string]interface{}{
		"workload":        workload,
		"duration_sec":    d.Seconds(),
		"total_requests":  total,
		"throughput_tps":  float64(total) / d.Seconds(),
		"success":         atomic.LoadUint64(&c.ok),
		"rejected":        rejected,
		"reject_rate_pct": rejectRate,
		"errors":          atomic.LoadUint64(&c.failed),
	}
}

// pickUser returns a user id in [1, users]. The hotspot workload sends 90% of
// traffic to users 1 and 2 so their balance rows see lock contention.
func pickUser(rng *rand.Rand, workload string, users int) int64 {
	if workload == "hotspot" && rng.Float32() < 0.90 {
		return int64(rng.Intn(2) + 1)
	}
	return int64(rng.Intn(users) + 1)
}

// benchRequest builds one request for the workload.
func benchRequest(rng *rand.Rand, workload string, users int) (*http.Request, error) {
	var path string
	var payload interface{}
	switch workload {
	case "distribute":
		path = "/api/v1/distributions"
	case "open":
		path = "/api/v1/positions"
		payload = map[string]interface{}{"user_id": pickUser(rng, workload, users), "plan_id": 1, "amount": "100"}
	default:
		amount := fmt.Sprintf("%d.%02d", rng.Intn(20)+1, rng.Intn(100))
		txType := "admin_funding"
		if rng.Intn(2) == 0 {
			amount = "-" + amount
			txType = "admin_deduction"
		}
		path = fmt.Sprintf("/api/v1/balances/%d/adjustments", pickUser(rng, workload, users))
		payload = map[string]interface{}{"balance_type": "deposit", "amount": amount, "type": txType, "description": "bench"}
	}

	var body []byte
	if payload != nil {
		var err error
		if body, err = json.Marshal(payload); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequest("POST", benchURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func benchWorker(wg *sync.WaitGroup, c *benchCounters, start time.Time, seed int64) {
	defer wg.Done()
	client := &http.Client{Timeout: 5 * time.Second}
	rng := rand.New(rand.NewSource(seed))

	for time.Since(start) < benchDuration {
		req, err := benchRequest(rng, benchWorkload, benchUsers)
		if err != nil {
			atomic.AddUint64(&c.failed, 1)
			continue
		}
		resp, err := client.Do(req)
		if err != nil {
			atomic.AddUint64(&c.failed, 1)
			continue
		}
		c.observe(resp.StatusCode)
		resp.Body.Close()
	}
}

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Drive concurrent load against a running API",
	Long:  "Workloads: uniform | hotspot (signed deposit adjustments), open (position opens), distribute (overlapping distribution runs).",
	RunE: func(cmd *cobra.Command, args []string) error {
		if benchWorkers <= 0 || benchUsers <= 0 {
			return fmt.Errorf("--workers and --users must be positive")
		}

		start := time.Now()
		var wg sync.WaitGroup
		var counters benchCounters
		wg.Add(benchWorkers)
		for i := 0; i < benchWorkers; i++ {
			go benchWorker(&wg, &counters, start, start.UnixNano()+int64(i))
		}
		wg.Wait()

		results := counters.results(benchWorkload, time.Since(start))
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			return err
		}

		if benchOut == "" {
			return nil
		}
		file, err := os.Create(benchOut)
		if err != nil {
			return err
		}
		defer file.Close()
		return json.NewEncoder(file).Encode(results)
	},
}

func init() {
	benchCmd.Flags().StringVar(&benchURL, "url", "http://localhost:8080", "API base URL")
	benchCmd.Flags().IntVar(&benchWorkers, "workers", 10, "Number of concurrent workers")
	benchCmd.Flags().DurationVar(&benchDuration, "duration", 30*time.Second, "Test duration")
	benchCmd.Flags().StringVar(&benchWorkload, "workload", "uniform", "Workload: uniform | hotspot | open | distribute")
	benchCmd.Flags().IntVar(&benchUsers, "users", 1000, "Seeded user count")
	benchCmd.Flags().StringVar(&benchOut, "out", "", "Also write results JSON to this file")
	rootCmd.AddCommand(benchCmd)
}
