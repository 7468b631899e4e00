package cmd

import (
	"encoding/json"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPickUser(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	hot := 0
	for i := 0; i < 1000; i++ {
		id := pickUser(rng, "hotspot", 1000)
		require.True(t, id >= 1 && id <= 1000)
		if id <= 2 {
			hot++
		}
	}
	assert.Greater(t, hot, 850, "hotspot concentrates on users 1 and 2")

	for i := 0; i < 1000; i++ {
		id := pickUser(rng, "uniform", 5)
		require.True(t, id >= 1 && id <= 5)
	}
}

func TestBenchRequest(t *testing.T) {
	benchURL = "http://ledger:8080"
	rng := rand.New(rand.NewSource(7))

	req, err := benchRequest(rng, "uniform", 10)
	require.NoError(t, err)
	assert.Equal(t, "POST", req.Method)
	assert.True(t, strings.HasPrefix(req.URL.Path, "/api/v1/balances/"))
	assert.True(t, strings.HasSuffix(req.URL.Path, "/adjustments"))

	raw, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	var payload map[string]string
	require.NoError(t, json.Unmarshal(raw, &payload))
	assert.Equal(t, "deposit", payload["balance_type"])
	assert.NotEmpty(t, payload["amount"])

	req, err = benchRequest(rng, "distribute", 10)
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/distributions", req.URL.Path)
}

func TestBenchCounters(t *testing.T) {
	var c benchCounters
	for _, code := range []int{http.StatusOK, http.StatusCreated, http.StatusUnprocessableEntity, http.StatusInternalServerError} {
		c.observe(code)
	}

	res := c.results("hotspot", 2*time.Second)
	assert.Equal(t, uint64(4), res["total_requests"])
	assert.Equal(t, uint64(2), res["success"])
	assert.Equal(t, uint64(1), res["rejected"])
	assert.Equal(t, uint64(1), res["errors"])
	assert.Equal(t, 25.0, res["reject_rate_pct"])
	assert.Equal(t, 2.0, res["throughput_tps"])
}

func TestBenchRequest_TypeFollowsSign(t *testing.T) {
	benchURL = "http://ledger:8080"
	rng := rand.New(rand.NewSource(3))

	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		req, err := benchRequest(rng, "uniform", 10)
		require.NoError(t, err)

		raw, err := io.ReadAll(req.Body)
		require.NoError(t, err)
		var payload map[string]string
		require.NoError(t, json.Unmarshal(raw, &payload))

		if strings.HasPrefix(payload["amount"], "-") {
			assert.Equal(t, "admin_deduction", payload["type"], payload["amount"])
		} else {
			assert.Equal(t, "admin_funding", payload["type"], payload["amount"])
		}
		seen[payload["type"]] = true
	}
	assert.True(t, seen["admin_funding"] && seen["admin_deduction"], "both signs are generated")
}
