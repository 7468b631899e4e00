package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/punchamoorthee/brokerledger/internal/api"
	"github.com/punchamoorthee/brokerledger/internal/config"
	"github.com/punchamoorthee/brokerledger/internal/logger"
	"github.com/punchamoorthee/brokerledger/internal/service"
	"github.com/punchamoorthee/brokerledger/internal/store"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger.Init(cfg.Env)
	defer logger.Sync()

	ledger, err := store.NewStore(cfg.DBSource)
	if err != nil {
		logger.Fatal("unable to connect to database", zap.Error(err))
	}
	defer ledger.Close()

	// Initialize Layers
	balances := service.NewBalanceService(ledger, cfg.OverdraftPolicy)
	positions := service.NewPositionService(ledger, balances)
	engine := service.NewDistributionEngine(ledger, balances, positions)
	handler := api.NewHandler(balances, positions, engine)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewRouter(handler),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("server starting", zap.String("port", cfg.Port), zap.String("overdraft_policy", string(cfg.OverdraftPolicy)))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
