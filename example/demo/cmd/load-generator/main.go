package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AntonStoeckl/datamapper-go/datamapper/pgengine"
	"github.com/AntonStoeckl/datamapper-go/example/config"
	"github.com/AntonStoeckl/datamapper-go/example/shop"
)

const (
	defaultRate            = 30
	defaultScenarioWeights = "50,40,10" // placement, fulfilment, cleanup
	shutdownTimeout        = 10 * time.Second
)

// Config holds the load generator flags.
type Config struct {
	Rate            int
	ScenarioWeights []int
}

func main() {
	configPath := flag.String("config", "", "path to the YAML configuration file")
	rate := flag.Int("rate", defaultRate, "scenarios per second")
	weights := flag.String("scenario-weights", defaultScenarioWeights, "comma-separated weights for placement,fulfilment,cleanup")
	flag.Parse()

	scenarioWeights, err := parseScenarioWeights(*weights)
	if err != nil {
		log.Fatalf("Invalid scenario weights %q: %v", *weights, err)
	}

	if *rate <= 0 {
		log.Fatalf("Invalid rate %d: must be positive", *rate)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	pool, err := pgxpool.New(ctx, cfg.Database.DSN)
	if err != nil {
		log.Fatalf("Failed to create pgx pool: %v", err)
	}
	defer pool.Close()

	if err = pool.Ping(ctx); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if _, err = pool.Exec(ctx, shop.CreateOrdersTableStatement(cfg.Table.Name)); err != nil {
		log.Fatalf("Failed to create schema: %v", err)
	}

	obs, err := NewObservability(ctx, cfg.Observability)
	if err != nil {
		log.Fatalf("Failed to set up observability: %v", err)
	}

	storageOptions := []pgengine.Option{pgengine.WithTransactionIsolation(sql.LevelRepeatableRead)}
	if obs.ContextualLogger != nil {
		storageOptions = append(storageOptions, pgengine.WithContextualLogger(obs.ContextualLogger))
	}
	if obs.MetricsCollector != nil {
		storageOptions = append(storageOptions, pgengine.WithMetrics(obs.MetricsCollector))
	}

	storage, err := pgengine.NewStorageFromPGXPool(
		pool,
		pgengine.Table{Name: cfg.Table.Name, PrimaryKey: cfg.Table.PrimaryKey, Columns: cfg.Table.Columns},
		storageOptions...,
	)
	if err != nil {
		log.Fatalf("Failed to create storage: %v", err)
	}

	loadGen := NewLoadGenerator(storage, Config{Rate: *rate, ScenarioWeights: scenarioWeights}, obs)

	errChan := make(chan error, 1)
	go func() {
		if startErr := loadGen.Start(ctx); startErr != nil {
			errChan <- fmt.Errorf("load generator failed: %w", startErr)
		}
	}()

	log.Printf("Load generator started: rate=%d scenarios/s, weights=%v, observability=%v",
		*rate, scenarioWeights, cfg.Observability.Enabled)

	select {
	case sig := <-sigChan:
		log.Printf("Received signal %v, shutting down...", sig)
	case err = <-errChan:
		log.Printf("Error occurred: %v", err)
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err = loadGen.Stop(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	if err = obs.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error shutting down observability: %v", err)
	}
}

func parseScenarioWeights(weightsStr string) ([]int, error) {
	parts := strings.Split(weightsStr, ",")
	if len(parts) != scenarioCount {
		return nil, fmt.Errorf("expected %d weights, got %d", scenarioCount, len(parts))
	}

	weights := make([]int, scenarioCount)
	total := 0

	for i, part := range parts {
		weight, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid weight %q: %w", part, err)
		}

		if weight < 0 || weight > 100 {
			return nil, fmt.Errorf("weight %d out of range [0, 100]", weight)
		}

		weights[i] = weight
		total += weight
	}

	if total != 100 {
		return nil, fmt.Errorf("weights must sum to 100, got %d", total)
	}

	return weights, nil
}
