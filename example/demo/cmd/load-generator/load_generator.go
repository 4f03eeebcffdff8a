// Package main implements a load generator that drives order traffic through the datamapper
// repositories at a configurable rate, optionally exporting traces and metrics via OpenTelemetry.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/AntonStoeckl/datamapper-go/datamapper"
	"github.com/AntonStoeckl/datamapper-go/datamapper/pgengine"
	"github.com/AntonStoeckl/datamapper-go/example/shop"
)

const (
	scenarioPlacement  = "placement"
	scenarioFulfilment = "fulfilment"
	scenarioCleanup    = "cleanup"
	scenarioCount      = 3

	scenarioTimeout = 5 * time.Second
	statsInterval   = 10 * time.Second
	cleanupBatch    = 10
	maxTotalCents   = 50_000
)

// LoadGenerator runs one scenario per tick. Each scenario is its own unit of work with a fresh
// Session, so concurrent scenarios never share tracked entities.
type LoadGenerator struct {
	storage *pgengine.Storage
	config  Config
	obs     *Observability

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	requestCount int64
	errorCount   int64
	startTime    time.Time
	mu           sync.RWMutex
}

// NewLoadGenerator creates a LoadGenerator issuing its scenarios against storage.
func NewLoadGenerator(storage *pgengine.Storage, config Config, obs *Observability) *LoadGenerator {
	return &LoadGenerator{
		storage:  storage,
		config:   config,
		obs:      obs,
		stopChan: make(chan struct{}),
	}
}

// Start generates load until ctx is canceled or Stop is called.
func (lg *LoadGenerator) Start(ctx context.Context) error {
	lg.mu.Lock()
	lg.startTime = time.Now()
	lg.mu.Unlock()

	ticker := time.NewTicker(time.Second / time.Duration(lg.config.Rate))
	defer ticker.Stop()

	lg.wg.Add(1)
	go lg.statsReporter(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-lg.stopChan:
			return nil
		case <-ticker.C:
			lg.wg.Add(1)
			go lg.executeScenario(ctx)
		}
	}
}

// Stop waits for running scenarios and logs the final statistics.
func (lg *LoadGenerator) Stop(ctx context.Context) error {
	lg.stopOnce.Do(func() { close(lg.stopChan) })

	done := make(chan struct{})
	go func() {
		lg.wg.Wait()
		close(done)
	}()

	defer lg.logStats("Final stats")

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.New("shutdown timeout exceeded")
	}
}

func (lg *LoadGenerator) executeScenario(ctx context.Context) {
	defer lg.wg.Done()

	opCtx, cancel := context.WithTimeout(ctx, scenarioTimeout)
	defer cancel()

	scenario := lg.selectScenario()

	var err error
	switch scenario {
	case scenarioPlacement:
		err = lg.runPlacementScenario(opCtx)
	case scenarioFulfilment:
		err = pgengine.RetryOnSerializationFailure(opCtx, lg.runFulfilmentScenario, pgengine.WithRetryMetrics(lg.obs.MetricsCollector))
	default:
		err = lg.runCleanupScenario(opCtx)
	}

	lg.mu.Lock()
	defer lg.mu.Unlock()

	lg.requestCount++
	if err != nil && !errors.Is(err, context.Canceled) {
		lg.errorCount++
		log.Printf("Scenario error (%s): %v", scenario, err)
	}
}

func (lg *LoadGenerator) selectScenario() string {
	r := rand.Intn(100) //nolint:gosec // load shape only

	switch {
	case r < lg.config.ScenarioWeights[0]:
		return scenarioPlacement
	case r < lg.config.ScenarioWeights[0]+lg.config.ScenarioWeights[1]:
		return scenarioFulfilment
	default:
		return scenarioCleanup
	}
}

func (lg *LoadGenerator) newOrderRepository() (*datamapper.Repository, error) {
	return datamapper.NewRepository(
		datamapper.NewSession(),
		shop.NewOrderMapper(),
		lg.storage,
		append(lg.obs.RepositoryOptions(), datamapper.WithIndexLookup())...,
	)
}

// runPlacementScenario inserts a new order, every fifth one as a priority order.
func (lg *LoadGenerator) runPlacementScenario(ctx context.Context) error {
	orders, err := lg.newOrderRepository()
	if err != nil {
		return err
	}

	total := rand.Int63n(maxTotalCents) + 100 //nolint:gosec // load shape only

	if rand.Intn(5) == 0 { //nolint:gosec // load shape only
		return orders.Save(ctx, shop.NewPriorityOrder(total, rand.Int63n(3)+1, time.Now())) //nolint:gosec // load shape only
	}

	return orders.Save(ctx, shop.NewOrder(total, time.Now()))
}

// runFulfilmentScenario advances the oldest open or paid order by one status inside a transaction.
func (lg *LoadGenerator) runFulfilmentScenario(ctx context.Context) error {
	orders, err := lg.newOrderRepository()
	if err != nil {
		return err
	}

	return lg.storage.RunInTransaction(ctx, func(ctx context.Context) error {
		entity, found, findErr := orders.FindOne(ctx, datamapper.NewCriteria().
			Where(datamapper.In(shop.FieldStatus, shop.StatusOpen, shop.StatusPaid)).
			OrderBy(shop.FieldCreatedAt, datamapper.Ascending))
		if findErr != nil || !found {
			return findErr
		}

		order, err := asOrder(entity)
		if err != nil {
			return err
		}

		if order.Status == shop.StatusOpen {
			order.Status = shop.StatusPaid
		} else {
			order.Status = shop.StatusShipped
		}

		return orders.Save(ctx, entity)
	})
}

// runCleanupScenario removes a batch of shipped orders.
func (lg *LoadGenerator) runCleanupScenario(ctx context.Context) error {
	orders, err := lg.newOrderRepository()
	if err != nil {
		return err
	}

	shipped, err := orders.FindAll(ctx, datamapper.NewCriteria().
		Where(datamapper.Eq(shop.FieldStatus, shop.StatusShipped)).
		WithLimit(cleanupBatch))
	if err != nil {
		return err
	}

	for _, entity := range shipped {
		if err = orders.Remove(ctx, entity); err != nil && !errors.Is(err, pgengine.ErrRowNotFound) {
			return err
		}
	}

	return nil
}

func asOrder(entity datamapper.Entity) (*shop.Order, error) {
	switch order := entity.(type) {
	case *shop.Order:
		return order, nil
	case *shop.PriorityOrder:
		return &order.Order, nil
	default:
		return nil, fmt.Errorf("%w: %T", shop.ErrUnexpectedEntity, entity)
	}
}

func (lg *LoadGenerator) statsReporter(ctx context.Context) {
	defer lg.wg.Done()

	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-lg.stopChan:
			return
		case <-ticker.C:
			lg.logStats("Stats")
		}
	}
}

func (lg *LoadGenerator) logStats(prefix string) {
	lg.mu.RLock()
	duration := time.Since(lg.startTime)
	requests := lg.requestCount
	failures := lg.errorCount
	lg.mu.RUnlock()

	if requests == 0 {
		return
	}

	log.Printf("%s: %d scenarios in %v (%.1f/s), %d errors (%.1f%%)",
		prefix,
		requests,
		duration.Truncate(time.Second),
		float64(requests)/duration.Seconds(),
		failures,
		float64(failures)/float64(requests)*100,
	)
}
