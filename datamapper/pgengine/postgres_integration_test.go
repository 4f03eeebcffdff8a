package pgengine_test

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/datamapper-go/datamapper"
	"github.com/AntonStoeckl/datamapper-go/datamapper/pgengine"
	"github.com/AntonStoeckl/datamapper-go/example/shop"
	"github.com/AntonStoeckl/datamapper-go/testutil/config"
	"github.com/AntonStoeckl/datamapper-go/testutil/helper"
)

type adapterFixture struct {
	name    string
	arrange func(t *testing.T, table pgengine.Table, options ...pgengine.Option) (*pgengine.Storage, func(ctx context.Context, statement string) error)
}

func adapterFixtures() []adapterFixture {
	return []adapterFixture{
		{
			name: "pgx.pool",
			arrange: func(t *testing.T, table pgengine.Table, options ...pgengine.Option) (*pgengine.Storage, func(ctx context.Context, statement string) error) {
				pool := config.PostgresPGXPool(t)
				storage, err := pgengine.NewStorageFromPGXPool(pool, table, options...)
				require.NoError(t, err, "error in arranging pgx storage")

				return storage, func(ctx context.Context, statement string) error {
					_, execErr := pool.Exec(ctx, statement)
					return execErr
				}
			},
		},
		{
			name: "sql.DB",
			arrange: func(t *testing.T, table pgengine.Table, options ...pgengine.Option) (*pgengine.Storage, func(ctx context.Context, statement string) error) {
				db := config.PostgresSQLDB(t)
				storage, err := pgengine.NewStorageFromSQLDB(db, table, options...)
				require.NoError(t, err, "error in arranging sql.DB storage")

				return storage, func(ctx context.Context, statement string) error {
					_, execErr := db.ExecContext(ctx, statement)
					return execErr
				}
			},
		},
		{
			name: "sqlx.DB",
			arrange: func(t *testing.T, table pgengine.Table, options ...pgengine.Option) (*pgengine.Storage, func(ctx context.Context, statement string) error) {
				db := config.PostgresSQLX(t)
				storage, err := pgengine.NewStorageFromSQLX(db, table, options...)
				require.NoError(t, err, "error in arranging sqlx storage")

				return storage, func(ctx context.Context, statement string) error {
					_, execErr := db.ExecContext(ctx, statement)
					return execErr
				}
			},
		},
	}
}

// givenOrdersTable creates a fresh orders table with a unique name and drops it when the test ends.
func givenOrdersTable(
	t *testing.T,
	fixture adapterFixture,
	options ...pgengine.Option,
) *pgengine.Storage {

	t.Helper()

	name := "orders_" + strings.ReplaceAll(helper.GivenUniqueID(t).String(), "-", "")
	table := pgengine.Table{Name: name, PrimaryKey: []string{shop.ColID}, Columns: shop.Columns}

	storage, exec := fixture.arrange(t, table, options...)

	ctx := context.Background()
	require.NoError(t, exec(ctx, shop.CreateOrdersTableStatement(name)), "error in arranging orders table")
	t.Cleanup(func() { _ = exec(context.Background(), "DROP TABLE IF EXISTS "+name) })

	return storage
}

func givenOrderRepository(t *testing.T, storage *pgengine.Storage) *datamapper.Repository {
	t.Helper()

	repository, err := datamapper.NewRepository(datamapper.NewSession(), shop.NewOrderMapper(), storage, datamapper.WithIndexLookup())
	require.NoError(t, err, "error in arranging order repository")

	return repository
}

func Test_Postgres_Repository_RoundTrip(t *testing.T) {
	for _, fixture := range adapterFixtures() {
		t.Run(fixture.name, func(t *testing.T) {
			// arrange
			ctx := context.Background()
			logger, logHandler := helper.NewTestLogger()
			metrics := helper.NewMetricsCollectorSpy()
			storage := givenOrdersTable(t, fixture, pgengine.WithLogger(logger), pgengine.WithMetrics(metrics))
			writer := givenOrderRepository(t, storage)
			createdAt := time.Now()
			order := shop.NewOrder(1999, createdAt)
			priority := shop.NewPriorityOrder(4999, 3, createdAt.Add(time.Minute))

			// act
			require.NoError(t, writer.Save(ctx, order))
			require.NoError(t, writer.Save(ctx, priority))

			// assert
			assert.NotZero(t, order.ID)
			assert.Greater(t, priority.ID, order.ID)
			assert.True(t, logHandler.HasDebugLogWithMessage("executed sql for: insert").
				WithAttribute("table", storage.Table().Name).WithDurationMS().Assert())
			assert.True(t, metrics.HasDurationRecord("datamapper_sql_duration_seconds", map[string]string{"operation": "insert"}))

			// act: read back through a fresh session
			reader := givenOrderRepository(t, storage)
			loaded, err := reader.FindByPrimary(ctx, order.ID)
			require.NoError(t, err)
			loadedPriority, err := reader.FindByPrimary(ctx, priority.ID)
			require.NoError(t, err)

			// assert
			loadedOrder, ok := loaded.(*shop.Order)
			require.True(t, ok)
			assert.Equal(t, order.ExternalRef, loadedOrder.ExternalRef)
			assert.Equal(t, int64(1999), loadedOrder.Total)
			assert.True(t, order.CreatedAt.Equal(loadedOrder.CreatedAt))

			priorityOrder, ok := loadedPriority.(*shop.PriorityOrder)
			require.True(t, ok, "a row with a priority materializes as PriorityOrder")
			assert.Equal(t, int64(3), priorityOrder.Priority)

			// act: update one field
			loadedOrder.Status = shop.StatusPaid
			require.NoError(t, reader.Save(ctx, loadedOrder))

			// assert
			count, err := givenOrderRepository(t, storage).Count(ctx,
				datamapper.NewCriteria().Where(datamapper.Eq(shop.FieldStatus, shop.StatusPaid)))
			require.NoError(t, err)
			assert.Equal(t, int64(1), count)
		})
	}
}

func Test_Postgres_Repository_FindAllWithCriteria(t *testing.T) {
	for _, fixture := range adapterFixtures() {
		t.Run(fixture.name, func(t *testing.T) {
			// arrange
			ctx := context.Background()
			storage := givenOrdersTable(t, fixture)
			repository := givenOrderRepository(t, storage)
			createdAt := time.Now()

			for i, total := range []int64{500, 100, 300, 200, 400} {
				order := shop.NewOrder(total, createdAt.Add(time.Duration(i)*time.Second))
				if total >= 300 {
					order.Status = shop.StatusShipped
				}

				require.NoError(t, repository.Save(ctx, order), "error in arranging orders")
			}

			criteria := datamapper.NewCriteria().
				Where(datamapper.Or(
					datamapper.Eq(shop.FieldStatus, shop.StatusShipped),
					datamapper.Lte(shop.FieldTotal, 100),
				)).
				AndWhere(datamapper.Not(datamapper.In(shop.FieldTotal, 400))).
				OrderBy(shop.FieldTotal, datamapper.Descending)

			// act
			all, err := givenOrderRepository(t, storage).FindAll(ctx, criteria)
			require.NoError(t, err)
			page, err := givenOrderRepository(t, storage).FindAll(ctx, criteria.WithPaginator(datamapper.PagePaginator{Page: 2, PerPage: 2}))
			require.NoError(t, err)
			count, err := givenOrderRepository(t, storage).Count(ctx, criteria.WithLimit(1))
			require.NoError(t, err)

			// assert
			assert.Equal(t, []int64{500, 300, 100}, totals(t, all))
			assert.Equal(t, []int64{100}, totals(t, page))
			assert.Equal(t, int64(3), count)
		})
	}
}

func Test_Postgres_Repository_Remove(t *testing.T) {
	for _, fixture := range adapterFixtures() {
		t.Run(fixture.name, func(t *testing.T) {
			// arrange
			ctx := context.Background()
			storage := givenOrdersTable(t, fixture)
			repository := givenOrderRepository(t, storage)
			order := shop.NewOrder(100, time.Now())
			require.NoError(t, repository.Save(ctx, order), "error in arranging order")

			// act
			err := repository.Remove(ctx, order)

			// assert
			require.NoError(t, err)
			_, findErr := givenOrderRepository(t, storage).FindByPrimary(ctx, order.ID)
			assert.ErrorIs(t, findErr, datamapper.ErrNotFound)

			deleteErr := storage.Delete(ctx, datamapper.Record{shop.ColID: order.ID})
			assert.ErrorIs(t, deleteErr, pgengine.ErrRowNotFound)
		})
	}
}

func Test_Postgres_Insert_When_UniqueKeyIsTaken_ClassifiesTheError(t *testing.T) {
	for _, fixture := range adapterFixtures() {
		t.Run(fixture.name, func(t *testing.T) {
			// arrange
			ctx := context.Background()
			metrics := helper.NewMetricsCollectorSpy()
			storage := givenOrdersTable(t, fixture, pgengine.WithMetrics(metrics))
			row := datamapper.Record{
				shop.ColExternalRef: "duplicate",
				shop.ColTotal:       int64(1),
				shop.ColStatus:      shop.StatusOpen,
				shop.ColCreatedAt:   time.Now(),
			}
			_, err := storage.Insert(ctx, row)
			require.NoError(t, err, "error in arranging first row")

			// act
			_, err = storage.Insert(ctx, row)

			// assert
			assert.ErrorIs(t, err, pgengine.ErrExecutingStatementFailed)
			assert.True(t, pgengine.IsUniqueViolation(err))
			assert.True(t, metrics.HasCounterRecord("datamapper_sql_errors_total", map[string]string{
				"operation":  "insert",
				"error_type": pgengine.ErrorTypeUniqueViolation,
			}))
		})
	}
}

func Test_Postgres_RunInTransaction_When_BodyFails_RollsBack(t *testing.T) {
	for _, fixture := range adapterFixtures() {
		t.Run(fixture.name, func(t *testing.T) {
			// arrange
			ctx := context.Background()
			storage := givenOrdersTable(t, fixture)
			bodyErr := errors.New("body failed")
			row := datamapper.Record{
				shop.ColExternalRef: "rolled-back",
				shop.ColTotal:       int64(1),
				shop.ColStatus:      shop.StatusOpen,
				shop.ColCreatedAt:   time.Now(),
			}

			// act
			err := storage.RunInTransaction(ctx, func(txCtx context.Context) error {
				return storage.RunInTransaction(txCtx, func(nestedCtx context.Context) error {
					if _, insertErr := storage.Insert(nestedCtx, row); insertErr != nil {
						return insertErr
					}

					return bodyErr
				})
			})

			// assert
			assert.ErrorIs(t, err, bodyErr)

			count, countErr := storage.NewQuery(shop.NewOrderMapper()).Count(ctx)
			require.NoError(t, countErr)
			assert.Zero(t, count)
		})
	}
}

func totals(t *testing.T, entities []datamapper.Entity) []int64 {
	t.Helper()

	result := make([]int64, 0, len(entities))
	for _, entity := range entities {
		order, ok := entity.(*shop.Order)
		require.True(t, ok)
		result = append(result, order.Total)
	}

	return result
}

func Test_Postgres_RetryOnSerializationFailure_When_ConcurrentWriterWins(t *testing.T) {
	for _, fixture := range adapterFixtures() {
		t.Run(fixture.name, func(t *testing.T) {
			// arrange
			ctx := context.Background()
			metrics := helper.NewMetricsCollectorSpy()
			storage := givenOrdersTable(t, fixture, pgengine.WithTransactionIsolation(sql.LevelRepeatableRead))
			order := shop.NewOrder(100, time.Now())
			require.NoError(t, givenOrderRepository(t, storage).Save(ctx, order))
			attempts := 0

			// act
			err := pgengine.RetryOnSerializationFailure(ctx, func(ctx context.Context) error {
				attempts++
				orders := givenOrderRepository(t, storage)

				return storage.RunInTransaction(ctx, func(txCtx context.Context) error {
					entity, findErr := orders.FindByPrimary(txCtx, order.ID)
					if findErr != nil {
						return findErr
					}

					if attempts == 1 {
						concurrent := givenOrderRepository(t, storage)
						other, otherErr := concurrent.FindByPrimary(ctx, order.ID)
						require.NoError(t, otherErr)
						other.(*shop.Order).Status = shop.StatusPaid
						require.NoError(t, concurrent.Save(ctx, other))
					}

					entity.(*shop.Order).Total += 50

					return orders.Save(txCtx, entity)
				})
			}, pgengine.WithBaseDelay(time.Millisecond), pgengine.WithRetryMetrics(metrics))

			// assert
			require.NoError(t, err)
			assert.Equal(t, 2, attempts)
			assert.True(t, metrics.HasCounterRecord("datamapper_sql_retries_total", map[string]string{"attempt": "1"}))

			reloaded, err := givenOrderRepository(t, storage).FindByPrimary(ctx, order.ID)
			require.NoError(t, err)
			assert.Equal(t, shop.StatusPaid, reloaded.(*shop.Order).Status)
			assert.Equal(t, int64(150), reloaded.(*shop.Order).Total)
		})
	}
}
