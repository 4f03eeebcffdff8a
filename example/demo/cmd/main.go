package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver

	"github.com/AntonStoeckl/datamapper-go/datamapper"
	"github.com/AntonStoeckl/datamapper-go/datamapper/pgengine"
	"github.com/AntonStoeckl/datamapper-go/example/config"
	"github.com/AntonStoeckl/datamapper-go/example/shop"
)

type database struct {
	storage *pgengine.Storage
	exec    func(ctx context.Context, statement string) error
	close   func()
}

func main() {
	configPath := flag.String("config", "", "path to the YAML configuration file")
	createSchema := flag.Bool("create-schema", true, "create the orders table if it does not exist")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	level, _ := cfg.Log.SlogLevel()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := openDatabase(ctx, cfg, pgengine.WithLogger(logger))
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.close()

	if *createSchema {
		if err = db.exec(ctx, shop.CreateOrdersTableStatement(cfg.Table.Name)); err != nil {
			log.Fatalf("Failed to create schema: %v", err)
		}
	}

	if err = run(ctx, cfg, db.storage, logger); err != nil {
		log.Fatalf("Demo failed: %v", err)
	}
}

func openDatabase(ctx context.Context, cfg config.Config, options ...pgengine.Option) (database, error) {
	table := pgengine.Table{
		Name:       cfg.Table.Name,
		PrimaryKey: cfg.Table.PrimaryKey,
		Columns:    cfg.Table.Columns,
	}

	switch cfg.Database.Adapter {
	case config.AdapterSQL:
		db, err := sql.Open("postgres", cfg.Database.DSN)
		if err != nil {
			return database{}, err
		}

		storage, err := pgengine.NewStorageFromSQLDB(db, table, options...)
		if err != nil {
			_ = db.Close()
			return database{}, err
		}

		return database{
			storage: storage,
			exec: func(ctx context.Context, statement string) error {
				_, execErr := db.ExecContext(ctx, statement)
				return execErr
			},
			close: func() { _ = db.Close() },
		}, nil

	case config.AdapterSQLX:
		db, err := sqlx.Open("postgres", cfg.Database.DSN)
		if err != nil {
			return database{}, err
		}

		storage, err := pgengine.NewStorageFromSQLX(db, table, options...)
		if err != nil {
			_ = db.Close()
			return database{}, err
		}

		return database{
			storage: storage,
			exec: func(ctx context.Context, statement string) error {
				_, execErr := db.ExecContext(ctx, statement)
				return execErr
			},
			close: func() { _ = db.Close() },
		}, nil

	default:
		pool, err := pgxpool.New(ctx, cfg.Database.DSN)
		if err != nil {
			return database{}, err
		}

		storage, err := pgengine.NewStorageFromPGXPool(pool, table, options...)
		if err != nil {
			pool.Close()
			return database{}, err
		}

		return database{
			storage: storage,
			exec: func(ctx context.Context, statement string) error {
				_, execErr := pool.Exec(ctx, statement)
				return execErr
			},
			close: pool.Close,
		}, nil
	}
}

// run walks through one unit-of-work: insert, identity-preserving lookups, a minimal update,
// a criteria query and a remove.
func run(ctx context.Context, cfg config.Config, storage datamapper.Storage, logger *slog.Logger) error {
	session := datamapper.NewSession(datamapper.WithSessionLogger(logger))

	options := []datamapper.Option{datamapper.WithLogger(logger)}
	if cfg.Repository.IndexLookup {
		options = append(options, datamapper.WithIndexLookup())
	}
	if cfg.Repository.ExpressionLookup {
		options = append(options, datamapper.WithExpressionLookup())
	}

	orders, err := datamapper.NewRepository(session, shop.NewOrderMapper(), storage, options...)
	if err != nil {
		return err
	}

	now := time.Now()
	regular := shop.NewOrder(4200, now)
	urgent := shop.NewPriorityOrder(9900, 1, now)

	for _, order := range []datamapper.Entity{regular, urgent} {
		if err = orders.Save(ctx, order); err != nil {
			return err
		}
	}

	logger.Info("orders created", "regular_id", regular.ID, "priority_id", urgent.ID)

	found, err := orders.FindByPrimary(ctx, regular.ID)
	if err != nil {
		return err
	}

	if found != datamapper.Entity(regular) {
		return errors.New("identity map returned a different object for the same row")
	}

	regular.Status = shop.StatusPaid
	if err = orders.Save(ctx, regular); err != nil {
		return err
	}

	criteria := datamapper.NewCriteria().
		Where(datamapper.And(
			datamapper.Gte(shop.FieldTotal, 1000),
			datamapper.Not(datamapper.In(shop.FieldStatus, shop.StatusCanceled, shop.StatusShipped)),
		)).
		OrderBy(shop.FieldCreatedAt, datamapper.Descending).
		WithPaginator(datamapper.PagePaginator{Page: 1, PerPage: 10})

	open, err := orders.FindAll(ctx, criteria)
	if err != nil {
		return err
	}

	total, err := orders.Count(ctx, criteria)
	if err != nil {
		return err
	}

	logger.Info("orders matching criteria", "page_size", len(open), "total", total)

	for _, order := range []datamapper.Entity{regular, urgent} {
		if err = orders.Remove(ctx, order); err != nil {
			return err
		}
	}

	return nil
}
