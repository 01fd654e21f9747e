package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/labdesk/labdesk/internal/config"
	"github.com/labdesk/labdesk/internal/domain/doctor"
	"github.com/labdesk/labdesk/internal/domain/orders"
	"github.com/labdesk/labdesk/internal/platform/db"
	"github.com/labdesk/labdesk/internal/platform/mongostore"
)

// stores bundles the repositories of the configured backend.
type stores struct {
	unbilled orders.Repository
	billed   orders.Repository
	journal  orders.JournalRepository
	doctors  doctor.Repository
	tx       orders.TxRunner
	checker  db.Checker
	pool     *pgxpool.Pool // postgres only, for reporting
	close    func()
}

type memoryChecker struct{}

func (memoryChecker) Name() string               { return config.DriverMemory }
func (memoryChecker) Ping(context.Context) error { return nil }
func (memoryChecker) Stats() interface{}         { return nil }

func collections(cfg *config.Config) (orders.Collection, orders.Collection) {
	return orders.Collection{Name: "unbilled", Prefix: cfg.UnbilledSerialPrefix},
		orders.Collection{Name: "orders", Prefix: cfg.OrderSerialPrefix}
}

func openStores(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*stores, error) {
	unbilledColl, billedColl := collections(cfg)

	switch cfg.StoreDriver {
	case config.DriverMemory:
		logger.Warn().Msg("using in-memory store, data is lost on restart")
		return &stores{
			unbilled: orders.NewMemoryRepo(unbilledColl),
			billed:   orders.NewMemoryRepo(billedColl),
			journal:  orders.NewMemoryJournal(),
			doctors:  doctor.NewMemoryRepo(),
			checker:  memoryChecker{},
			close:    func() {},
		}, nil

	case config.DriverPostgres:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, err
		}
		logger.Info().Msg("connected to postgres")
		return &stores{
			unbilled: orders.NewRepoPG(pool, orders.TableUnbilled, unbilledColl),
			billed:   orders.NewRepoPG(pool, orders.TableBilled, billedColl),
			journal:  orders.NewJournalRepoPG(pool),
			doctors:  doctor.NewRepoPG(pool),
			tx:       db.NewTxRunner(pool),
			checker:  db.PoolChecker{Pool: pool},
			pool:     pool,
			close:    pool.Close,
		}, nil

	case config.DriverMongo:
		client, err := mongostore.Connect(ctx, cfg.MongoURI)
		if err != nil {
			return nil, err
		}
		database := client.Database(cfg.MongoDatabase)
		if err := mongostore.EnsureIndexes(ctx, database); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, err
		}
		logger.Info().Str("database", cfg.MongoDatabase).Msg("connected to mongo")

		st := &stores{
			unbilled: orders.NewRepoMongo(database, mongostore.CollUnbilled, unbilledColl),
			billed:   orders.NewRepoMongo(database, mongostore.CollOrders, billedColl),
			journal:  orders.NewJournalRepoMongo(database),
			doctors:  doctor.NewRepoMongo(database),
			checker:  mongostore.Checker{DB: database},
			close:    disconnect(client, logger),
		}
		// Transactions need a replica set; standalone servers fall back to
		// the compensating move.
		if cfg.MongoTransactions {
			st.tx = mongostore.NewTxRunner(client)
		}
		return st, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

func disconnect(client *mongo.Client, logger zerolog.Logger) func() {
	return func() {
		if err := client.Disconnect(context.Background()); err != nil {
			logger.Error().Err(err).Msg("mongo disconnect failed")
		}
	}
}

// newOrderService wires the order service onto st.
func newOrderService(cfg *config.Config, st *stores, doctors orders.DoctorNames, logger zerolog.Logger) *orders.Service {
	svc := orders.NewService(st.unbilled, st.billed, st.journal, doctors, logger.With().Str("component", "orders").Logger())
	svc.SetBulkConcurrency(cfg.BulkDeleteConcurrency)
	if st.tx != nil {
		svc.SetTxRunner(st.tx)
	}
	return svc
}
