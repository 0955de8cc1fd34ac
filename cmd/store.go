package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/iliyamo/restaurant-reservation/internal/booking"
	"github.com/iliyamo/restaurant-reservation/internal/config"
	"github.com/iliyamo/restaurant-reservation/internal/database"
	"github.com/iliyamo/restaurant-reservation/internal/handler"
	"github.com/iliyamo/restaurant-reservation/internal/repository"
)

type userStore interface {
	handler.UserStore
	Create(ctx context.Context, email, password, role string, cost int) (uint64, error)
}

type tokenStore interface {
	handler.TokenStore
	PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// stores is the storage selected by STORAGE_DRIVER.
type stores struct {
	Reservations booking.Repository
	Users        userStore
	Tokens       tokenStore
	DB           *sql.DB // nil for the memory driver
}

func (s *stores) Close() {
	if s.DB != nil {
		_ = s.DB.Close()
	}
}

// openStores opens the configured storage.  With MySQL the schema is
// migrated first when migrate is set.
func openStores(ctx context.Context, cfg config.Config, migrate bool) (*stores, error) {
	if cfg.Storage == config.StorageMemory {
		return &stores{
			Reservations: repository.NewMemoryReservationRepo(),
			Users:        repository.NewMemoryUserRepo(),
			Tokens:       repository.NewMemoryTokenRepo(),
		}, nil
	}

	db, err := openDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if migrate {
		if _, err := database.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return &stores{
		Reservations: repository.NewReservationRepo(db),
		Users:        repository.NewUserRepo(db),
		Tokens:       repository.NewTokenRepo(db),
		DB:           db,
	}, nil
}

func openDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	db, err := database.Open(ctx, database.Options{
		User: cfg.DBUser, Pass: cfg.DBPass, Host: cfg.DBHost, Port: cfg.DBPort, Name: cfg.DBName,
	})
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	return db, nil
}
