package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/radieske/sports-bet-settlement/internal/store"
	"github.com/radieske/sports-bet-settlement/internal/store/postgres"
)

func ConnectPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	db.SetMaxOpenConns(20)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return db, nil
}

// OpenStore cria o contexto de persistência do driver escolhido e aplica o schema.
// O store em memória não passa por aqui: worker e bet-api são processos
// separados e precisam enxergar os mesmos jogos, apostas e saldos.
func OpenStore(ctx context.Context, driver, dsn string) (store.Store, error) {
	switch driver {
	case "memory":
		return nil, fmt.Errorf("store driver %q is process-local and cannot be shared between services", driver)
	case "postgres":
		pg, err := ConnectPostgres(dsn)
		if err != nil {
			return nil, err
		}
		st := postgres.New(pg)
		if err := st.Migrate(ctx); err != nil {
			_ = pg.Close()
			return nil, err
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}
