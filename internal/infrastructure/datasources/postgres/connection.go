package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"vaultswap.backend/internal/config"
)

const defaultPingTimeout = 2 * time.Second

var sqlOpen = sql.Open

// HealthConn is a single-connection lib/pq pool used by the health endpoint.
// It is separate from the gorm pool.
type HealthConn struct {
	db      *sql.DB
	timeout time.Duration
}

// Open dials the database and fails unless the first ping succeeds
func Open(cfg config.DatabaseConfig) (*HealthConn, error) {
	db, err := sqlOpen("postgres", cfg.SQLURL())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxIdleTime(5 * time.Minute)

	p := &HealthConn{db: db, timeout: defaultPingTimeout}
	if err := p.PingContext(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return p, nil
}

// PingContext bounds the ping by the configured timeout even when ctx has none
func (p *HealthConn) PingContext(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.db.PingContext(ctx)
}

// Close releases the connection
func (p *HealthConn) Close() error {
	return p.db.Close()
}
