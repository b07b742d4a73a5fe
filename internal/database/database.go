package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"rainrelay/internal/constants"
	"rainrelay/internal/migrations"
	"rainrelay/internal/models"

	_ "github.com/mattn/go-sqlite3"
)

// Database is the SQLite backed state store. The notification ledger and the relay
// map survive restarts, and both inserts use INSERT OR IGNORE so that the first
// writer wins even across processes sharing the file.
type Database struct {
	db *sql.DB
}

func New(dbPath string) (*Database, error) {
	if len(dbPath) == 0 || strings.ContainsRune(dbPath, '\x00') {
		return nil, fmt.Errorf("invalid database path")
	}
	dbPath = filepath.Clean(dbPath)

	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	file, err := os.OpenFile(dbPath, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create database file: %w", err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("failed to close database file: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to ping database: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	schema, err := migrations.GetInitialSchema()
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to read schema: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to read schema: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to initialize schema: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Database{db: db}, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

func (d *Database) Backend() string {
	return constants.StoreBackendSQLite
}

// TryMarkFired records key in the notification ledger. It returns true only for the
// caller whose insert created the row.
func (d *Database) TryMarkFired(ctx context.Context, key models.EventKey) (bool, error) {
	var inserted bool
	err := retryableDBOperation(ctx, func() error {
		result, err := d.db.ExecContext(ctx, InsertFiredEventQuery, key.String(), time.Now().Unix())
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		inserted = affected == 1
		return nil
	}, "mark fired")
	if err != nil {
		return false, fmt.Errorf("failed to mark event fired: %w", err)
	}
	return inserted, nil
}

func (d *Database) HasFired(ctx context.Context, key models.EventKey) (bool, error) {
	var one int
	err := d.db.QueryRowContext(ctx, SelectFiredEventQuery, key.String()).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query notification ledger: %w", err)
	}
	return true, nil
}

// SaveRelay stores a relay mapping. An existing mapping for the same source message
// is never overwritten; false is returned in that case.
func (d *Database) SaveRelay(ctx context.Context, mapping models.RelayMapping) (bool, error) {
	relayedAt := mapping.RelayedAt
	if relayedAt.IsZero() {
		relayedAt = time.Now()
	}

	var inserted bool
	err := retryableDBOperation(ctx, func() error {
		result, err := d.db.ExecContext(ctx, InsertRelayMappingQuery,
			mapping.Source.ChatID,
			mapping.Source.MessageID,
			mapping.Destination.ChannelID,
			mapping.Destination.MessageID,
			relayedAt.Unix(),
		)
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		inserted = affected == 1
		return nil
	}, "save relay mapping")
	if err != nil {
		return false, fmt.Errorf("failed to save relay mapping: %w", err)
	}
	return inserted, nil
}

// LookupRelay returns the destination of a relayed message, or nil when unknown.
func (d *Database) LookupRelay(ctx context.Context, ref models.SourceMessageRef) (*models.DestinationRef, error) {
	dest := &models.DestinationRef{}
	err := d.db.QueryRowContext(ctx, SelectRelayMappingQuery, ref.ChatID, ref.MessageID).Scan(
		&dest.ChannelID,
		&dest.MessageID,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get relay mapping: %w", err)
	}
	return dest, nil
}

// Prune deletes ledger entries and relay mappings recorded before cutoff.
func (d *Database) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	var removed int64
	err := retryableDBOperation(ctx, func() error {
		tx, err := d.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		removed = 0
		for _, query := range []string{DeleteFiredEventsBeforeQuery, DeleteRelayMappingsBeforeQuery} {
			result, err := tx.ExecContext(ctx, query, cutoff.Unix())
			if err != nil {
				return err
			}
			n, err := result.RowsAffected()
			if err != nil {
				return err
			}
			removed += n
		}
		return tx.Commit()
	}, "prune")
	if err != nil {
		return 0, fmt.Errorf("failed to prune old records: %w", err)
	}
	return removed, nil
}

func (d *Database) Stats(ctx context.Context) (models.StoreStats, error) {
	stats := models.StoreStats{Backend: d.Backend()}
	if err := d.db.QueryRowContext(ctx, CountFiredEventsQuery).Scan(&stats.FiredEvents); err != nil {
		return stats, fmt.Errorf("failed to count fired events: %w", err)
	}
	if err := d.db.QueryRowContext(ctx, CountRelayMappingsQuery).Scan(&stats.RelayMappings); err != nil {
		return stats, fmt.Errorf("failed to count relay mappings: %w", err)
	}
	return stats, nil
}
