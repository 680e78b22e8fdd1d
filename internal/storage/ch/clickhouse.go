package ch

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"moviebot/internal/models"
	"moviebot/internal/storage"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/google/uuid"
)

// ClickHouseDB is a redemption log backed by ClickHouse
type ClickHouseDB struct {
	conn clickhouse.Conn
}

// NewClickHouseDB creates a new ClickHouse database connection
func NewClickHouseDB(host string, port int, database, user, password string, useTLS bool) (*ClickHouseDB, error) {
	addr := fmt.Sprintf("%s:%d", host, port)

	options := &clickhouse.Options{
		Addr:     []string{addr},
		Protocol: clickhouse.Native,
		Auth: clickhouse.Auth{
			Database: database,
			Username: user,
			Password: password,
		},
	}

	// Configure TLS if enabled
	if useTLS {
		options.TLS = &tls.Config{
			InsecureSkipVerify: false,
		}
	}

	conn, err := clickhouse.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	// Test the connection
	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	return &ClickHouseDB{conn: conn}, nil
}

// Initialize creates the redemptions table.
// goose does not handle ClickHouse well, so the table is created here.
func (db *ClickHouseDB) Initialize(ctx context.Context) error {
	err := db.conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS redemptions (
			id UUID,
			user_id Int64,
			code String,
			found Bool,
			redeemed_at DateTime
		) ENGINE = MergeTree()
		ORDER BY redeemed_at
	`)
	if err != nil {
		return fmt.Errorf("failed to create redemptions table: %w", err)
	}
	return nil
}

// RecordRedemption stores a single code submission
func (db *ClickHouseDB) RecordRedemption(ctx context.Context, r models.Redemption) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.RedeemedAt.IsZero() {
		r.RedeemedAt = time.Now()
	}

	err := db.conn.Exec(ctx, `INSERT INTO redemptions (id, user_id, code, found, redeemed_at) VALUES (?, ?, ?, ?, ?)`,
		r.ID.String(), r.UserID, r.Code, r.Found, r.RedeemedAt)
	if err != nil {
		return storage.Fault("record redemption", err)
	}
	return nil
}

// Summary counts attempts and successful lookups since the given time
func (db *ClickHouseDB) Summary(ctx context.Context, since time.Time) (models.RedemptionSummary, error) {
	var summary models.RedemptionSummary
	err := db.conn.QueryRow(ctx,
		`SELECT count(), countIf(found) FROM redemptions WHERE redeemed_at >= ?`, since).
		Scan(&summary.Attempts, &summary.Found)
	if err != nil {
		return models.RedemptionSummary{}, storage.Fault("redemption summary", err)
	}
	return summary, nil
}

// TopCodes returns the most submitted codes since the given time
func (db *ClickHouseDB) TopCodes(ctx context.Context, limit int, since time.Time) ([]models.CodeStat, error) {
	rows, err := db.conn.Query(ctx, `
		SELECT code, count() AS attempts
		FROM redemptions
		WHERE redeemed_at >= ?
		GROUP BY code
		ORDER BY attempts DESC, code
		LIMIT ?`, since, limit)
	if err != nil {
		return nil, storage.Fault("top codes", err)
	}
	defer rows.Close()

	var stats []models.CodeStat
	for rows.Next() {
		var stat models.CodeStat
		if err := rows.Scan(&stat.Code, &stat.Attempts); err != nil {
			return nil, storage.Fault("scan code stat", err)
		}
		stats = append(stats, stat)
	}
	return stats, nil
}

// Close closes the database connection
func (db *ClickHouseDB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}
