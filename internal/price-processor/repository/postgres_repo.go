package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	"github.com/radieske/wager-settlement-engine/pkg/contracts/events"
)

//go:embed schema.sql
var schema string

// PostgresRepo guarda a cotação corrente e o histórico usado em auditoria de
// resoluções de lutas de preço.
type PostgresRepo struct {
	DB *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{DB: db}
}

func (r *PostgresRepo) Migrate(ctx context.Context) error {
	if _, err := r.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate price schema: %w", err)
	}
	return nil
}

// UpsertCurrent só sobrescreve a linha se a cotação for mais nova.
func (r *PostgresRepo) UpsertCurrent(ctx context.Context, q events.PriceQuote) error {
	const stmt = `
		INSERT INTO price_current (feed_id, price, expo, source, version, published_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (feed_id) DO UPDATE SET
		  price        = EXCLUDED.price,
		  expo         = EXCLUDED.expo,
		  source       = EXCLUDED.source,
		  version      = EXCLUDED.version,
		  published_at = EXCLUDED.published_at
		WHERE price_current.published_at <= EXCLUDED.published_at
	`
	_, err := r.DB.ExecContext(ctx, stmt, q.FeedID, q.Price, q.Expo, q.Source, q.Version, q.PublishedAt)
	return err
}

func (r *PostgresRepo) InsertHistory(ctx context.Context, q events.PriceQuote) error {
	const stmt = `
		INSERT INTO price_history (feed_id, price, expo, version, published_at)
		VALUES ($1,$2,$3,$4,$5)
	`
	_, err := r.DB.ExecContext(ctx, stmt, q.FeedID, q.Price, q.Expo, q.Version, q.PublishedAt)
	return err
}

// ListCurrent devolve a última cotação de cada feed.
func (r *PostgresRepo) ListCurrent(ctx context.Context) ([]events.PriceQuote, error) {
	const q = `
		SELECT feed_id, price, expo, source, version, published_at
		FROM price_current
		ORDER BY feed_id;
	`
	rows, err := r.DB.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []events.PriceQuote{}
	for rows.Next() {
		var p events.PriceQuote
		if err := rows.Scan(&p.FeedID, &p.Price, &p.Expo, &p.Source, &p.Version, &p.PublishedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// History devolve as cotações mais recentes de um feed, da mais nova para a mais velha.
func (r *PostgresRepo) History(ctx context.Context, feedID string, limit int) ([]events.PriceQuote, error) {
	const q = `
		SELECT feed_id, price, expo, version, published_at
		FROM price_history
		WHERE feed_id = $1
		ORDER BY published_at DESC
		LIMIT $2;
	`
	rows, err := r.DB.QueryContext(ctx, q, feedID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []events.PriceQuote{}
	for rows.Next() {
		var p events.PriceQuote
		if err := rows.Scan(&p.FeedID, &p.Price, &p.Expo, &p.Version, &p.PublishedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
