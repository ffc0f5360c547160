// Package repository provides the Postgres-backed dataset index: every
// video ever collected, plus the batch ledger.
package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/thumbset/youtube-thumbnail-collector-go/internal/models"
)

// Repository handles all database operations for the dataset index.
type Repository struct {
	db *pgxpool.Pool
}

// New creates a new Repository instance with the provided database connection pool.
func New(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Connect builds a pgx pool from the DSN and verifies the connection.
func Connect(ctx context.Context, dsn string, maxConns, minConns int, maxIdle, maxLifetime time.Duration) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	if maxConns > 0 {
		poolConfig.MaxConns = int32(maxConns)
	}
	if minConns > 0 {
		poolConfig.MinConns = int32(minConns)
	}
	if maxIdle > 0 {
		poolConfig.MaxConnIdleTime = maxIdle
	}
	if maxLifetime > 0 {
		poolConfig.MaxConnLifetime = maxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// EnsureSchema creates the index schema and tables when absent.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE SCHEMA IF NOT EXISTS thumbnail_dataset`,
		`CREATE TABLE IF NOT EXISTS thumbnail_dataset.collected_videos (
			video_id VARCHAR(50) PRIMARY KEY,
			channel_id VARCHAR(50) NOT NULL,
			category_id VARCHAR(10),
			title TEXT,
			thumbnail_url TEXT,
			published_at TIMESTAMPTZ,
			collected_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			batch_tag VARCHAR(20)
		)`,
		`CREATE TABLE IF NOT EXISTS thumbnail_dataset.batches (
			id UUID PRIMARY KEY,
			number INTEGER UNIQUE NOT NULL,
			tag VARCHAR(20) UNIQUE NOT NULL,
			image_count INTEGER NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_collected_videos_batch_tag
			ON thumbnail_dataset.collected_videos (batch_tag)`,
	}

	for _, stmt := range statements {
		if _, err := r.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// HasVideo reports whether a video was ever collected, in the current
// collection or any archive.
func (r *Repository) HasVideo(ctx context.Context, videoID string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM thumbnail_dataset.collected_videos WHERE video_id = $1)`
	var exists bool
	err := r.db.QueryRow(ctx, query, videoID).Scan(&exists)
	return exists, err
}

// FilterNew returns the subset of candidates not yet present in the
// index, preserving the input order.
func (r *Repository) FilterNew(ctx context.Context, candidates []models.Video) ([]models.Video, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	ids := make([]string, len(candidates))
	for i := range candidates {
		ids[i] = candidates[i].VideoID
	}

	query := `SELECT video_id FROM thumbnail_dataset.collected_videos WHERE video_id = ANY($1)`
	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	known := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		known[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	fresh := make([]models.Video, 0, len(candidates))
	for _, v := range candidates {
		if !known[v.VideoID] {
			fresh = append(fresh, v)
		}
	}
	return fresh, nil
}

// RecordVideos registers downloaded videos in the index. Replays of the
// same video are ignored so a re-run after a partial failure is safe.
func (r *Repository) RecordVideos(ctx context.Context, videos []models.Video) error {
	query := `
		INSERT INTO thumbnail_dataset.collected_videos
		(video_id, channel_id, category_id, title, thumbnail_url, published_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (video_id) DO NOTHING
	`
	for i := range videos {
		v := &videos[i]
		if _, err := r.db.Exec(ctx, query,
			v.VideoID, v.ChannelID, v.CategoryID, v.Title, v.ThumbnailURL, v.PublishedAt,
		); err != nil {
			return fmt.Errorf("record video %s: %w", v.VideoID, err)
		}
	}
	return nil
}

// CreateBatch appends a row to the batch ledger. The UNIQUE constraints
// on number and tag are the database-side guarantee that batch numbers
// are never reused.
func (r *Repository) CreateBatch(ctx context.Context, batch *models.Batch) error {
	query := `
		INSERT INTO thumbnail_dataset.batches (id, number, tag, image_count, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.Exec(ctx, query,
		batch.ID, batch.Number, batch.Tag, batch.ImageCount, batch.CreatedAt)
	return err
}

// AssignBatchTag marks archived videos with the batch they ended up in.
func (r *Repository) AssignBatchTag(ctx context.Context, tag string, videoIDs []string) error {
	if len(videoIDs) == 0 {
		return nil
	}
	query := `UPDATE thumbnail_dataset.collected_videos SET batch_tag = $1 WHERE video_id = ANY($2)`
	_, err := r.db.Exec(ctx, query, tag, videoIDs)
	return err
}

// LatestBatchNumber returns the highest batch number in the ledger, or
// zero for an empty dataset.
func (r *Repository) LatestBatchNumber(ctx context.Context) (int, error) {
	query := `SELECT COALESCE(MAX(number), 0) FROM thumbnail_dataset.batches`
	var number int
	err := r.db.QueryRow(ctx, query).Scan(&number)
	return number, err
}

// Ping checks the database connection health.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}
