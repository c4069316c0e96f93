package repository

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/kamal-hamza/autostart/internal/core/domain"
	"github.com/kamal-hamza/autostart/internal/logger"
	"github.com/kamal-hamza/autostart/migrations"
)

const historyTable = "launch_history"

var historyColumns = []string{
	"id", "instance", "instance_index", "status", "success",
	"attempts", "max_retries", "detail", "started_at", "finished_at",
}

// HistoryRepository implements the HistoryRepository port on SQLite
type HistoryRepository struct {
	db     *sql.DB
	logger *logger.Logger
}

// OpenHistory opens (creating if needed) the history database and migrates it
func OpenHistory(ctx context.Context, path string, log *logger.Logger) (*HistoryRepository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		log.Err(err).Str("func", "OpenHistory").Msg("error opening history database")
		return nil, fmt.Errorf("error opening history database: %w", err)
	}
	// sqlite allows a single writer
	conn.SetMaxOpenConns(1)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("error connecting history database: %w", err)
	}

	if err := migrations.Migrate(conn); err != nil {
		conn.Close()
		return nil, err
	}

	log.Debug().Str("path", path).Msg("history database ready")
	return NewHistoryRepository(conn, log), nil
}

// NewHistoryRepository wraps an already migrated database
func NewHistoryRepository(db *sql.DB, log *logger.Logger) *HistoryRepository {
	return &HistoryRepository{db: db, logger: log}
}

// Close releases the database
func (r *HistoryRepository) Close() error {
	return r.db.Close()
}

func buildInsertLaunchQuery(rec domain.LaunchRecord) (string, []any, error) {
	return sq.Insert(historyTable).
		Columns(historyColumns...).
		Values(
			rec.ID.String(),
			rec.Instance,
			rec.InstanceIndex,
			string(rec.Status),
			boolToInt(rec.Success),
			rec.Attempts,
			rec.MaxRetries,
			rec.Detail,
			rec.StartedAt.UnixMilli(),
			rec.FinishedAt.UnixMilli(),
		).
		PlaceholderFormat(sq.Question).
		ToSql()
}

func buildListLaunchesQuery(instance string, limit int) (string, []any, error) {
	q := sq.Select(historyColumns...).
		From(historyTable).
		OrderBy("finished_at DESC").
		PlaceholderFormat(sq.Question)

	if instance != "" {
		q = q.Where(sq.Eq{"instance": instance})
	}
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	return q.ToSql()
}

func buildSummariesQuery() (string, []any, error) {
	return sq.Select(
		"instance",
		"COUNT(*)",
		"COALESCE(SUM(success), 0)",
		"COALESCE(AVG(attempts), 0)",
		"COALESCE(MAX(finished_at), 0)",
	).
		From(historyTable).
		GroupBy("instance").
		OrderBy("instance").
		PlaceholderFormat(sq.Question).
		ToSql()
}

// Save records a finished launch
func (r *HistoryRepository) Save(ctx context.Context, record domain.LaunchRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	query, args, err := buildInsertLaunchQuery(record)
	if err != nil {
		return fmt.Errorf("failed to build insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.Err(err).Str("func", "HistoryRepository.Save").Msg("error saving launch")
		return fmt.Errorf("failed to save launch: %w", err)
	}
	return nil
}

// List returns launches newest first
func (r *HistoryRepository) List(ctx context.Context, instance string, limit int) ([]domain.LaunchRecord, error) {
	query, args, err := buildListLaunchesQuery(instance, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to build select: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list launches: %w", err)
	}
	defer rows.Close()

	var records []domain.LaunchRecord
	for rows.Next() {
		var (
			rec               domain.LaunchRecord
			id, status        string
			success           int
			started, finished int64
		)
		if err := rows.Scan(&id, &rec.Instance, &rec.InstanceIndex, &status, &success,
			&rec.Attempts, &rec.MaxRetries, &rec.Detail, &started, &finished); err != nil {
			return nil, fmt.Errorf("failed to scan launch: %w", err)
		}

		rec.ID, err = uuid.Parse(id)
		if err != nil {
			r.logger.Warn().Str("id", id).Msg("skipping launch with malformed id")
			continue
		}
		rec.Status = domain.TaskStatus(status)
		rec.Success = success != 0
		rec.StartedAt = time.UnixMilli(started)
		rec.FinishedAt = time.UnixMilli(finished)
		records = append(records, rec)
	}

	return records, rows.Err()
}

// Summaries aggregates launches per instance
func (r *HistoryRepository) Summaries(ctx context.Context) ([]domain.InstanceSummary, error) {
	query, args, err := buildSummariesQuery()
	if err != nil {
		return nil, fmt.Errorf("failed to build summary query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to summarise launches: %w", err)
	}
	defer rows.Close()

	var summaries []domain.InstanceSummary
	for rows.Next() {
		var (
			s    domain.InstanceSummary
			last int64
		)
		if err := rows.Scan(&s.Instance, &s.Runs, &s.Successes, &s.AvgAttempts, &last); err != nil {
			return nil, fmt.Errorf("failed to scan summary: %w", err)
		}
		s.Failures = s.Runs - s.Successes
		if last > 0 {
			s.LastRun = time.UnixMilli(last)
		}
		summaries = append(summaries, s)
	}

	return summaries, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
