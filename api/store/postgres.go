package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"janus/api/model"
)

type DB struct {
	pool *pgxpool.Pool
}

func Connect(databaseURL string) (*DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}
	return &DB{pool: pool}, nil
}

func (db *DB) Close() {
	db.pool.Close()
}

func (db *DB) QueryRow(ctx context.Context, sql string, args ...interface{}) interface{ Scan(...interface{}) error } {
	return db.pool.QueryRow(ctx, sql, args...)
}

func Migrate(db *DB) error {
	ctx := context.Background()
	_, err := db.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS deployments (
			id          TEXT PRIMARY KEY,
			app         TEXT NOT NULL,
			commit_sha  TEXT NOT NULL,
			image_tag   TEXT NOT NULL,
			from_color  TEXT NOT NULL DEFAULT '',
			to_color    TEXT NOT NULL DEFAULT '',
			status      TEXT NOT NULL DEFAULT 'queued',
			steps       JSONB NOT NULL DEFAULT '[]',
			error       TEXT NOT NULL DEFAULT '',
			started_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
			finished_at TIMESTAMPTZ
		);
		CREATE INDEX IF NOT EXISTS idx_deployments_app ON deployments(app);
		CREATE INDEX IF NOT EXISTS idx_deployments_status ON deployments(status);

		CREATE TABLE IF NOT EXISTS health_checks (
			id          TEXT PRIMARY KEY,
			app         TEXT NOT NULL,
			healthy     BOOLEAN NOT NULL,
			response_ms INTEGER NOT NULL DEFAULT 0,
			checked_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS idx_health_checks_app_time
			ON health_checks(app, checked_at DESC);
	`)
	return err
}

func (db *DB) InsertDeployment(ctx context.Context, d *model.Deployment) error {
	steps, _ := json.Marshal(d.Steps)
	_, err := db.pool.Exec(ctx,
		`INSERT INTO deployments (id, app, commit_sha, image_tag, status, steps, started_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		d.ID, d.App, d.CommitSHA, d.ImageTag, d.Status, steps, d.StartedAt,
	)
	return err
}

func (db *DB) UpdateDeployment(ctx context.Context, d *model.Deployment) error {
	stepsJSON, _ := json.Marshal(d.Steps)
	var finished *time.Time
	if d.Status == model.StatusDeployed || d.Status == model.StatusFailed {
		now := time.Now()
		finished = &now
	}
	_, err := db.pool.Exec(ctx,
		`UPDATE deployments
		 SET status = $1, steps = $2, error = $3, image_tag = $4,
		     from_color = $5, to_color = $6, finished_at = $7
		 WHERE id = $8`,
		d.Status, stepsJSON, d.Error, d.ImageTag, d.FromColor, d.ToColor, finished, d.ID,
	)
	return err
}

type DeploymentFilter struct {
	App    string
	Status string
	Limit  int
}

func (db *DB) ListAllDeployments(ctx context.Context, f DeploymentFilter) ([]model.Deployment, error) {
	where := ""
	args := []interface{}{}
	argN := 1

	if f.App != "" {
		where += fmt.Sprintf(" AND app = $%d", argN)
		args = append(args, f.App)
		argN++
	}
	if f.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", argN)
		args = append(args, f.Status)
		argN++
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)

	rows, err := db.pool.Query(ctx, fmt.Sprintf(
		`SELECT id, app, commit_sha, image_tag, from_color, to_color, status, steps, error, started_at, finished_at
		 FROM deployments WHERE 1=1%s ORDER BY started_at DESC LIMIT $%d`, where, argN),
		args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanDeployments(rows)
}

func (db *DB) ListDeployments(ctx context.Context, app string, limit int) ([]model.Deployment, error) {
	return db.ListAllDeployments(ctx, DeploymentFilter{App: app, Limit: limit})
}

type pgxRows interface {
	Next() bool
	Scan(...interface{}) error
}

func scanDeployments(rows pgxRows) ([]model.Deployment, error) {
	var deployments []model.Deployment
	for rows.Next() {
		var d model.Deployment
		var stepsJSON []byte
		if err := rows.Scan(&d.ID, &d.App, &d.CommitSHA, &d.ImageTag, &d.FromColor, &d.ToColor,
			&d.Status, &stepsJSON, &d.Error, &d.StartedAt, &d.FinishedAt); err != nil {
			return nil, err
		}
		json.Unmarshal(stepsJSON, &d.Steps)
		deployments = append(deployments, d)
	}
	return deployments, nil
}

// RecoverInFlightDeployments marks deployments that were mid-pipeline
// when the server last stopped as failed. Run once on boot.
func (db *DB) RecoverInFlightDeployments(ctx context.Context) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE deployments
		 SET status = 'failed', error = 'janus restarted during deployment', finished_at = now()
		 WHERE status NOT IN ('deployed', 'failed')`,
	)
	return err
}

func (db *DB) InsertHealthCheck(ctx context.Context, hc *model.HealthCheck) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO health_checks (id, app, healthy, response_ms, checked_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		hc.ID, hc.App, hc.Healthy, hc.ResponseMs, hc.CheckedAt,
	)
	return err
}

func (db *DB) ListHealthChecks(ctx context.Context, app string, limit int) ([]model.HealthCheck, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.pool.Query(ctx,
		`SELECT id, app, healthy, response_ms, checked_at
		 FROM health_checks WHERE app = $1 ORDER BY checked_at DESC LIMIT $2`,
		app, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var checks []model.HealthCheck
	for rows.Next() {
		var hc model.HealthCheck
		if err := rows.Scan(&hc.ID, &hc.App, &hc.Healthy, &hc.ResponseMs, &hc.CheckedAt); err != nil {
			return nil, err
		}
		checks = append(checks, hc)
	}
	return checks, nil
}

// PruneHealthChecks drops checks older than 7 days and returns how many
// rows went away.
func (db *DB) PruneHealthChecks(ctx context.Context) (int64, error) {
	tag, err := db.pool.Exec(ctx,
		`DELETE FROM health_checks WHERE checked_at < now() - interval '7 days'`,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
