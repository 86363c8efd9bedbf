package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"empires/internal/game"
)

// Postgres stores empires and flows as JSONB documents with a version
// column for conditional writes. Flow status and next-run are extracted
// into columns so the due-flow sweep is a plain indexed query.
type Postgres struct {
	db *pgxpool.Pool
}

func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{db: db}
}

// EnsureSchema creates the tables on first use.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	_, err := p.db.Exec(ctx, `
		CREATE SCHEMA IF NOT EXISTS empire;
		CREATE TABLE IF NOT EXISTS empire.empires (
			player_id  text PRIMARY KEY,
			doc        jsonb NOT NULL,
			version    bigint NOT NULL,
			updated_at timestamptz NOT NULL DEFAULT now()
		);
		CREATE TABLE IF NOT EXISTS empire.flows (
			id          text PRIMARY KEY,
			player_id   text NOT NULL,
			status      text NOT NULL,
			next_run_at timestamptz,
			doc         jsonb NOT NULL,
			version     bigint NOT NULL,
			updated_at  timestamptz NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS flows_due_idx
			ON empire.flows (status, next_run_at);
		CREATE INDEX IF NOT EXISTS flows_player_idx
			ON empire.flows (player_id);
	`)
	if err != nil {
		return fmt.Errorf("%w: ensure schema: %v", game.ErrStorage, err)
	}
	return nil
}

func (p *Postgres) EmpireByPlayer(ctx context.Context, playerID string) (*game.Empire, error) {
	var raw []byte
	var version int64
	err := p.db.QueryRow(ctx, `
		SELECT doc, version
		FROM empire.empires
		WHERE player_id = $1
	`, playerID).Scan(&raw, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: player %s", game.ErrEmpireNotFound, playerID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load empire: %v", game.ErrStorage, err)
	}
	var e game.Empire
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("%w: decode empire: %v", game.ErrStorage, err)
	}
	e.Version = version
	return &e, nil
}

func (p *Postgres) InsertEmpire(ctx context.Context, e *game.Empire) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("%w: encode empire: %v", game.ErrStorage, err)
	}
	cmd, err := p.db.Exec(ctx, `
		INSERT INTO empire.empires (player_id, doc, version)
		VALUES ($1, $2, 1)
		ON CONFLICT (player_id) DO NOTHING
	`, e.PlayerID, raw)
	if err != nil {
		return fmt.Errorf("%w: insert empire: %v", game.ErrStorage, err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%w: player %s", game.ErrEmpireExists, e.PlayerID)
	}
	e.Version = 1
	return nil
}

func (p *Postgres) UpdateEmpire(ctx context.Context, e *game.Empire, expectedVersion int64) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("%w: encode empire: %v", game.ErrStorage, err)
	}
	cmd, err := p.db.Exec(ctx, `
		UPDATE empire.empires
		SET doc = $1, version = version + 1, updated_at = now()
		WHERE player_id = $2 AND version = $3
	`, raw, e.PlayerID, expectedVersion)
	if err != nil {
		return fmt.Errorf("%w: update empire: %v", game.ErrStorage, err)
	}
	if cmd.RowsAffected() == 0 {
		if exists, err := p.empireExists(ctx, e.PlayerID); err == nil && !exists {
			return fmt.Errorf("%w: player %s", game.ErrEmpireNotFound, e.PlayerID)
		}
		return fmt.Errorf("%w: empire %s", game.ErrVersionConflict, e.PlayerID)
	}
	e.Version = expectedVersion + 1
	return nil
}

func (p *Postgres) empireExists(ctx context.Context, playerID string) (bool, error) {
	var one int
	err := p.db.QueryRow(ctx, `SELECT 1 FROM empire.empires WHERE player_id = $1`, playerID).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func (p *Postgres) InsertFlow(ctx context.Context, f *game.Flow) error {
	raw, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("%w: encode flow: %v", game.ErrStorage, err)
	}
	_, err = p.db.Exec(ctx, `
		INSERT INTO empire.flows (id, player_id, status, next_run_at, doc, version)
		VALUES ($1, $2, $3, $4, $5, 1)
	`, f.ID, f.PlayerID, string(f.Status), f.NextRunAt, raw)
	if err != nil {
		return fmt.Errorf("%w: insert flow: %v", game.ErrStorage, err)
	}
	f.Version = 1
	return nil
}

func (p *Postgres) FlowByID(ctx context.Context, id string) (*game.Flow, error) {
	var raw []byte
	var version int64
	err := p.db.QueryRow(ctx, `
		SELECT doc, version
		FROM empire.flows
		WHERE id = $1
	`, id).Scan(&raw, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", game.ErrFlowNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load flow: %v", game.ErrStorage, err)
	}
	return decodeFlow(raw, version)
}

func (p *Postgres) FlowsByPlayer(ctx context.Context, playerID string) ([]*game.Flow, error) {
	rows, err := p.db.Query(ctx, `
		SELECT doc, version
		FROM empire.flows
		WHERE player_id = $1
		ORDER BY (doc->>'created_at') ASC
	`, playerID)
	if err != nil {
		return nil, fmt.Errorf("%w: list flows: %v", game.ErrStorage, err)
	}
	defer rows.Close()
	return collectFlows(rows)
}

func (p *Postgres) DueFlows(ctx context.Context, now time.Time, limit int) ([]*game.Flow, error) {
	rows, err := p.db.Query(ctx, `
		SELECT doc, version
		FROM empire.flows
		WHERE status = 'active'
		  AND next_run_at IS NOT NULL
		  AND next_run_at <= $1
		ORDER BY next_run_at ASC
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: due flows: %v", game.ErrStorage, err)
	}
	defer rows.Close()
	return collectFlows(rows)
}

func (p *Postgres) UpdateFlow(ctx context.Context, f *game.Flow, expectedVersion int64) error {
	raw, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("%w: encode flow: %v", game.ErrStorage, err)
	}
	cmd, err := p.db.Exec(ctx, `
		UPDATE empire.flows
		SET doc = $1, status = $2, next_run_at = $3, version = version + 1, updated_at = now()
		WHERE id = $4 AND version = $5
	`, raw, string(f.Status), f.NextRunAt, f.ID, expectedVersion)
	if err != nil {
		return fmt.Errorf("%w: update flow: %v", game.ErrStorage, err)
	}
	if cmd.RowsAffected() == 0 {
		if exists, err := p.flowExists(ctx, f.ID); err == nil && !exists {
			return fmt.Errorf("%w: %s", game.ErrFlowNotFound, f.ID)
		}
		return fmt.Errorf("%w: flow %s", game.ErrVersionConflict, f.ID)
	}
	f.Version = expectedVersion + 1
	return nil
}

func (p *Postgres) flowExists(ctx context.Context, id string) (bool, error) {
	var one int
	err := p.db.QueryRow(ctx, `SELECT 1 FROM empire.flows WHERE id = $1`, id).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func collectFlows(rows pgx.Rows) ([]*game.Flow, error) {
	var out []*game.Flow
	for rows.Next() {
		var raw []byte
		var version int64
		if err := rows.Scan(&raw, &version); err != nil {
			return nil, fmt.Errorf("%w: scan flow: %v", game.ErrStorage, err)
		}
		f, err := decodeFlow(raw, version)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate flows: %v", game.ErrStorage, err)
	}
	return out, nil
}

func decodeFlow(raw []byte, version int64) (*game.Flow, error) {
	var f game.Flow
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("%w: decode flow: %v", game.ErrStorage, err)
	}
	f.Version = version
	return &f, nil
}
