package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/bounty-cli/internal/analytics"
	"github.com/sells-group/bounty-cli/internal/decision"
	"github.com/sells-group/bounty-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS bounties (
	id           TEXT PRIMARY KEY,
	org          TEXT NOT NULL,
	reward_cents INTEGER,
	payload      TEXT NOT NULL,
	updated_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS decisions (
	id         TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	bounty_id  TEXT NOT NULL,
	result     TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS session_metrics (
	session_id TEXT PRIMARY KEY,
	metrics    TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_bounties_org ON bounties(org);
CREATE INDEX IF NOT EXISTS idx_decisions_session_id ON decisions(session_id);
CREATE INDEX IF NOT EXISTS idx_decisions_bounty_id ON decisions(bounty_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertBounty(ctx context.Context, b *model.Bounty) error {
	payload, err := json.Marshal(b)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal bounty")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO bounties (id, org, reward_cents, payload, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET org = excluded.org, reward_cents = excluded.reward_cents,
		 payload = excluded.payload, updated_at = excluded.updated_at`,
		b.ID, b.Org, b.RewardCents, string(payload), time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: upsert bounty %s", b.ID)
}

func (s *SQLiteStore) GetBounty(ctx context.Context, id string) (*model.Bounty, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT payload FROM bounties WHERE id = ?`, id,
	)

	var payload string
	err := row.Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("bounty not found: %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get bounty %s", id)
	}

	var b model.Bounty
	if err := json.Unmarshal([]byte(payload), &b); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal bounty")
	}
	return &b, nil
}

func (s *SQLiteStore) ListBounties(ctx context.Context, filter BountyFilter) ([]model.Bounty, error) {
	query := `SELECT payload FROM bounties WHERE 1=1`
	var args []any

	if filter.Org != "" {
		query += ` AND org = ?`
		args = append(args, filter.Org)
	}
	if filter.EvaluationStatus != "" {
		// Raw imports carry an empty status until first scored; they count
		// as not_evaluated so the default scoring sweep picks them up.
		if filter.EvaluationStatus == model.EvalNotEvaluated {
			query += ` AND COALESCE(json_extract(payload, '$.tracking.evaluation_status'), '') IN ('', ?)`
		} else {
			query += ` AND json_extract(payload, '$.tracking.evaluation_status') = ?`
		}
		args = append(args, string(filter.EvaluationStatus))
	}
	if filter.GoNoGo != "" {
		query += ` AND json_extract(payload, '$.tracking.go_no_go') = ?`
		args = append(args, string(filter.GoNoGo))
	}
	query += ` ORDER BY id`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list bounties")
	}
	defer rows.Close()

	var out []model.Bounty
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan bounty")
		}
		var b model.Bounty
		if err := json.Unmarshal([]byte(payload), &b); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal bounty")
		}
		out = append(out, b)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list bounties iterate")
}

func (s *SQLiteStore) ImportBounties(ctx context.Context, bounties []model.Bounty) (int64, error) {
	if len(bounties) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: import begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO bounties (id, org, reward_cents, payload, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET org = excluded.org, reward_cents = excluded.reward_cents,
		 payload = excluded.payload, updated_at = excluded.updated_at`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: import prepare")
	}
	defer stmt.Close()

	now := time.Now().UTC()
	var n int64
	for i := range bounties {
		b := &bounties[i]
		payload, err := json.Marshal(b)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: marshal bounty %s", b.ID)
		}
		if _, err := stmt.ExecContext(ctx, b.ID, b.Org, b.RewardCents, string(payload), now); err != nil {
			return 0, eris.Wrapf(err, "sqlite: import bounty %s", b.ID)
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: import commit")
	}
	return n, nil
}

func (s *SQLiteStore) SaveDecision(ctx context.Context, sessionID string, res *decision.Result) (*DecisionRecord, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	resultJSON, err := json.Marshal(res)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal decision")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO decisions (id, session_id, bounty_id, result, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, sessionID, res.BountyID, string(resultJSON), now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert decision for %s", res.BountyID)
	}

	return &DecisionRecord{
		ID:        id,
		SessionID: sessionID,
		BountyID:  res.BountyID,
		Result:    *res,
		CreatedAt: now,
	}, nil
}

func (s *SQLiteStore) SaveDecisions(ctx context.Context, sessionID string, results []*decision.Result) (int64, error) {
	if len(results) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: save decisions begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO decisions (id, session_id, bounty_id, result, created_at) VALUES (?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: save decisions prepare")
	}
	defer stmt.Close()

	now := time.Now().UTC()
	var n int64
	for _, res := range results {
		resultJSON, err := json.Marshal(res)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: marshal decision for %s", res.BountyID)
		}
		if _, err := stmt.ExecContext(ctx, uuid.New().String(), sessionID, res.BountyID, string(resultJSON), now); err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert decision for %s", res.BountyID)
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: save decisions commit")
	}
	return n, nil
}

func (s *SQLiteStore) ListDecisions(ctx context.Context, sessionID string) ([]DecisionRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, bounty_id, result, created_at FROM decisions
		 WHERE session_id = ? ORDER BY created_at`,
		sessionID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list decisions")
	}
	defer rows.Close()

	var out []DecisionRecord
	for rows.Next() {
		var rec DecisionRecord
		var resultJSON string
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.BountyID, &resultJSON, &rec.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan decision")
		}
		if err := json.Unmarshal([]byte(resultJSON), &rec.Result); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal decision")
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list decisions iterate")
}

func (s *SQLiteStore) SaveSessionMetrics(ctx context.Context, m *analytics.SessionMetrics) error {
	metricsJSON, err := json.Marshal(m)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal metrics")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO session_metrics (session_id, metrics, created_at) VALUES (?, ?, ?)
		 ON CONFLICT (session_id) DO UPDATE SET metrics = excluded.metrics`,
		m.SessionID, string(metricsJSON), time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: save metrics %s", m.SessionID)
}

func (s *SQLiteStore) GetSessionMetrics(ctx context.Context, sessionID string) (*analytics.SessionMetrics, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT metrics FROM session_metrics WHERE session_id = ?`, sessionID,
	)
	return scanMetrics(row, sessionID)
}

func (s *SQLiteStore) LatestSessionMetrics(ctx context.Context) (*analytics.SessionMetrics, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT metrics FROM session_metrics ORDER BY created_at DESC LIMIT 1`,
	)

	m, err := scanMetrics(row, "")
	if err != nil && eris.Is(err, errNoMetrics) {
		return nil, nil
	}
	return m, err
}

var errNoMetrics = eris.New("session metrics not found")

type scannable interface {
	Scan(dest ...any) error
}

func scanMetrics(row scannable, sessionID string) (*analytics.SessionMetrics, error) {
	var metricsJSON string
	err := row.Scan(&metricsJSON)
	if err == sql.ErrNoRows {
		if sessionID != "" {
			return nil, eris.Wrapf(errNoMetrics, "session %s", sessionID)
		}
		return nil, errNoMetrics
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan metrics")
	}

	var m analytics.SessionMetrics
	if err := json.Unmarshal([]byte(metricsJSON), &m); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal metrics")
	}
	return &m, nil
}
