package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/bounty-cli/internal/analytics"
	"github.com/sells-group/bounty-cli/internal/config"
	"github.com/sells-group/bounty-cli/internal/db"
	"github.com/sells-group/bounty-cli/internal/decision"
	"github.com/sells-group/bounty-cli/internal/model"
	"github.com/sells-group/bounty-cli/internal/resilience"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"upsert_bounty": `INSERT INTO bounties (id, org, reward_cents, payload, updated_at) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET org = EXCLUDED.org, reward_cents = EXCLUDED.reward_cents,
		payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at`,
	"get_bounty":      `SELECT payload FROM bounties WHERE id = $1`,
	"insert_decision": `INSERT INTO decisions (id, session_id, bounty_id, result, created_at) VALUES ($1, $2, $3, $4, $5)`,
	"list_decisions":  `SELECT id, session_id, bounty_id, result, created_at FROM decisions WHERE session_id = $1 ORDER BY created_at`,
	"save_metrics": `INSERT INTO session_metrics (session_id, metrics, created_at) VALUES ($1, $2, $3)
		ON CONFLICT (session_id) DO UPDATE SET metrics = EXCLUDED.metrics`,
	"get_metrics": `SELECT metrics FROM session_metrics WHERE session_id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *config.PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool, used by tests with pgxmock.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, closeFn: pool.Close}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS bounties (
	id           TEXT PRIMARY KEY,
	org          TEXT NOT NULL,
	reward_cents BIGINT,
	payload      JSONB NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS decisions (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	session_id TEXT NOT NULL,
	bounty_id  TEXT NOT NULL,
	result     JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS session_metrics (
	session_id TEXT PRIMARY KEY,
	metrics    JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_bounties_org ON bounties(org);
CREATE INDEX IF NOT EXISTS idx_bounties_eval_status ON bounties((payload->'tracking'->>'evaluation_status'));
CREATE INDEX IF NOT EXISTS idx_decisions_session_id ON decisions(session_id);
CREATE INDEX IF NOT EXISTS idx_decisions_bounty_id ON decisions(bounty_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) UpsertBounty(ctx context.Context, b *model.Bounty) error {
	payload, err := json.Marshal(b)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal bounty")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO bounties (id, org, reward_cents, payload, updated_at) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE SET org = EXCLUDED.org, reward_cents = EXCLUDED.reward_cents,
		 payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at`,
		b.ID, b.Org, b.RewardCents, payload, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: upsert bounty %s", b.ID)
}

func (s *PostgresStore) GetBounty(ctx context.Context, id string) (*model.Bounty, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT payload FROM bounties WHERE id = $1`, id,
	).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Errorf("bounty not found: %s", id)
		}
		return nil, eris.Wrapf(err, "postgres: get bounty %s", id)
	}

	var b model.Bounty
	if err := json.Unmarshal(payload, &b); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal bounty")
	}
	return &b, nil
}

func (s *PostgresStore) ListBounties(ctx context.Context, filter BountyFilter) ([]model.Bounty, error) {
	query := `SELECT payload FROM bounties WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Org != "" {
		query += fmt.Sprintf(` AND org = $%d`, argIdx)
		args = append(args, filter.Org)
		argIdx++
	}
	if filter.EvaluationStatus != "" {
		// Raw imports carry an empty status until first scored; they count
		// as not_evaluated so the default scoring sweep picks them up.
		if filter.EvaluationStatus == model.EvalNotEvaluated {
			query += fmt.Sprintf(` AND COALESCE(payload->'tracking'->>'evaluation_status', '') IN ('', $%d)`, argIdx)
		} else {
			query += fmt.Sprintf(` AND payload->'tracking'->>'evaluation_status' = $%d`, argIdx)
		}
		args = append(args, string(filter.EvaluationStatus))
		argIdx++
	}
	if filter.GoNoGo != "" {
		query += fmt.Sprintf(` AND payload->'tracking'->>'go_no_go' = $%d`, argIdx)
		args = append(args, string(filter.GoNoGo))
		argIdx++
	}
	query += ` ORDER BY id`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
		argIdx++
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list bounties")
	}
	defer rows.Close()

	var out []model.Bounty
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, eris.Wrap(err, "postgres: scan bounty")
		}
		var b model.Bounty
		if err := json.Unmarshal(payload, &b); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal bounty")
		}
		out = append(out, b)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list bounties iterate")
}

// ImportBounties bulk-upserts a corpus via a temp table and COPY. The whole
// batch is retried on transient failures since the upsert is idempotent.
func (s *PostgresStore) ImportBounties(ctx context.Context, bounties []model.Bounty) (int64, error) {
	if len(bounties) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	rows := make([][]any, 0, len(bounties))
	for i := range bounties {
		b := &bounties[i]
		payload, err := json.Marshal(b)
		if err != nil {
			return 0, eris.Wrapf(err, "postgres: marshal bounty %s", b.ID)
		}
		rows = append(rows, []any{b.ID, b.Org, b.RewardCents, payload, now})
	}

	cfg := resilience.DefaultRetryConfig()
	cfg.OnRetry = resilience.RetryLogger("postgres", "import_bounties")
	return resilience.DoVal(ctx, cfg, func(ctx context.Context) (int64, error) {
		return db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
			Table:        "bounties",
			Columns:      []string{"id", "org", "reward_cents", "payload", "updated_at"},
			ConflictKeys: []string{"id"},
		}, rows)
	})
}

func (s *PostgresStore) SaveDecision(ctx context.Context, sessionID string, res *decision.Result) (*DecisionRecord, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	resultJSON, err := json.Marshal(res)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal decision")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO decisions (id, session_id, bounty_id, result, created_at) VALUES ($1, $2, $3, $4, $5)`,
		id, sessionID, res.BountyID, resultJSON, now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert decision for %s", res.BountyID)
	}

	return &DecisionRecord{
		ID:        id,
		SessionID: sessionID,
		BountyID:  res.BountyID,
		Result:    *res,
		CreatedAt: now,
	}, nil
}

// SaveDecisions bulk-inserts decisions using the COPY protocol.
func (s *PostgresStore) SaveDecisions(ctx context.Context, sessionID string, results []*decision.Result) (int64, error) {
	if len(results) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	rows := make([][]any, 0, len(results))
	for _, res := range results {
		resultJSON, err := json.Marshal(res)
		if err != nil {
			return 0, eris.Wrapf(err, "postgres: marshal decision for %s", res.BountyID)
		}
		rows = append(rows, []any{uuid.New().String(), sessionID, res.BountyID, resultJSON, now})
	}

	return db.CopyFrom(ctx, s.pool, "decisions",
		[]string{"id", "session_id", "bounty_id", "result", "created_at"}, rows)
}

func (s *PostgresStore) ListDecisions(ctx context.Context, sessionID string) ([]DecisionRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, session_id, bounty_id, result, created_at FROM decisions
		 WHERE session_id = $1 ORDER BY created_at`,
		sessionID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list decisions")
	}
	defer rows.Close()

	var out []DecisionRecord
	for rows.Next() {
		var rec DecisionRecord
		var resultJSON []byte
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.BountyID, &resultJSON, &rec.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan decision")
		}
		if err := json.Unmarshal(resultJSON, &rec.Result); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal decision")
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list decisions iterate")
}

func (s *PostgresStore) SaveSessionMetrics(ctx context.Context, m *analytics.SessionMetrics) error {
	metricsJSON, err := json.Marshal(m)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal metrics")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO session_metrics (session_id, metrics, created_at) VALUES ($1, $2, $3)
		 ON CONFLICT (session_id) DO UPDATE SET metrics = EXCLUDED.metrics`,
		m.SessionID, metricsJSON, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: save metrics %s", m.SessionID)
}

func (s *PostgresStore) GetSessionMetrics(ctx context.Context, sessionID string) (*analytics.SessionMetrics, error) {
	var metricsJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT metrics FROM session_metrics WHERE session_id = $1`, sessionID,
	).Scan(&metricsJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(errNoMetrics, "session %s", sessionID)
		}
		return nil, eris.Wrapf(err, "postgres: get metrics %s", sessionID)
	}

	var m analytics.SessionMetrics
	if err := json.Unmarshal(metricsJSON, &m); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal metrics")
	}
	return &m, nil
}

func (s *PostgresStore) LatestSessionMetrics(ctx context.Context) (*analytics.SessionMetrics, error) {
	var metricsJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT metrics FROM session_metrics ORDER BY created_at DESC LIMIT 1`,
	).Scan(&metricsJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: latest metrics")
	}

	var m analytics.SessionMetrics
	if err := json.Unmarshal(metricsJSON, &m); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal metrics")
	}
	return &m, nil
}
