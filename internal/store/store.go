// Package store persists bounties, decisions, and session metrics behind a
// driver-agnostic interface with sqlite and postgres implementations.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/bounty-cli/internal/analytics"
	"github.com/sells-group/bounty-cli/internal/config"
	"github.com/sells-group/bounty-cli/internal/decision"
	"github.com/sells-group/bounty-cli/internal/model"
)

// BountyFilter specifies criteria for listing bounties.
type BountyFilter struct {
	Org              string                 `json:"org,omitempty"`
	EvaluationStatus model.EvaluationStatus `json:"evaluation_status,omitempty"`
	GoNoGo           model.GoNoGo           `json:"go_no_go,omitempty"`
	Limit            int                    `json:"limit,omitempty"`
	Offset           int                    `json:"offset,omitempty"`
}

// DecisionRecord is a persisted decision engine result.
type DecisionRecord struct {
	ID        string          `json:"id"`
	SessionID string          `json:"session_id"`
	BountyID  string          `json:"bounty_id"`
	Result    decision.Result `json:"result"`
	CreatedAt time.Time       `json:"created_at"`
}

// Store defines the persistence interface for the triage pipeline.
type Store interface {
	// Bounties
	UpsertBounty(ctx context.Context, b *model.Bounty) error
	GetBounty(ctx context.Context, id string) (*model.Bounty, error)
	ListBounties(ctx context.Context, filter BountyFilter) ([]model.Bounty, error)
	ImportBounties(ctx context.Context, bounties []model.Bounty) (int64, error)

	// Decisions
	SaveDecision(ctx context.Context, sessionID string, res *decision.Result) (*DecisionRecord, error)
	SaveDecisions(ctx context.Context, sessionID string, results []*decision.Result) (int64, error)
	ListDecisions(ctx context.Context, sessionID string) ([]DecisionRecord, error)

	// Session metrics
	SaveSessionMetrics(ctx context.Context, m *analytics.SessionMetrics) error
	GetSessionMetrics(ctx context.Context, sessionID string) (*analytics.SessionMetrics, error)
	LatestSessionMetrics(ctx context.Context) (*analytics.SessionMetrics, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open creates a Store for the configured driver and runs migrations.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	var (
		s   Store
		err error
	)
	switch cfg.Driver {
	case "sqlite":
		s, err = NewSQLite(cfg.DatabaseURL)
	case "postgres":
		s, err = NewPostgres(ctx, cfg.DatabaseURL, &cfg.Pool)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		s.Close() //nolint:errcheck
		return nil, err
	}
	return s, nil
}
