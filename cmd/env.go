package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/bounty-cli/internal/quickscore"
	"github.com/sells-group/bounty-cli/internal/signal"
	"github.com/sells-group/bounty-cli/internal/store"
)

// env bundles the shared dependencies commands need: the store, the flag
// catalog, and a quick scorer built from it.
type env struct {
	Store   store.Store
	Catalog signal.Catalog
	Scorer  *quickscore.Scorer
}

func initEnv(ctx context.Context) (*env, error) {
	catalog, err := signal.LoadCatalog(cfg.Signals.CatalogPath)
	if err != nil {
		return nil, eris.Wrap(err, "load flag catalog")
	}

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}

	return &env{
		Store:   st,
		Catalog: catalog,
		Scorer:  quickscore.New(catalog, cfg.Quick),
	}, nil
}

func (e *env) Close() {
	if e.Store != nil {
		e.Store.Close() //nolint:errcheck
	}
}
