package main

import (
	"fmt"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/bounty-cli/internal/analytics"
	"github.com/sells-group/bounty-cli/internal/decision"
	"github.com/sells-group/bounty-cli/internal/history"
	"github.com/sells-group/bounty-cli/internal/model"
	"github.com/sells-group/bounty-cli/internal/store"
)

var (
	triageOrg         string
	triageLimit       int
	triageTolerance   string
	triageQuickFilter bool
)

var triageCmd = &cobra.Command{
	Use:   "triage",
	Short: "Run implement/skip decisions over the stored bounty corpus",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		tolStr := triageTolerance
		if tolStr == "" {
			tolStr = cfg.Decision.RiskTolerance
		}
		tol, err := decision.ParseRiskTolerance(tolStr)
		if err != nil {
			return err
		}

		// History is built from the whole corpus, not just the batch under
		// triage, so per-org priors stay stable across filtered runs.
		corpus, err := env.Store.ListBounties(ctx, store.BountyFilter{Limit: 100_000})
		if err != nil {
			return eris.Wrap(err, "list corpus")
		}

		snap, malformed := history.Build(corpus)
		for _, mErr := range malformed {
			zap.L().Warn("excluding malformed record from history", zap.Error(mErr))
		}

		candidates, err := env.Store.ListBounties(ctx, store.BountyFilter{
			Org:   triageOrg,
			Limit: triageLimit,
		})
		if err != nil {
			return eris.Wrap(err, "list candidates")
		}
		if len(candidates) == 0 {
			zap.L().Info("no bounties to triage")
			return nil
		}

		engine := decision.NewEngine(cfg.Decision, snap)
		agg := analytics.NewAggregator(cfg.Analytics)

		zap.L().Info("triaging",
			zap.Int("candidates", len(candidates)),
			zap.String("session", agg.SessionID()),
			zap.String("tolerance", string(tol)),
		)

		var (
			mu      sync.Mutex
			results []*decision.Result
			failed  atomic.Int64
			implCnt atomic.Int64
			skipCnt atomic.Int64
		)

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(cfg.Triage.MaxConcurrent)

		for i := range candidates {
			b := candidates[i]
			g.Go(func() error {
				log := zap.L().With(zap.String("bounty", b.ID))

				if triageQuickFilter && b.Tracking.EvaluationStatus != model.EvalEvaluated {
					quick := env.Scorer.ScoreBounty(&b)
					b.Tracking.EvaluationStatus = model.EvalEvaluated
					b.Tracking.GoNoGo = quick.GoNoGo
					b.Tracking.ComplexityScore = quick.Complexity
					b.Tracking.SuccessProbability = quick.SuccessProbability
					b.Tracking.EvaluationConfidence = quick.Confidence
					b.Tracking.RedFlags = quick.RedFlags
					if err := env.Store.UpsertBounty(gctx, &b); err != nil {
						log.Warn("failed to persist quick score", zap.Error(err))
					}
				}

				res, err := engine.Decide(&b, tol)
				if err != nil {
					failed.Add(1)
					log.Error("decision failed", zap.Error(err))
					return nil // don't abort the batch on individual failure
				}

				agg.TrackDecision(res)
				if res.ShouldImplement {
					implCnt.Add(1)
				} else {
					skipCnt.Add(1)
				}

				mu.Lock()
				results = append(results, res)
				mu.Unlock()

				log.Info("decision",
					zap.Bool("implement", res.ShouldImplement),
					zap.Float64("overall", res.Scores.Overall),
					zap.Float64("threshold", res.ThresholdUsed),
				)
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return eris.Wrap(err, "triage batch")
		}

		if _, err := env.Store.SaveDecisions(ctx, agg.SessionID(), results); err != nil {
			return eris.Wrap(err, "save decisions")
		}

		metrics := agg.GenerateMetrics()
		if err := env.Store.SaveSessionMetrics(ctx, metrics); err != nil {
			return eris.Wrap(err, "save session metrics")
		}

		if cfg.Analytics.WebhookURL != "" {
			alerter := analytics.NewAlerter(cfg.Analytics)
			alerter.SendAlerts(ctx, alerter.Evaluate(metrics))
		}

		fmt.Printf("session %s: %d decided (%d implement, %d skip), %d failed\n",
			agg.SessionID(), len(results), implCnt.Load(), skipCnt.Load(), failed.Load())
		for _, bn := range metrics.Bottlenecks {
			fmt.Printf("bottleneck [%s]: %s\n", bn.Kind, bn.Message)
		}
		return nil
	},
}

func init() {
	triageCmd.Flags().StringVar(&triageOrg, "org", "", "only triage bounties for this organization")
	triageCmd.Flags().IntVar(&triageLimit, "limit", 100, "max number of bounties to triage")
	triageCmd.Flags().StringVar(&triageTolerance, "tolerance", "", "risk tolerance: conservative, moderate, aggressive (default from config)")
	triageCmd.Flags().BoolVar(&triageQuickFilter, "quick-filter", false, "quick-score unevaluated bounties before deciding")
	rootCmd.AddCommand(triageCmd)
}
