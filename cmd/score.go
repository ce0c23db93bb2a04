package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/bounty-cli/internal/model"
	"github.com/sells-group/bounty-cli/internal/quickscore"
	"github.com/sells-group/bounty-cli/internal/store"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Quick-score bounties without LLM calls",
	Long: `Runs the heuristic quick scorer over bounty text: extracts red-flag
signals, estimates complexity and success probability, and renders a
go/no-go verdict with a timeline estimate.

Examples:
  # Score ad-hoc text
  score --title "Fix pagination bug" --body-file bounty.md --reward-cents 50000

  # Score a stored bounty by ID
  score --id acme-142

  # Score every unevaluated stored bounty and persist the results
  score --all --save`,
	RunE: runScore,
}

func init() {
	f := scoreCmd.Flags()
	f.String("id", "", "score a stored bounty by ID")
	f.String("title", "", "bounty title for ad-hoc scoring")
	f.String("body", "", "bounty body for ad-hoc scoring")
	f.String("body-file", "", "read bounty body from file")
	f.Int64("reward-cents", 0, "reward in cents for ad-hoc scoring")
	f.Bool("all", false, "score all unevaluated stored bounties")
	f.Bool("save", false, "persist scores back to the store")
	f.String("output", "", "output file path (default: stdout)")
	f.String("format", "table", "output format: table or csv")

	rootCmd.AddCommand(scoreCmd)
}

type scoredBounty struct {
	ID     string
	Title  string
	Result quickscore.Result
}

func runScore(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	id, _ := cmd.Flags().GetString("id")
	title, _ := cmd.Flags().GetString("title")
	body, _ := cmd.Flags().GetString("body")
	bodyFile, _ := cmd.Flags().GetString("body-file")
	rewardCents, _ := cmd.Flags().GetInt64("reward-cents")
	all, _ := cmd.Flags().GetBool("all")
	save, _ := cmd.Flags().GetBool("save")
	outputPath, _ := cmd.Flags().GetString("output")
	format, _ := cmd.Flags().GetString("format")

	if format != "table" && format != "csv" {
		return eris.Errorf("score: --format must be table or csv (got %q)", format)
	}
	if bodyFile != "" {
		data, err := os.ReadFile(bodyFile)
		if err != nil {
			return eris.Wrapf(err, "score: read body file %s", bodyFile)
		}
		body = string(data)
	}

	env, err := initEnv(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	var scored []scoredBounty

	switch {
	case all:
		bounties, err := env.Store.ListBounties(ctx, store.BountyFilter{
			EvaluationStatus: model.EvalNotEvaluated,
			Limit:            100_000,
		})
		if err != nil {
			return eris.Wrap(err, "score: list unevaluated")
		}
		for i := range bounties {
			b := &bounties[i]
			res := env.Scorer.ScoreBounty(b)
			scored = append(scored, scoredBounty{ID: b.ID, Title: b.Title, Result: res})
			if save {
				applyQuickScore(b, res)
				if err := env.Store.UpsertBounty(ctx, b); err != nil {
					return eris.Wrapf(err, "score: save %s", b.ID)
				}
			}
		}
		zap.L().Info("quick scoring complete", zap.Int("scored", len(scored)), zap.Bool("saved", save))

	case id != "":
		b, err := env.Store.GetBounty(ctx, id)
		if err != nil {
			return err
		}
		res := env.Scorer.ScoreBounty(b)
		scored = append(scored, scoredBounty{ID: b.ID, Title: b.Title, Result: res})
		if save {
			applyQuickScore(b, res)
			if err := env.Store.UpsertBounty(ctx, b); err != nil {
				return eris.Wrapf(err, "score: save %s", b.ID)
			}
		}

	case title != "" || body != "":
		res := env.Scorer.Score(title, body, rewardCents)
		printSingleScore(title, res)
		return nil

	default:
		return eris.New("score: one of --id, --all, or --title/--body is required")
	}

	return outputScores(scored, format, outputPath)
}

func applyQuickScore(b *model.Bounty, res quickscore.Result) {
	b.Tracking.EvaluationStatus = model.EvalEvaluated
	b.Tracking.GoNoGo = res.GoNoGo
	b.Tracking.ComplexityScore = res.Complexity
	b.Tracking.SuccessProbability = res.SuccessProbability
	b.Tracking.EvaluationConfidence = res.Confidence
	b.Tracking.RedFlags = res.RedFlags
}

func printSingleScore(title string, res quickscore.Result) {
	fmt.Printf("Title:       %s\n", title)
	fmt.Printf("Verdict:     %s\n", res.GoNoGo)
	fmt.Printf("Complexity:  %d / 10\n", res.Complexity)
	fmt.Printf("Probability: %d%%\n", res.SuccessProbability)
	fmt.Printf("Confidence:  %d%%\n", res.Confidence)
	fmt.Printf("Risk:        %s\n", res.RiskLevel)
	fmt.Printf("Timeline:    %s\n", res.EstimatedTimeline)
	if len(res.RedFlags) > 0 {
		fmt.Printf("Red flags:   %s\n", strings.Join(res.RedFlags, ", "))
	}
	if len(res.Notes) > 0 {
		fmt.Println("\nNotes:")
		for _, n := range res.Notes {
			fmt.Printf("  - %s\n", n)
		}
	}
}

func outputScores(scored []scoredBounty, format, outputPath string) error {
	var w io.Writer = os.Stdout
	if outputPath != "" {
		f, err := os.Create(outputPath)
		if err != nil {
			return eris.Wrapf(err, "score: create output file %s", outputPath)
		}
		defer f.Close() //nolint:errcheck
		w = f
	}

	switch format {
	case "csv":
		return writeScoreCSV(w, scored)
	default:
		return writeScoreTable(w, scored)
	}
}

func writeScoreCSV(w io.Writer, scored []scoredBounty) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	header := []string{"id", "title", "verdict", "complexity", "probability", "confidence", "risk", "timeline", "red_flags"}
	if err := cw.Write(header); err != nil {
		return eris.Wrap(err, "score: write CSV header")
	}

	for _, s := range scored {
		row := []string{
			s.ID,
			s.Title,
			string(s.Result.GoNoGo),
			fmt.Sprintf("%d", s.Result.Complexity),
			fmt.Sprintf("%d", s.Result.SuccessProbability),
			fmt.Sprintf("%d", s.Result.Confidence),
			string(s.Result.RiskLevel),
			s.Result.EstimatedTimeline,
			strings.Join(s.Result.RedFlags, ";"),
		}
		if err := cw.Write(row); err != nil {
			return eris.Wrap(err, "score: write CSV row")
		}
	}
	return nil
}

func writeScoreTable(w io.Writer, scored []scoredBounty) error {
	header := fmt.Sprintf("%-20s %-40s %-8s %4s %5s %5s %-7s %s\n",
		"ID", "Title", "Verdict", "Cx", "Prob", "Conf", "Risk", "Timeline")
	if _, err := fmt.Fprint(w, header); err != nil {
		return eris.Wrap(err, "score: write table header")
	}
	if _, err := fmt.Fprintln(w, strings.Repeat("-", 100)); err != nil {
		return eris.Wrap(err, "score: write table separator")
	}

	for _, s := range scored {
		title := s.Title
		if len(title) > 40 {
			title = title[:37] + "..."
		}
		line := fmt.Sprintf("%-20s %-40s %-8s %4d %4d%% %4d%% %-7s %s\n",
			s.ID, title, s.Result.GoNoGo, s.Result.Complexity,
			s.Result.SuccessProbability, s.Result.Confidence,
			s.Result.RiskLevel, s.Result.EstimatedTimeline)
		if _, err := fmt.Fprint(w, line); err != nil {
			return eris.Wrap(err, "score: write table row")
		}
	}
	return nil
}
