package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/bounty-cli/internal/model"
)

var importFilePath string

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a bounty corpus from a JSON file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		data, err := os.ReadFile(importFilePath)
		if err != nil {
			return eris.Wrapf(err, "import: read %s", importFilePath)
		}

		var bounties []model.Bounty
		if err := json.Unmarshal(data, &bounties); err != nil {
			return eris.Wrapf(err, "import: parse %s", importFilePath)
		}

		valid, invalid := filterValidBounties(bounties)

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		n, err := env.Store.ImportBounties(ctx, valid)
		if err != nil {
			return eris.Wrap(err, "import: store")
		}

		zap.L().Info("import complete",
			zap.Int64("imported", n),
			zap.Int("invalid", invalid),
			zap.String("file", importFilePath),
		)
		return nil
	},
}

// filterValidBounties drops records that fail validation; each one is
// reported and skipped so the rest of the corpus still imports.
func filterValidBounties(bounties []model.Bounty) ([]model.Bounty, int) {
	valid := bounties[:0]
	var invalid int
	for i := range bounties {
		if err := bounties[i].Validate(); err != nil {
			invalid++
			zap.L().Warn("skipping invalid record", zap.Error(err))
			continue
		}
		valid = append(valid, bounties[i])
	}
	return valid, invalid
}

func init() {
	importCmd.Flags().StringVar(&importFilePath, "file", "", "path to JSON corpus file (required)")
	_ = importCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(importCmd)
}
