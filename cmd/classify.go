package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sells-group/mne-enrich/internal/config"
	"github.com/sells-group/mne-enrich/pkg/anthropic"
)

var classifyTopK int

var classifyCmd = &cobra.Command{
	Use:   "classify <activity text>",
	Short: "Classify an activity description into a NACE division",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate(config.ModeClassify); err != nil {
			return err
		}

		clf, closeIndex, err := initClassifier(ctx, anthropic.NewClient(cfg.Anthropic.Key))
		if err != nil {
			return err
		}
		defer closeIndex()

		code, err := clf.Classify(ctx, strings.Join(args, " "), classifyTopK)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), code)
		return nil
	},
}

func init() {
	classifyCmd.Flags().IntVar(&classifyTopK, "top-k", 0, "candidates to retrieve (default nace.top_k)")
	rootCmd.AddCommand(classifyCmd)
}
