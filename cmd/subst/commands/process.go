package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/systmms/subst/internal/batch"
	"github.com/systmms/subst/internal/config"
)

func NewProcessCommand(cfg *config.Config) *cobra.Command {
	var refresh bool

	cmd := &cobra.Command{
		Use:   "process <input-dir> <output-dir>",
		Short: "Resolve placeholders across a directory tree",
		Long: `Mirror an input directory into an output directory, resolving
placeholders in every processable document along the way.

Files whose extension is not in the processable set are copied through
byte for byte. A document that fails to resolve is also copied through
unchanged; the failure is reported and the batch keeps going. The command
exits non-zero when any document failed.

Examples:
  subst process ./templates ./rendered
  subst process ./templates ./rendered --refresh`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := buildEngine(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer eng.Close()

			if refresh {
				eng.RefreshCache()
			}

			processor := batch.New(eng, cfg.Logger, cfg.Definition.Extensions)
			report, err := processor.Run(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}

			cfg.Logger.Info("Processed %d document(s), copied %d file(s)",
				report.Processed, report.Copied)
			if !report.Failed() {
				return nil
			}

			for _, failure := range report.Failures {
				cfg.Logger.Error("%v", failure.Err)
			}
			return fmt.Errorf("%d document(s) failed to resolve", len(report.Failures))
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "Drop cached values before processing")

	return cmd
}
