package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/systmms/subst/internal/config"
)

func NewResolveCommand(cfg *config.Config) *cobra.Command {
	var (
		outPath string
		refresh bool
	)

	cmd := &cobra.Command{
		Use:   "resolve [file]",
		Short: "Resolve placeholders in a single document",
		Long: `Read a document, substitute every placeholder, and print the result.

Resolution is all-or-nothing: if any placeholder cannot be satisfied by a
source or a default, the command fails and nothing is written.

Examples:
  # Resolve a file to stdout
  subst resolve config.tmpl

  # Resolve stdin into a file
  cat config.tmpl | subst resolve --out config.yaml

  # Bypass cached values
  subst resolve config.tmpl --refresh`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				content []byte
				err     error
			)
			if len(args) == 1 {
				content, err = os.ReadFile(args[0])
			} else {
				content, err = io.ReadAll(cmd.InOrStdin())
			}
			if err != nil {
				return err
			}

			eng, err := buildEngine(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer eng.Close()

			if refresh {
				eng.RefreshCache()
			}

			resolved, err := eng.ResolveText(cmd.Context(), string(content))
			if err != nil {
				return err
			}

			if outPath != "" {
				return os.WriteFile(outPath, []byte(resolved), 0o600)
			}
			fmt.Fprint(cmd.OutOrStdout(), resolved)
			return nil
		},
	}

	cmd.Flags().StringVar(&outPath, "out", "", "Write the resolved document to a file instead of stdout")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Drop cached values before resolving")

	return cmd
}
