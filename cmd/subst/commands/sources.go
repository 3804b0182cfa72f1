package commands

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/systmms/subst/internal/config"
	"github.com/systmms/subst/internal/sources"
)

func NewSourcesCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "List configured sources and their status",
		Long: `Show every known source type, whether it is enabled in the
configuration, and whether it initialized successfully.

A source that is enabled but fails to initialize is dropped at engine
startup; placeholders declaring it fall through to the rest of the chain.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := buildEngine(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer eng.Close()

			active := make(map[string]bool)
			for _, name := range eng.Sources() {
				active[name] = true
			}

			registry := sources.NewRegistry()
			names := registry.SupportedTypes()
			for _, name := range cfg.Definition.EnabledSources() {
				if !registry.IsSupported(name) {
					names = append(names, name)
				}
			}
			sort.Strings(names)

			out := cmd.OutOrStdout()
			for _, name := range names {
				sc := cfg.Definition.Source(name)
				switch {
				case !sc.Enabled:
					fmt.Fprintf(out, "  %-10s disabled\n", name)
				case active[name]:
					fmt.Fprintf(out, "  %-10s ready (timeout %s)\n", name, sc.Timeout())
				default:
					fmt.Fprintf(out, "  %-10s enabled but unavailable\n", name)
				}
			}
			return nil
		},
	}

	return cmd
}
