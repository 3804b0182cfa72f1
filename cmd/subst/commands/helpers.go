package commands

import (
	"context"

	"github.com/systmms/subst/internal/config"
	"github.com/systmms/subst/internal/engine"
)

// buildEngine loads the configuration and constructs an engine with every
// enabled source initialized.
func buildEngine(ctx context.Context, cfg *config.Config) (*engine.Engine, error) {
	if err := cfg.Load(); err != nil {
		return nil, err
	}
	return engine.New(ctx, cfg)
}
