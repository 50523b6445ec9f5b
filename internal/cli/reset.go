package cli

import (
	"context"
	"errors"
	"log"

	"confetti-quiz/internal/config"
	"github.com/spf13/cobra"
)

// NewResetCmd clears persisted progress for a page path.
func NewResetCmd(configPath *string) *cobra.Command {
	var path string
	var local bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Remove saved quiz progress for a page",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReset(cmd.Context(), *configPath, path, local)
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "page path identifying the quiz")
	cmd.Flags().BoolVar(&local, "local", false, "reset the sqlite store used by play instead of redis")
	return cmd
}

var errNoDurableStore = errors.New("no durable progress store configured (set redis.addr, or sqlite.path with --local)")

func runReset(ctx context.Context, configPath, path string, local bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	return resetWithConfig(ctx, cfg, path, local)
}

func resetWithConfig(ctx context.Context, cfg config.Config, path string, local bool) error {
	d, err := buildDeps(ctx, cfg, local)
	if err != nil {
		return err
	}
	defer d.close()
	if !d.durable {
		return errNoDurableStore
	}

	service, err := d.service()
	if err != nil {
		return err
	}
	path = defaultPath(cfg, path)
	if err := service.Reset(ctx, path); err != nil {
		return err
	}
	log.Printf("progress cleared for %s", path)
	return nil
}
