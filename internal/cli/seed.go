package cli

import (
	"context"
	"fmt"
	"log"
	"os"

	"confetti-quiz/internal/app"
	"confetti-quiz/internal/config"
	pgloader "confetti-quiz/internal/infra/postgres"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"
)

// NewSeedCmd stores a question set in Postgres under a slug.
func NewSeedCmd(configPath *string) *cobra.Command {
	var slug, file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Publish a question set for a page slug",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context(), *configPath, slug, file)
		},
	}
	cmd.Flags().StringVar(&slug, "slug", "", "page slug (last path segment)")
	cmd.Flags().StringVar(&file, "file", "", "JSON file with [{question, answer}] records")
	_ = cmd.MarkFlagRequired("slug")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func runSeed(ctx context.Context, configPath, slug, file string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	set, err := app.ParseQuestions(string(data))
	if err != nil {
		return err
	}
	if err := runMigrationsWithConfig(ctx, cfg); err != nil {
		return err
	}

	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pgloader.NewQuestionLoader(pool).SaveQuestions(ctx, slug, set); err != nil {
		return err
	}
	log.Printf("seeded %d questions for %s", set.Len(), slug)
	return nil
}
