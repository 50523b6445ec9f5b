package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"confetti-quiz/internal/app"
	"confetti-quiz/internal/config"
	"confetti-quiz/internal/event"
	"confetti-quiz/internal/feedback"
	"confetti-quiz/internal/tui"
	"github.com/spf13/cobra"
)

type playFlags struct {
	path          string
	questionsFile string
	noColor       bool
}

// NewPlayCmd runs the quiz widget in the terminal.
func NewPlayCmd(configPath *string) *cobra.Command {
	flags := &playFlags{}
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play a quiz in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(cmd.Context(), *configPath, flags)
		},
	}
	cmd.Flags().StringVar(&flags.path, "path", "", "page path identifying the quiz")
	cmd.Flags().StringVar(&flags.questionsFile, "questions", "", "JSON file with [{question, answer}] records")
	cmd.Flags().BoolVar(&flags.noColor, "no-color", false, "disable colors")
	return cmd
}

func runPlay(ctx context.Context, configPath string, flags *playFlags) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	d, err := buildDeps(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer d.close()

	service, err := d.service()
	if err != nil {
		return err
	}

	var payload string
	if flags.questionsFile != "" {
		data, err := os.ReadFile(flags.questionsFile)
		if err != nil {
			return err
		}
		payload = string(data)
	}

	publisher, err := event.NewEventPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange)
	if err != nil {
		return err
	}
	defer publisher.Close()

	engine := feedback.NewEngine(feedback.EngineOptions{
		Defaults: feedback.FireOptions{
			Duration:  config.TTLDuration(cfg.Confetti.Duration, feedback.DefaultDuration),
			Particles: cfg.Confetti.Particles,
		},
		FrameInterval: 33 * time.Millisecond,
	})
	emitter := feedback.NewEmitter(engine, publisher)

	ctrl := service.Attach(ctx, app.AttachRequest{
		Path:      defaultPath(cfg, flags.path),
		Questions: payload,
		Emitter:   emitter,
	})
	return tui.Run(ctx, ctrl, engine, tui.Options{NoColor: flags.noColor})
}
