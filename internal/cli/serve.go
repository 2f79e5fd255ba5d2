package cli

import (
	"context"
	"time"

	"github.com/hyperwake/hyperwake/internal/api"
	"github.com/hyperwake/hyperwake/internal/poolctl"
	"github.com/hyperwake/hyperwake/internal/seed"
	"github.com/jimmicro/grace"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	servePort int
	seedFile  string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the reconciler loop",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (default from config)")
	serveCmd.Flags().StringVar(&seedFile, "seed", "", "YAML file of templates/pools to create on startup if missing")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
		if err := checkHyperVAvailable(ctx, a); err != nil {
			return err
		}

		port := servePort
		if port == 0 {
			port = a.cfg.Port
		}

		if seedFile != "" {
			f, err := seed.Load(seedFile)
			if err != nil {
				return err
			}
			if err := seed.Apply(ctx, a.repo, f); err != nil {
				return err
			}
		}

		interval, err := time.ParseDuration(a.cfg.ReconcileInterval)
		if err != nil {
			interval = 60 * time.Second
		}

		httpAPI := api.New(a.pool, port)
		reconcileLoop := poolctl.NewReconcileLoop(a.pool, interval)

		services := []grace.Grace{httpAPI, reconcileLoop}
		shepherd := grace.NewShepherd(
			services,
			grace.WithTimeout(30*time.Second),
			grace.WithLogger(&zerologGraceLogger{}),
		)
		shepherd.Start(ctx)
		return nil
	})
}

// zerologGraceLogger satisfies grace.Logger, the way
// internal/jvp/jvp.go's zerologLogger does for its own shepherd.
type zerologGraceLogger struct{}

func (l *zerologGraceLogger) Info(msg string, args ...interface{}) {
	logEvent(zerolog.DefaultContextLogger.Info(), msg, args...)
}

func (l *zerologGraceLogger) Error(msg string, args ...interface{}) {
	logEvent(zerolog.DefaultContextLogger.Error(), msg, args...)
}

func logEvent(event *zerolog.Event, msg string, args ...interface{}) {
	if len(args) > 0 {
		event.Msgf(msg, args...)
		return
	}
	event.Msg(msg)
}
