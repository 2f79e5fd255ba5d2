// Package cli is hyperwaked's command surface (spec.md §6's CLI
// surface), one file per verb, wired the way
// aguxez-faize-cli/internal/cmd lays its subcommands out under a shared
// rootCmd.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/hyperwake/hyperwake/internal/apierror"
	"github.com/hyperwake/hyperwake/internal/config"
	"github.com/hyperwake/hyperwake/internal/hyperv"
	"github.com/hyperwake/hyperwake/internal/poolctl"
	"github.com/hyperwake/hyperwake/internal/store"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "hyperwaked",
	Short: "Warm-pool orchestrator for Hyper-V VMs",
	Long: `hyperwaked turns Hyper-V's save-state/resume primitive into a pool of
warm, ready-to-claim VMs for automation workloads.

Register a template, create a pool, provision it, and bring it to its
warm set:
  hyperwaked template register --name base --vhdx C:\images\base.vhdx
  hyperwaked pool create --name workers --template base --count 4
  hyperwaked pool provision workers --count 4
  hyperwaked pool prepare workers

Then serve the HTTP API so clients can acquire/release VMs:
  hyperwaked serve --port 8080`,
}

// Execute runs the CLI, returning the apierror-mapped exit code spec.md
// §6 defines (0 success, 2 usage, 3 not-found, 4 conflict, 5 transient,
// 6 quarantine/unrecoverable, 1 other).
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return apierror.ExitCode(err)
	}
	return 0
}

func init() {
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	zerolog.DefaultContextLogger = &logger

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.hyperwake/config.yaml)")
}

// app bundles the dependencies every subcommand needs, built fresh per
// invocation from config.
type app struct {
	cfg    *config.Config
	repo   *store.Repository
	driver hyperv.Driver
	pool   *poolctl.Controller
}

func bootstrap() (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, apierror.WrapError(apierror.ErrUsage, "load config", err)
	}
	if err := cfg.EnsureDirs(); err != nil {
		return nil, apierror.WrapError(apierror.ErrInternal, "create state directories", err)
	}
	repo, err := store.New(cfg.StateDBPath)
	if err != nil {
		return nil, apierror.WrapError(apierror.ErrInternal, "open state store", err)
	}
	driver := hyperv.New()
	pool := poolctl.New(repo, driver, poolctl.Config{
		ProvisionConcurrency: cfg.ProvisionConcurrency,
		GuestPort:            cfg.GuestPort,
		GuestAgentPort:       cfg.GuestAgentPort,
	})
	return &app{cfg: cfg, repo: repo, driver: driver, pool: pool}, nil
}

func (a *app) close() { _ = a.repo.Close() }

func withApp(ctx context.Context, fn func(context.Context, *app) error) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.close()
	return fn(ctx, a)
}
