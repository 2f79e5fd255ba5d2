package cli

import (
	"context"
	"fmt"

	"github.com/hyperwake/hyperwake/internal/apierror"
	"github.com/spf13/cobra"
)

// doctorCmd is SPEC_FULL.md §9's supplemented preflight: confirm the
// Hyper-V feature is enabled and the state store opens cleanly before an
// operator trusts the rest of the CLI.
var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that Hyper-V is available and the state store is healthy",
	RunE:  runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
		ok, err := a.driver.IsAvailable(ctx)
		if err != nil {
			return apierror.WrapError(apierror.ErrTransientHypervisor, "check Hyper-V availability", err)
		}
		if !ok {
			fmt.Println("Hyper-V: NOT AVAILABLE (enable the Hyper-V Windows feature and retry)")
		} else {
			fmt.Println("Hyper-V: available")
		}
		fmt.Printf("state store: %s (opened)\n", a.cfg.StateDBPath)
		if !ok {
			return apierror.WrapError(apierror.ErrUsage, "Hyper-V is not available on this host", nil)
		}
		return nil
	})
}

// checkHyperVAvailable is the same preflight doctorCmd runs, called
// silently before serve starts and before the first template is
// registered, so a misconfigured host fails fast instead of surfacing
// as an opaque TransientHypervisorError on every later call.
func checkHyperVAvailable(ctx context.Context, a *app) error {
	ok, err := a.driver.IsAvailable(ctx)
	if err != nil {
		return apierror.WrapError(apierror.ErrTransientHypervisor, "check Hyper-V availability", err)
	}
	if !ok {
		return apierror.WrapError(apierror.ErrUsage, "Hyper-V is not available on this host; run 'hyperwaked doctor' for details", nil)
	}
	return nil
}
