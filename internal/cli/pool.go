package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/hyperwake/hyperwake/internal/apierror"
	"github.com/hyperwake/hyperwake/internal/idgen"
	"github.com/hyperwake/hyperwake/internal/store"
	storemodel "github.com/hyperwake/hyperwake/internal/store/model"
	"github.com/spf13/cobra"
)

var (
	poolName                  string
	poolTemplate              string
	poolDesiredCount          int
	poolWarmCount             int
	poolPerHostCap            int
	poolDefaultResetOnRelease bool
	poolProvisionCount        int
)

var poolCmd = &cobra.Command{
	Use:   "pool",
	Short: "Manage VM pools",
}

var poolCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a pool bound to a template",
	RunE:  runPoolCreate,
}

var poolProvisionCmd = &cobra.Command{
	Use:   "provision <pool>",
	Short: "Clone and define n more VMs for a pool",
	Args:  cobra.ExactArgs(1),
	RunE:  runPoolProvision,
}

var poolPrepareCmd = &cobra.Command{
	Use:   "prepare <pool>",
	Short: "Boot, checkpoint, and save every Off VM in a pool",
	Args:  cobra.ExactArgs(1),
	RunE:  runPoolPrepare,
}

var poolStatusCmd = &cobra.Command{
	Use:   "status <pool>",
	Short: "Show per-state VM counts for a pool",
	Args:  cobra.ExactArgs(1),
	RunE:  runPoolStatus,
}

var poolListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pools",
	RunE:  runPoolList,
}

func init() {
	poolCreateCmd.Flags().StringVar(&poolName, "name", "", "pool name")
	poolCreateCmd.Flags().StringVar(&poolTemplate, "template", "", "template name to clone from")
	poolCreateCmd.Flags().IntVar(&poolDesiredCount, "count", 1, "desired VM count")
	poolCreateCmd.Flags().IntVar(&poolWarmCount, "warm-count", 0, "VMs to keep Saved and ready (default: the value of --count)")
	poolCreateCmd.Flags().IntVar(&poolPerHostCap, "per-host-cap", 0, "per-host VM cap recorded on the pool (stored only; acquire and prepare do not enforce it)")
	poolCreateCmd.Flags().BoolVar(&poolDefaultResetOnRelease, "reset-on-release", false, "restore to the clean checkpoint on every release by default")
	_ = poolCreateCmd.MarkFlagRequired("name")
	_ = poolCreateCmd.MarkFlagRequired("template")

	poolProvisionCmd.Flags().IntVar(&poolProvisionCount, "count", 1, "number of additional VMs to provision")

	poolCmd.AddCommand(poolCreateCmd, poolProvisionCmd, poolPrepareCmd, poolStatusCmd, poolListCmd)
	rootCmd.AddCommand(poolCmd)
}

func runPoolCreate(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
		templates := store.NewTemplateRepository(a.repo.DB())
		tmpl, err := templates.GetByName(ctx, poolTemplate)
		if err != nil {
			return apierror.WrapError(apierror.ErrNotFound, "template "+poolTemplate+" not found", err)
		}
		id, err := idgen.PoolID()
		if err != nil {
			return err
		}
		warmCount := poolWarmCount
		if !cmd.Flags().Changed("warm-count") {
			warmCount = poolDesiredCount
		}
		p := &storemodel.Pool{
			ID:                    id,
			Name:                  poolName,
			TemplateID:            tmpl.ID,
			DesiredCount:          poolDesiredCount,
			WarmCount:             warmCount,
			PerHostCap:            poolPerHostCap,
			DefaultResetOnRelease: poolDefaultResetOnRelease,
		}
		pools := store.NewPoolRepository(a.repo.DB())
		if err := pools.Create(ctx, p); err != nil {
			return err
		}
		fmt.Printf("created pool %s (%s) on template %s\n", p.Name, p.ID, tmpl.Name)
		return nil
	})
}

func runPoolProvision(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
		if err := a.pool.Provision(ctx, args[0], poolProvisionCount); err != nil {
			return err
		}
		fmt.Printf("provisioned %d VM(s) for pool %s\n", poolProvisionCount, args[0])
		return nil
	})
}

func runPoolPrepare(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
		if err := a.pool.Prepare(ctx, args[0]); err != nil {
			return err
		}
		fmt.Printf("prepared pool %s\n", args[0])
		return nil
	})
}

func runPoolStatus(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
		pools := store.NewPoolRepository(a.repo.DB())
		vms := store.NewVMRepository(a.repo.DB())
		p, err := pools.GetByName(ctx, args[0])
		if err != nil {
			return apierror.WrapError(apierror.ErrNotFound, "pool "+args[0]+" not found", err)
		}
		list, err := vms.ListByPool(ctx, p.ID)
		if err != nil {
			return err
		}
		counts := map[string]int{}
		for _, v := range list {
			counts[v.State]++
		}
		fmt.Printf("pool %s: %d VM(s), desired=%d warm_target=%d\n", p.Name, len(list), p.DesiredCount, p.WarmCount)
		for state, n := range counts {
			fmt.Printf("  %-8s %d\n", state, n)
		}
		return nil
	})
}

func runPoolList(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
		pools := store.NewPoolRepository(a.repo.DB())
		list, err := pools.List(ctx)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "NAME\tDESIRED\tWARM\tRESET_ON_RELEASE")
		for _, p := range list {
			_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%v\n", p.Name, p.DesiredCount, p.WarmCount, p.DefaultResetOnRelease)
		}
		return w.Flush()
	})
}
