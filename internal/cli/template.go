package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/hyperwake/hyperwake/internal/idgen"
	"github.com/hyperwake/hyperwake/internal/store"
	storemodel "github.com/hyperwake/hyperwake/internal/store/model"
	"github.com/spf13/cobra"
)

var (
	templateName     string
	templateVHDX     string
	templateMemoryMB uint64
	templateCPUs     uint32
	templateGPU      bool
)

var templateCmd = &cobra.Command{
	Use:   "template",
	Short: "Manage VM templates",
}

var templateRegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Register a golden-image template",
	RunE:  runTemplateRegister,
}

var templateListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered templates",
	RunE:  runTemplateList,
}

func init() {
	templateRegisterCmd.Flags().StringVar(&templateName, "name", "", "template name")
	templateRegisterCmd.Flags().StringVar(&templateVHDX, "vhdx", "", "path to the golden VHDX")
	templateRegisterCmd.Flags().Uint64Var(&templateMemoryMB, "memory", 2048, "default memory, in MB")
	templateRegisterCmd.Flags().Uint32Var(&templateCPUs, "cpus", 2, "default CPU count")
	templateRegisterCmd.Flags().BoolVar(&templateGPU, "gpu", false, "enable GPU-PV partitioning by default")
	_ = templateRegisterCmd.MarkFlagRequired("name")
	_ = templateRegisterCmd.MarkFlagRequired("vhdx")

	templateCmd.AddCommand(templateRegisterCmd, templateListCmd)
	rootCmd.AddCommand(templateCmd)
}

func runTemplateRegister(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
		templates := store.NewTemplateRepository(a.repo.DB())
		if existing, err := templates.List(ctx); err == nil && len(existing) == 0 {
			if err := checkHyperVAvailable(ctx, a); err != nil {
				return err
			}
		}

		id, err := idgen.TemplateID()
		if err != nil {
			return err
		}
		t := &storemodel.Template{
			ID:         id,
			Name:       templateName,
			VHDXPath:   templateVHDX,
			MemoryMB:   templateMemoryMB,
			CPUCount:   templateCPUs,
			GPUEnabled: templateGPU,
		}
		if err := templates.Create(ctx, t); err != nil {
			return err
		}
		fmt.Printf("registered template %s (%s)\n", t.Name, t.ID)
		return nil
	})
}

func runTemplateList(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
		templates := store.NewTemplateRepository(a.repo.DB())
		list, err := templates.List(ctx)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "NAME\tMEMORY_MB\tCPUS\tGPU\tVHDX")
		for _, t := range list {
			_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%v\t%s\n", t.Name, t.MemoryMB, t.CPUCount, t.GPUEnabled, t.VHDXPath)
		}
		return w.Flush()
	})
}
