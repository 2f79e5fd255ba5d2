// Package seed loads a declarative templates/pools file at startup
// (`serve --seed pools.yaml`), the way
// internal/jvp/service/template_store.go persists template metadata as
// YAML, adapted here to describe desired state instead of one template
// per file.
package seed

import (
	"context"
	"fmt"
	"os"

	"github.com/hyperwake/hyperwake/internal/apierror"
	"github.com/hyperwake/hyperwake/internal/idgen"
	"github.com/hyperwake/hyperwake/internal/store"
	storemodel "github.com/hyperwake/hyperwake/internal/store/model"
	"gopkg.in/yaml.v3"
)

// Template is one seed-file template entry.
type Template struct {
	Name       string `yaml:"name"`
	VHDXPath   string `yaml:"vhdx_path"`
	MemoryMB   uint64 `yaml:"memory_mb"`
	CPUCount   uint32 `yaml:"cpu_count"`
	GPUEnabled bool   `yaml:"gpu_enabled"`
}

// Pool is one seed-file pool entry, referencing a template by name.
type Pool struct {
	Name                  string `yaml:"name"`
	Template              string `yaml:"template"`
	DesiredCount          int    `yaml:"desired_count"`
	WarmCount             int    `yaml:"warm_count"`
	PerHostCap            int    `yaml:"per_host_cap"`
	DefaultResetOnRelease bool   `yaml:"default_reset_on_release"`
}

// File is the top-level seed document shape.
type File struct {
	Templates []Template `yaml:"templates"`
	Pools     []Pool     `yaml:"pools"`
}

// Load parses path into a File.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	return &f, nil
}

// Apply idempotently creates every template and pool named in f that
// does not already exist by name. Existing rows are left untouched —
// the seed file describes a floor, not a full reconciliation target.
func Apply(ctx context.Context, repo *store.Repository, f *File) error {
	templates := store.NewTemplateRepository(repo.DB())
	pools := store.NewPoolRepository(repo.DB())

	templateIDByName := map[string]string{}
	for _, t := range f.Templates {
		if existing, err := templates.GetByName(ctx, t.Name); err == nil {
			templateIDByName[t.Name] = existing.ID
			continue
		}
		id, err := idgen.TemplateID()
		if err != nil {
			return err
		}
		row := &storemodel.Template{
			ID:         id,
			Name:       t.Name,
			VHDXPath:   t.VHDXPath,
			MemoryMB:   t.MemoryMB,
			CPUCount:   t.CPUCount,
			GPUEnabled: t.GPUEnabled,
		}
		if err := templates.Create(ctx, row); err != nil {
			return fmt.Errorf("seed template %s: %w", t.Name, err)
		}
		templateIDByName[t.Name] = id
	}

	for _, p := range f.Pools {
		if _, err := pools.GetByName(ctx, p.Name); err == nil {
			continue
		}
		templateID, ok := templateIDByName[p.Template]
		if !ok {
			existing, err := templates.GetByName(ctx, p.Template)
			if err != nil {
				return apierror.WrapError(apierror.ErrUsage, "seed pool "+p.Name+" references unknown template "+p.Template, err)
			}
			templateID = existing.ID
		}
		id, err := idgen.PoolID()
		if err != nil {
			return err
		}
		row := &storemodel.Pool{
			ID:                    id,
			Name:                  p.Name,
			TemplateID:            templateID,
			DesiredCount:          p.DesiredCount,
			WarmCount:             p.WarmCount,
			PerHostCap:            p.PerHostCap,
			DefaultResetOnRelease: p.DefaultResetOnRelease,
		}
		if err := pools.Create(ctx, row); err != nil {
			return fmt.Errorf("seed pool %s: %w", p.Name, err)
		}
	}
	return nil
}
