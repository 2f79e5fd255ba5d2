// Package idgen generates sortable, collision-free IDs for entities the
// store does not name after a user-supplied string (leases, internal
// template/pool IDs). VM names are assigned deterministically by the
// pool controller instead (<pool>-<index>), per spec.md's naming
// convention.
package idgen

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/sony/sonyflake"
)

// Generator wraps a Sonyflake instance.
type Generator struct {
	sf *sonyflake.Sonyflake
}

var (
	defaultGenerator     *Generator
	defaultGeneratorOnce sync.Once
)

func initDefaultGenerator() {
	defaultGenerator = New()
}

// Default returns the process-wide default generator.
func Default() *Generator {
	defaultGeneratorOnce.Do(initDefaultGenerator)
	return defaultGenerator
}

// New creates a new ID generator.
func New() *Generator {
	sf := sonyflake.NewSonyflake(sonyflake.Settings{
		StartTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	if sf == nil {
		sf = sonyflake.NewSonyflake(sonyflake.Settings{
			StartTime: time.Now(),
			MachineID: func() (uint16, error) { return uint16(os.Getpid()), nil },
		})
	}
	return &Generator{sf: sf}
}

func (g *Generator) withPrefix(prefix, errMsg string) (string, error) {
	id, err := g.sf.NextID()
	if err != nil {
		return "", fmt.Errorf("%s: %w", errMsg, err)
	}
	return fmt.Sprintf("%s-%d", prefix, id), nil
}

// LeaseID generates a lease ID (format: lease-{flake}).
func (g *Generator) LeaseID() (string, error) { return g.withPrefix("lease", "generate lease id") }

// TemplateID generates a template ID (format: tpl-{flake}).
func (g *Generator) TemplateID() (string, error) { return g.withPrefix("tpl", "generate template id") }

// PoolID generates a pool ID (format: pool-{flake}).
func (g *Generator) PoolID() (string, error) { return g.withPrefix("pool", "generate pool id") }

// VMID generates a VM ID (format: vm-{flake}).
func (g *Generator) VMID() (string, error) { return g.withPrefix("vm", "generate vm id") }

// LeaseID generates a lease ID using the default generator.
func LeaseID() (string, error) { return Default().LeaseID() }

// TemplateID generates a template ID using the default generator.
func TemplateID() (string, error) { return Default().TemplateID() }

// PoolID generates a pool ID using the default generator.
func PoolID() (string, error) { return Default().PoolID() }

// VMID generates a VM ID using the default generator.
func VMID() (string, error) { return Default().VMID() }
