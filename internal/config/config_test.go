package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaultsWithNoConfigFile(t *testing.T) {
	viper.Reset()
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 3389, cfg.GuestPort)
	require.Equal(t, 0, cfg.GuestAgentPort)
	require.Equal(t, "60s", cfg.ReconcileInterval)
	require.Equal(t, 0.8, cfg.HostMemoryHeadroom)
	require.Equal(t, "desired_count", cfg.WarmCountPolicy)
	require.False(t, cfg.DefaultResetOnRelease)
	require.Equal(t, 8080, cfg.Port)
}

func TestLoadOverridesFromExplicitFile(t *testing.T) {
	viper.Reset()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("guest_port: 5985\nport: 9090\n"), 0o644))

	cfg, err := Load(cfgPath)
	require.NoError(t, err)
	require.Equal(t, 5985, cfg.GuestPort)
	require.Equal(t, 9090, cfg.Port)
	// Unset fields still fall back to the compiled-in default.
	require.Equal(t, "desired_count", cfg.WarmCountPolicy)
}

func TestEnsureDirsCreatesVMAndTemplateRoots(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{
		VMRoot:       filepath.Join(dir, "vms"),
		TemplateRoot: filepath.Join(dir, "templates"),
	}
	require.NoError(t, cfg.EnsureDirs())

	info, err := os.Stat(cfg.VMRoot)
	require.NoError(t, err)
	require.True(t, info.IsDir())

	info, err = os.Stat(cfg.TemplateRoot)
	require.NoError(t, err)
	require.True(t, info.IsDir())
}
