// Package config loads hyperwaked's configuration from
// ~/.hyperwake/config.yaml (or a --config override), falling back to
// spec.md §6's defaults, the way internal/config (aguxez-faize-cli)
// layers viper over go-homedir.
package config

import (
	"os"
	"path/filepath"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config is hyperwaked's full runtime configuration.
type Config struct {
	StateDBPath          string  `mapstructure:"state_db_path"`
	VMRoot               string  `mapstructure:"vm_root"`
	TemplateRoot         string  `mapstructure:"template_root"`
	GuestPort            int     `mapstructure:"guest_port"`
	GuestAgentPort       int     `mapstructure:"guest_agent_port"`
	ReconcileInterval     string  `mapstructure:"reconcile_interval"`
	ProvisionConcurrency int     `mapstructure:"provision_concurrency"`
	HostMemoryHeadroom   float64 `mapstructure:"host_memory_headroom"`
	WarmCountPolicy      string  `mapstructure:"warm_count_policy"`
	DefaultResetOnRelease bool   `mapstructure:"default_reset_on_release"`
	Port                 int     `mapstructure:"port"`
}

// Load reads configuration from cfgFile (if non-empty) or
// ~/.hyperwake/config.yaml, layering spec.md defaults underneath.
func Load(cfgFile string) (*Config, error) {
	home, err := homedir.Dir()
	if err != nil {
		return nil, err
	}
	configDir := filepath.Join(home, ".hyperwake")

	setDefaults(configDir)

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(configDir)
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(configDir string) {
	viper.SetDefault("state_db_path", filepath.Join(".", "state.db"))
	viper.SetDefault("vm_root", filepath.Join(configDir, "vms"))
	viper.SetDefault("template_root", filepath.Join(configDir, "templates"))
	viper.SetDefault("guest_port", 3389)
	viper.SetDefault("guest_agent_port", 0)
	viper.SetDefault("reconcile_interval", "60s")
	viper.SetDefault("provision_concurrency", 2)
	viper.SetDefault("host_memory_headroom", 0.8)
	viper.SetDefault("warm_count_policy", "desired_count")
	viper.SetDefault("default_reset_on_release", false)
	viper.SetDefault("port", 8080)
}

// EnsureDirs creates VM root and template root if absent.
func (c *Config) EnsureDirs() error {
	if err := os.MkdirAll(c.VMRoot, 0o755); err != nil {
		return err
	}
	return os.MkdirAll(c.TemplateRoot, 0o755)
}
