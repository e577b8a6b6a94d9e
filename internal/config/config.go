// Package config loads Kishu's configuration sections
// ({CLI, PLANNER, JUPYTERINT, EXPERIMENT}) via viper, following
// the config-loading shape used by cuemby-warren and loog-project-loog.
package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

// CLIConfig controls CLI presentation behavior.
type CLIConfig struct {
	Verbose bool `mapstructure:"verbose"`
	FeDepth int  `mapstructure:"fe_depth"`
}

// PlannerConfig controls Planner cost-model and checkpoint behavior.
type PlannerConfig struct {
	IncrementalStorage       bool    `mapstructure:"incremental_storage"`
	AutoCommitOnSkipNotebook bool    `mapstructure:"auto_commit_on_skip_notebook"`
	RerunCostWeight          float64 `mapstructure:"rerun_cost_weight"`
}

// JupyterIntConfig controls the host-integration layer's polling.
type JupyterIntConfig struct {
	NotebookPollBackoffMinMs int `mapstructure:"notebook_poll_backoff_min_ms"`
	NotebookPollBackoffMaxMs int `mapstructure:"notebook_poll_backoff_max_ms"`
}

// ExperimentConfig gates unstable/frontend-oriented features.
type ExperimentConfig struct {
	EnableFeCommands bool `mapstructure:"enable_fe_commands"`
}

// Config is the top-level, fully-resolved configuration object.
type Config struct {
	CLI        CLIConfig        `mapstructure:"cli"`
	Planner    PlannerConfig    `mapstructure:"planner"`
	JupyterInt JupyterIntConfig `mapstructure:"jupyterint"`
	Experiment ExperimentConfig `mapstructure:"experiment"`
}

// Default returns the configuration used when no config file is
// present, so Kishu runs with sane behavior out of the box.
func Default() Config {
	return Config{
		CLI: CLIConfig{
			Verbose: false,
			FeDepth: 1,
		},
		Planner: PlannerConfig{
			IncrementalStorage:       true,
			AutoCommitOnSkipNotebook: true,
			RerunCostWeight:          1.0,
		},
		JupyterInt: JupyterIntConfig{
			NotebookPollBackoffMinMs: 200,
			NotebookPollBackoffMaxMs: 1000,
		},
		Experiment: ExperimentConfig{
			EnableFeCommands: false,
		},
	}
}

// Load reads configuration from KISHU_CONFIG (a YAML file path) if
// set, layering it over Default(); a missing or unset file is not an
// error. Environment variables prefixed KISHU_ override file values,
// e.g. KISHU_PLANNER_INCREMENTAL_STORAGE=false.
func Load() (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetEnvPrefix("KISHU")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := os.Getenv("KISHU_CONFIG"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil && !os.IsNotExist(err) {
			return cfg, err
		}
	}

	setDefaults(v, cfg)

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("cli.verbose", cfg.CLI.Verbose)
	v.SetDefault("cli.fe_depth", cfg.CLI.FeDepth)
	v.SetDefault("planner.incremental_storage", cfg.Planner.IncrementalStorage)
	v.SetDefault("planner.auto_commit_on_skip_notebook", cfg.Planner.AutoCommitOnSkipNotebook)
	v.SetDefault("planner.rerun_cost_weight", cfg.Planner.RerunCostWeight)
	v.SetDefault("jupyterint.notebook_poll_backoff_min_ms", cfg.JupyterInt.NotebookPollBackoffMinMs)
	v.SetDefault("jupyterint.notebook_poll_backoff_max_ms", cfg.JupyterInt.NotebookPollBackoffMaxMs)
	v.SetDefault("experiment.enable_fe_commands", cfg.Experiment.EnableFeCommands)
}

// IsTestMode reports whether KISHU_TEST_MODE is set, which enables
// deterministic counter commit ids and disables notebook-save side
// effects.
func IsTestMode() bool {
	return os.Getenv("KISHU_TEST_MODE") != ""
}
