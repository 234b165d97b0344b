package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/vaultarc/vaultarc/internal/core"
)

func defaultSocketPath() string {
	return "/tmp/vaultarc-control.sock"
}

// Load reads the process-wide GlobalConfig from a YAML file at path.
// Defaults are seeded first so a partial config file only overrides
// what it names.
func Load(path string) (*GlobalConfig, error) {
	cfg := defaultGlobalConfig()
	if path == "" {
		return cfg, nil
	}
	if err := loadConfigFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadConfigFile(path string, cfg *GlobalConfig) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("%w: %v", core.ErrConfigInvalid, err)
	}
	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("%w: %v", core.ErrConfigInvalid, err)
	}
	return nil
}

// LoadJob reads a JobConfig from a YAML job file at path.
func LoadJob(path string) (*JobConfig, error) {
	job := defaultJobConfig()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrConfigInvalid, err)
	}
	if err := v.Unmarshal(job); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrConfigInvalid, err)
	}

	if err := validateJob(job); err != nil {
		return nil, err
	}
	return job, nil
}

func validateJob(job *JobConfig) error {
	switch job.Operation {
	case "create", "test", "compare", "restore", "convert":
	default:
		return fmt.Errorf("%w: unknown operation %q", core.ErrConfigInvalid, job.Operation)
	}
	if len(job.Storages) == 0 {
		return fmt.Errorf("%w: job must name at least one storage", core.ErrConfigInvalid)
	}
	if job.Operation == "create" && len(job.Sources) == 0 {
		return fmt.Errorf("%w: create job must name at least one source", core.ErrConfigInvalid)
	}
	return nil
}
