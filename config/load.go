package config

import (
	"github.com/cameronmore/authd/env"
	"github.com/spf13/pflag"
)

// Sources names where Load reads settings from. Empty fields are skipped.
type Sources struct {
	EnvFile  string
	JSONFile string
	Flags    *pflag.FlagSet
}

// Load builds a validated Config: defaults, then the .env file merged with
// AUTHD_* process variables, then the JSON file, then changed flags.
func Load(src Sources) (*Config, error) {
	c := &Config{}
	c.LoadDefaults()

	fileVars := map[string]string{}
	if src.EnvFile != "" {
		var err error
		fileVars, err = env.ProcessEnv(src.EnvFile)
		if err != nil {
			return nil, err
		}
	}
	if err := c.applyEnv(env.Merge(fileVars, EnvPrefix)); err != nil {
		return nil, err
	}

	if src.JSONFile != "" {
		if err := c.loadJSON(src.JSONFile); err != nil {
			return nil, err
		}
	}

	if src.Flags != nil {
		if err := c.ApplyFlags(src.Flags); err != nil {
			return nil, err
		}
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}
