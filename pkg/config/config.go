// Package config provides the YAML job configuration for rowstitch.
// A job names an input file, an output file, and an ordered list of
// backend sections. Each backend section carries a kind, a credentials
// map, and a parameterized query or filter template. Any subset of
// backends may be configured; a job with none simply copies the input
// through.
//
// Example job:
//
//	input: customers.csv
//	output: enriched.csv
//	logging:
//	  level: info
//	backends:
//	  - name: oracle
//	    kind: oracle
//	    credentials:
//	      connection_string: oracle://scott:tiger@db:1521/xe
//	    query: SELECT * FROM users WHERE user_id = {user_id}
//	  - name: mongo
//	    kind: mongo
//	    credentials:
//	      connection_string: mongodb://localhost:27017
//	      database: mydb
//	      collection: user_profiles
//	    filter: '{"userId": "{user_id}"}'
package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/rowstitch/rowstitch/pkg/errors"
)

// Config is the top-level job configuration.
type Config struct {
	// Input is the path of the CSV file to enrich.
	Input string `yaml:"input"`
	// Output is the path the combined CSV is written to.
	Output string `yaml:"output"`
	// Logging configures the run's structured logger.
	Logging Logging `yaml:"logging"`
	// Backends lists the stores queried per row, in merge order.
	Backends []Backend `yaml:"backends"`
}

// Logging configures log output for the run.
type Logging struct {
	// Level sets logging verbosity (debug, info, warn, error)
	Level string `yaml:"level"`
	// Encoding selects json or console output
	Encoding string `yaml:"encoding"`
	// Development enables human-friendly development output
	Development bool `yaml:"development"`
}

// Backend configures one store adapter.
type Backend struct {
	// Name is the namespace prefix for this backend's output columns.
	// Defaults to Kind.
	Name string `yaml:"name"`
	// Kind selects the adapter (oracle, postgres, mongo).
	Kind string `yaml:"kind"`
	// Credentials holds connection settings. All kinds require
	// connection_string; mongo additionally requires database and
	// collection. ${VAR} references are expanded from the environment.
	Credentials map[string]string `yaml:"credentials"`
	// Query is the SQL template for relational kinds, with {column}
	// placeholders bound from the current row.
	Query string `yaml:"query"`
	// Filter is the JSON filter document template for mongo.
	Filter string `yaml:"filter"`
	// Projection is an optional JSON projection document for mongo.
	Projection string `yaml:"projection"`
}

// Load reads and validates a job configuration file. ${VAR} references
// in credential values are expanded from the environment.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to read config file")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse config file")
	}

	for i := range cfg.Backends {
		b := &cfg.Backends[i]
		if b.Name == "" {
			b.Name = b.Kind
		}
		for k, v := range b.Credentials {
			b.Credentials[k] = os.ExpandEnv(v)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.Input == "" {
		return errors.New(errors.ErrorTypeConfig, "input is required")
	}
	if c.Output == "" {
		return errors.New(errors.ErrorTypeConfig, "output is required")
	}

	seen := make(map[string]struct{}, len(c.Backends))
	for i := range c.Backends {
		b := &c.Backends[i]
		if b.Kind == "" {
			return errors.Newf(errors.ErrorTypeConfig, "backend %d: kind is required", i)
		}
		if _, dup := seen[b.Name]; dup {
			return errors.Newf(errors.ErrorTypeConfig, "backend name %q is not unique", b.Name)
		}
		seen[b.Name] = struct{}{}
		if b.Credentials["connection_string"] == "" {
			return errors.Newf(errors.ErrorTypeConfig, "backend %q: connection_string is required in credentials", b.Name)
		}
	}

	return nil
}
