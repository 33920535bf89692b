// Package config loads the YAML cluster/runtime configuration consumed by
// cmd/paxosd. Loading is a thin YAML-unmarshal-plus-env-expansion step.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Member identifies one peer in the cluster.
type Member struct {
	ID      string `yaml:"id"`
	Address string `yaml:"address"`
}

// Config is the root of the YAML configuration document.
type Config struct {
	Node struct {
		ID     string `yaml:"id"`
		Listen string `yaml:"listen"`
	} `yaml:"node"`

	Cluster struct {
		Members []Member `yaml:"members"`
	} `yaml:"cluster"`

	RPC struct {
		DialTimeoutMS int `yaml:"dial-timeout-ms"`
		CallTimeoutMS int `yaml:"call-timeout-ms"`
	} `yaml:"rpc"`

	Acceptor struct {
		PreparedTTLSeconds int `yaml:"prepared-ttl-s"`
		AcceptedTTLSeconds int `yaml:"accepted-ttl-s"`
		SweepIntervalSec   int `yaml:"sweep-interval-s"`
		FailureInjection   struct {
			Enabled    bool    `yaml:"enabled"`
			Rate       float64 `yaml:"rate"`
			MaxDelayMS int     `yaml:"max-delay-ms"`
		} `yaml:"failure-injection"`
	} `yaml:"acceptor"`

	Proposer struct {
		InFlightTTLSeconds int `yaml:"inflight-ttl-s"`
		SweepIntervalSec   int `yaml:"sweep-interval-s"`
	} `yaml:"proposer"`

	Learner struct {
		CommitHistoryTTLSeconds int `yaml:"commit-history-ttl-s"`
	} `yaml:"learner"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	Metrics struct {
		Listen string `yaml:"listen"`
	} `yaml:"metrics"`
}

// Load reads and parses the YAML file at path, expanding ${VAR} references
// against the process environment (strict: an unset variable is a load
// error).
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded, err := expandEnvStrict(string(raw))
	if err != nil {
		return nil, fmt.Errorf("expand config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.RPC.DialTimeoutMS == 0 {
		cfg.RPC.DialTimeoutMS = 2000
	}
	if cfg.RPC.CallTimeoutMS == 0 {
		cfg.RPC.CallTimeoutMS = 2000
	}
	if cfg.Acceptor.PreparedTTLSeconds == 0 {
		cfg.Acceptor.PreparedTTLSeconds = 60
	}
	if cfg.Acceptor.AcceptedTTLSeconds == 0 {
		cfg.Acceptor.AcceptedTTLSeconds = 120
	}
	if cfg.Acceptor.SweepIntervalSec == 0 {
		cfg.Acceptor.SweepIntervalSec = 2
	}
	if cfg.Proposer.InFlightTTLSeconds == 0 {
		cfg.Proposer.InFlightTTLSeconds = 30
	}
	if cfg.Proposer.SweepIntervalSec == 0 {
		cfg.Proposer.SweepIntervalSec = 1
	}
	if cfg.Learner.CommitHistoryTTLSeconds == 0 {
		cfg.Learner.CommitHistoryTTLSeconds = 300
	}
	if cfg.Acceptor.FailureInjection.MaxDelayMS == 0 {
		cfg.Acceptor.FailureInjection.MaxDelayMS = 5000
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

func (c *Config) validate() error {
	if c.Node.ID == "" {
		return fmt.Errorf("node.id is required")
	}
	if len(c.Cluster.Members) == 0 {
		return fmt.Errorf("cluster.members must be non-empty")
	}
	found := false
	for _, m := range c.Cluster.Members {
		if m.ID == c.Node.ID {
			found = true
		}
	}
	if !found {
		return fmt.Errorf("node.id %q is not present in cluster.members", c.Node.ID)
	}
	return nil
}

// Quorum returns the quorum size for the configured cluster: floor(N/2)+1.
func (c *Config) Quorum() int {
	return len(c.Cluster.Members)/2 + 1
}

// DialTimeout and CallTimeout convert the millisecond config fields to
// time.Duration for call sites.
func (c *Config) DialTimeout() time.Duration {
	return time.Duration(c.RPC.DialTimeoutMS) * time.Millisecond
}

func (c *Config) CallTimeout() time.Duration {
	return time.Duration(c.RPC.CallTimeoutMS) * time.Millisecond
}

// AcceptorPreparedTTL, AcceptorAcceptedTTL, and AcceptorSweepInterval convert
// the acceptor's second-resolution config fields to time.Duration.
func (c *Config) AcceptorPreparedTTL() time.Duration {
	return time.Duration(c.Acceptor.PreparedTTLSeconds) * time.Second
}

func (c *Config) AcceptorAcceptedTTL() time.Duration {
	return time.Duration(c.Acceptor.AcceptedTTLSeconds) * time.Second
}

func (c *Config) AcceptorSweepInterval() time.Duration {
	return time.Duration(c.Acceptor.SweepIntervalSec) * time.Second
}

// FailureInjectionMaxDelay converts the millisecond config field to
// time.Duration.
func (c *Config) FailureInjectionMaxDelay() time.Duration {
	return time.Duration(c.Acceptor.FailureInjection.MaxDelayMS) * time.Millisecond
}

// ProposerInFlightTTL and ProposerSweepInterval convert the proposer's
// second-resolution config fields to time.Duration.
func (c *Config) ProposerInFlightTTL() time.Duration {
	return time.Duration(c.Proposer.InFlightTTLSeconds) * time.Second
}

func (c *Config) ProposerSweepInterval() time.Duration {
	return time.Duration(c.Proposer.SweepIntervalSec) * time.Second
}

// LearnerHistoryTTL converts the learner's second-resolution config field to
// time.Duration.
func (c *Config) LearnerHistoryTTL() time.Duration {
	return time.Duration(c.Learner.CommitHistoryTTLSeconds) * time.Second
}
