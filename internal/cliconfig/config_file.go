package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	EntityEndpoint string `toml:"entity_endpoint"`
	MediaEndpoint  string `toml:"media_endpoint"`
	SPARQLEndpoint string `toml:"sparql_endpoint"`

	Language  string `toml:"language"`
	UserAgent string `toml:"user_agent"`

	BatchThreshold      int    `toml:"batch_threshold"`
	CandidatesThreshold int    `toml:"candidates_threshold"`
	StalenessThreshold  string `toml:"staleness_threshold"`
	Interactive         *bool  `toml:"interactive"`

	HTTPTimeout    string `toml:"http_timeout"`
	ConnectTimeout string `toml:"connect_timeout"`
	MaxRetries     int    `toml:"max_retries"`
	RetryBase      string `toml:"retry_base"`
	RetryMax       string `toml:"retry_max"`

	SPARQLLengthThreshold int    `toml:"sparql_length_threshold"`
	SPARQLTimeout         string `toml:"sparql_timeout"`

	MetricsAddr string `toml:"metrics_addr"`
	StateDir    string `toml:"state_dir"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path.
// Returns ~/.wikibatch/config.toml if user home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".wikibatch", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("entity-endpoint", fc.EntityEndpoint, &cfg.EntityEndpoint)
	s.setString("media-endpoint", fc.MediaEndpoint, &cfg.MediaEndpoint)
	s.setString("sparql-endpoint", fc.SPARQLEndpoint, &cfg.SPARQLEndpoint)
	s.setString("language", fc.Language, &cfg.Language)
	s.setString("user-agent", fc.UserAgent, &cfg.UserAgent)
	s.setString("metrics-addr", fc.MetricsAddr, &cfg.MetricsAddr)
	s.setString("state-dir", fc.StateDir, &cfg.StateDir)

	s.setInt("batch-threshold", fc.BatchThreshold, &cfg.BatchThreshold)
	s.setInt("candidates-threshold", fc.CandidatesThreshold, &cfg.CandidatesThreshold)
	s.setInt("max-retries", fc.MaxRetries, &cfg.MaxRetries)
	s.setInt("sparql-length-threshold", fc.SPARQLLengthThreshold, &cfg.SPARQLLengthThreshold)

	if err := s.setDuration("staleness", fc.StalenessThreshold, &cfg.StalenessThreshold); err != nil {
		return err
	}
	if err := s.setDuration("timeout", fc.HTTPTimeout, &cfg.HTTPTimeout); err != nil {
		return err
	}
	if err := s.setDuration("connect-timeout", fc.ConnectTimeout, &cfg.ConnectTimeout); err != nil {
		return err
	}
	if err := s.setDuration("retry-base", fc.RetryBase, &cfg.RetryBase); err != nil {
		return err
	}
	if err := s.setDuration("retry-max", fc.RetryMax, &cfg.RetryMax); err != nil {
		return err
	}
	if err := s.setDuration("sparql-timeout", fc.SPARQLTimeout, &cfg.SPARQLTimeout); err != nil {
		return err
	}

	s.setBool("interactive", fc.Interactive, &cfg.Interactive)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
