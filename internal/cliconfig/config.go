package cliconfig

import (
	"fmt"
	"strconv"
	"time"

	"github.com/atalanta-labs/wikibatch/internal/batch"
	"github.com/atalanta-labs/wikibatch/internal/courier"
	"github.com/atalanta-labs/wikibatch/internal/sparql"
	"github.com/atalanta-labs/wikibatch/internal/transport"
)

// Config holds CLI configuration for wikibatch.
type Config struct {
	EntityEndpoint string
	MediaEndpoint  string
	SPARQLEndpoint string

	Language  string
	UserAgent string

	BatchThreshold      int
	CandidatesThreshold int
	StalenessThreshold  time.Duration
	Interactive         bool

	HTTPTimeout    time.Duration
	ConnectTimeout time.Duration
	MaxRetries     int
	RetryBase      time.Duration
	RetryMax       time.Duration

	SPARQLLengthThreshold int
	SPARQLTimeout         time.Duration

	MetricsAddr string

	// StateDir, when set, enables the file-backed freshness store.
	StateDir string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		EntityEndpoint:        courier.DefaultEntityEndpoint,
		MediaEndpoint:         courier.DefaultMediaEndpoint,
		SPARQLEndpoint:        sparql.WDQSProfile().BaseURL,
		Language:              "en",
		UserAgent:             transport.DefaultUserAgent,
		BatchThreshold:        batch.DefaultBatchThreshold,
		CandidatesThreshold:   batch.DefaultCandidatesThreshold,
		StalenessThreshold:    batch.DefaultStalenessThreshold,
		HTTPTimeout:           transport.DefaultTimeout,
		ConnectTimeout:        transport.DefaultConnectTimeout,
		MaxRetries:            transport.DefaultMaxRetries,
		RetryBase:             transport.DefaultRetryBase,
		RetryMax:              transport.DefaultRetryMax,
		SPARQLLengthThreshold: sparql.DefaultOptions().LengthThreshold,
		SPARQLTimeout:         sparql.DefaultOptions().Timeout,
	}
}

// Validate checks the configuration for errors and sets derived defaults.
func (c *Config) Validate() error {
	if c.EntityEndpoint == "" {
		c.EntityEndpoint = courier.DefaultEntityEndpoint
	}
	if c.MediaEndpoint == "" {
		c.MediaEndpoint = courier.DefaultMediaEndpoint
	}
	if c.SPARQLEndpoint == "" {
		c.SPARQLEndpoint = sparql.WDQSProfile().BaseURL
	}
	if c.Language == "" {
		c.Language = "en"
	}

	if c.BatchThreshold <= 0 {
		return fmt.Errorf("batch threshold must be positive")
	}
	if c.CandidatesThreshold <= 0 {
		return fmt.Errorf("candidates threshold must be positive")
	}
	if c.StalenessThreshold < 0 {
		return fmt.Errorf("staleness threshold must not be negative")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries must not be negative")
	}
	if c.RetryBase <= 0 || c.RetryMax <= 0 {
		return fmt.Errorf("retry delays must be positive")
	}
	if c.RetryBase > c.RetryMax {
		return fmt.Errorf("retry base %v exceeds retry max %v", c.RetryBase, c.RetryMax)
	}
	if c.SPARQLLengthThreshold <= 0 {
		return fmt.Errorf("sparql length threshold must be positive")
	}
	if c.SPARQLTimeout <= 0 {
		return fmt.Errorf("sparql timeout must be positive")
	}

	return nil
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

// newConfigSetter creates a new setter with the given changed flags map.
func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
// Used for environment variables that come as strings.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
