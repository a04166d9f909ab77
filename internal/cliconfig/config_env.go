package cliconfig

import "os"

// ApplyEnvConfig applies configuration from environment variables (WIKIBATCH_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("entity-endpoint", os.Getenv("WIKIBATCH_ENTITY_ENDPOINT"), &cfg.EntityEndpoint)
	s.setString("media-endpoint", os.Getenv("WIKIBATCH_MEDIA_ENDPOINT"), &cfg.MediaEndpoint)
	s.setString("sparql-endpoint", os.Getenv("WIKIBATCH_SPARQL_ENDPOINT"), &cfg.SPARQLEndpoint)
	s.setString("language", os.Getenv("WIKIBATCH_LANGUAGE"), &cfg.Language)
	s.setString("user-agent", os.Getenv("WIKIBATCH_USER_AGENT"), &cfg.UserAgent)
	s.setString("metrics-addr", os.Getenv("WIKIBATCH_METRICS_ADDR"), &cfg.MetricsAddr)
	s.setString("state-dir", os.Getenv("WIKIBATCH_STATE_DIR"), &cfg.StateDir)

	if err := s.setIntFromString("batch-threshold", os.Getenv("WIKIBATCH_BATCH_THRESHOLD"), &cfg.BatchThreshold); err != nil {
		return err
	}
	if err := s.setIntFromString("candidates-threshold", os.Getenv("WIKIBATCH_CANDIDATES_THRESHOLD"), &cfg.CandidatesThreshold); err != nil {
		return err
	}
	if err := s.setIntFromString("max-retries", os.Getenv("WIKIBATCH_MAX_RETRIES"), &cfg.MaxRetries); err != nil {
		return err
	}
	if err := s.setIntFromString("sparql-length-threshold", os.Getenv("WIKIBATCH_SPARQL_LENGTH_THRESHOLD"), &cfg.SPARQLLengthThreshold); err != nil {
		return err
	}

	if err := s.setDuration("staleness", os.Getenv("WIKIBATCH_STALENESS_THRESHOLD"), &cfg.StalenessThreshold); err != nil {
		return err
	}
	if err := s.setDuration("timeout", os.Getenv("WIKIBATCH_HTTP_TIMEOUT"), &cfg.HTTPTimeout); err != nil {
		return err
	}
	if err := s.setDuration("connect-timeout", os.Getenv("WIKIBATCH_CONNECT_TIMEOUT"), &cfg.ConnectTimeout); err != nil {
		return err
	}
	if err := s.setDuration("retry-base", os.Getenv("WIKIBATCH_RETRY_BASE"), &cfg.RetryBase); err != nil {
		return err
	}
	if err := s.setDuration("retry-max", os.Getenv("WIKIBATCH_RETRY_MAX"), &cfg.RetryMax); err != nil {
		return err
	}
	if err := s.setDuration("sparql-timeout", os.Getenv("WIKIBATCH_SPARQL_TIMEOUT"), &cfg.SPARQLTimeout); err != nil {
		return err
	}

	s.setBoolFromString("interactive", os.Getenv("WIKIBATCH_INTERACTIVE"), &cfg.Interactive)

	return nil
}
