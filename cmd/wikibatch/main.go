package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	wikibatch "github.com/atalanta-labs/wikibatch"
	"github.com/atalanta-labs/wikibatch/internal/cliconfig"
	"github.com/atalanta-labs/wikibatch/internal/domain"
	"github.com/atalanta-labs/wikibatch/internal/freshness"
	"github.com/atalanta-labs/wikibatch/internal/sparql"
	wblog "github.com/atalanta-labs/wikibatch/pkg/log"
)

const helpDescription = `
Batched retrieval for Wikibase entities.

Identifiers accumulate in per-kind queues and are fetched in consolidated
wbgetentities calls instead of one request per entity. Queries go to the
Wikidata Query Service with automatic GET/POST selection.

Configure via file ($HOME/.wikibatch/config.toml), WIKIBATCH_* environment
variables, or flags; flags win.
`

var exampleUsage = strings.TrimSpace(`
  wikibatch fetch Q42 Q64 P31
  wikibatch fetch --group people L77-F2 L77-S3
  cat identifiers.txt | wikibatch fetch --stdin
  wikibatch sparql 'SELECT ?item WHERE { ?item wdt:P31 wd:Q5 } LIMIT 10'
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

// stdoutSink prints each merged batch payload as a JSON document.
type stdoutSink struct{}

func (stdoutSink) OnResult(kind domain.Kind, sent []string, payload map[string]any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(payload); err != nil {
		logger := wikibatch.Logger()
		logger.Error().Err(err).Msg("encode payload")
	}
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string
	var cfgFileUsed string
	changedFlags := map[string]bool{}

	log := wikibatch.Logger()

	root := &cobra.Command{
		Use:     "wikibatch",
		Short:   "Batched retrieval for Wikibase entities",
		Long:    strings.TrimSpace(helpDescription),
		Example: exampleUsage,
		Version: fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load config file first (default $HOME/.wikibatch/config.toml),
			// then environment, then flag overrides.
			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = cliconfig.DefaultConfigPath()
			}
			cfgFileUsed = cfgFile

			cmd.Flags().Visit(func(f *pflag.Flag) { changedFlags[f.Name] = true })
			cmd.InheritedFlags().Visit(func(f *pflag.Flag) { changedFlags[f.Name] = true })

			if cfgFile != "" && cliconfig.FileExists(cfgFile) {
				fc, err := cliconfig.LoadFileConfig(cfgFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				if err := cliconfig.ApplyFileConfig(&cfg, fc, changedFlags); err != nil {
					return err
				}
			}

			if err := cliconfig.ApplyEnvConfig(&cfg, changedFlags); err != nil {
				return err
			}

			return cfg.Validate()
		},
	}

	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.wikibatch/config.toml)")
	root.PersistentFlags().StringVar(&cfg.EntityEndpoint, "entity-endpoint", cfg.EntityEndpoint, "MediaWiki API endpoint for entity lookups")
	root.PersistentFlags().StringVar(&cfg.MediaEndpoint, "media-endpoint", cfg.MediaEndpoint, "MediaWiki API endpoint for MediaInfo lookups")
	root.PersistentFlags().StringVar(&cfg.SPARQLEndpoint, "sparql-endpoint", cfg.SPARQLEndpoint, "SPARQL query service endpoint")
	root.PersistentFlags().StringVar(&cfg.Language, "language", cfg.Language, "preferred language for labels and descriptions")
	root.PersistentFlags().StringVar(&cfg.UserAgent, "user-agent", cfg.UserAgent, "User-Agent header")
	root.PersistentFlags().IntVar(&cfg.BatchThreshold, "batch-threshold", cfg.BatchThreshold, "identifiers per request and auto-flush trigger")
	root.PersistentFlags().IntVar(&cfg.CandidatesThreshold, "candidates-threshold", cfg.CandidatesThreshold, "touches before a candidate is promoted")
	root.PersistentFlags().DurationVar(&cfg.StalenessThreshold, "staleness", cfg.StalenessThreshold, "age after which known data is refetched")
	root.PersistentFlags().DurationVar(&cfg.HTTPTimeout, "timeout", cfg.HTTPTimeout, "HTTP timeout per attempt")
	root.PersistentFlags().DurationVar(&cfg.ConnectTimeout, "connect-timeout", cfg.ConnectTimeout, "connection establishment timeout")
	root.PersistentFlags().IntVar(&cfg.MaxRetries, "max-retries", cfg.MaxRetries, "retries after the first attempt")
	root.PersistentFlags().DurationVar(&cfg.RetryBase, "retry-base", cfg.RetryBase, "base delay for exponential backoff")
	root.PersistentFlags().DurationVar(&cfg.RetryMax, "retry-max", cfg.RetryMax, "cap on a single backoff sleep")
	root.PersistentFlags().IntVar(&cfg.SPARQLLengthThreshold, "sparql-length-threshold", cfg.SPARQLLengthThreshold, "query length above which POST is used")
	root.PersistentFlags().DurationVar(&cfg.SPARQLTimeout, "sparql-timeout", cfg.SPARQLTimeout, "SPARQL per-request timeout")
	root.PersistentFlags().StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "address for the Prometheus /metrics listener (empty disables)")
	root.PersistentFlags().StringVar(&cfg.StateDir, "state-dir", cfg.StateDir, "directory for the freshness store (empty disables)")

	var fetchGroup string
	var fetchForce, fetchStdin bool
	fetch := &cobra.Command{
		Use:   "fetch [identifier]...",
		Short: "Queue identifiers and fetch them in consolidated batches",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && !fetchStdin {
				return fmt.Errorf("at least one identifier is required unless --stdin is set")
			}
			session, err := newFetchSession(cfg)
			if err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()
			stopMetrics := serveMetrics(cfg.MetricsAddr, session.client)
			defer stopMetrics()

			for _, id := range args {
				if _, err := session.client.Batches.AddEntity(ctx, id, fetchForce, fetchGroup); err != nil {
					return err
				}
				fetchGroup = ""
			}

			if fetchStdin {
				// Streaming runs long enough for config edits to matter:
				// watch the file and apply changes between identifiers.
				if cfgFileUsed != "" && cliconfig.FileExists(cfgFileUsed) {
					watcher := cliconfig.NewWatcher(cfgFileUsed, cfg, changedFlags,
						session.onReload, wblog.NewZerologAdapterWithLogger(log))
					if err := watcher.Start(ctx); err != nil {
						log.Warn().Err(err).Msg("config watcher disabled")
					} else {
						defer watcher.Stop()
					}
				}

				scanner := bufio.NewScanner(os.Stdin)
				for scanner.Scan() {
					id := strings.TrimSpace(scanner.Text())
					if id == "" {
						continue
					}
					if err := session.refresh(ctx); err != nil {
						return err
					}
					if _, err := session.client.Batches.AddEntity(ctx, id, fetchForce, fetchGroup); err != nil {
						return err
					}
					fetchGroup = ""
				}
				if err := scanner.Err(); err != nil {
					return fmt.Errorf("read identifiers: %w", err)
				}
			}

			return session.drain(ctx)
		},
	}
	fetch.Flags().StringVar(&fetchGroup, "group", "", "group to record the identifiers under")
	fetch.Flags().BoolVar(&fetchForce, "force", false, "bypass the freshness policy")
	fetch.Flags().BoolVar(&fetchStdin, "stdin", false, "read identifiers from standard input, one per line")

	touch := &cobra.Command{
		Use:   "touch <identifier>...",
		Short: "Register identifier sightings without queuing them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := wikibatch.New(cfg)
			if err != nil {
				return err
			}
			counted := 0
			for _, id := range args {
				if client.Batches.TouchEntity(id) {
					counted++
				}
			}
			fmt.Fprintf(os.Stdout, "counted %d of %d\n", counted, len(args))
			return nil
		},
	}

	var sparqlAccept string
	var sparqlForceGet, sparqlForcePost bool
	sparqlCmd := &cobra.Command{
		Use:   "sparql <query>",
		Short: "Run a SPARQL query against the configured query service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if sparqlForceGet && sparqlForcePost {
				return fmt.Errorf("--get and --post are mutually exclusive")
			}
			client, err := wikibatch.New(cfg)
			if err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()
			stopMetrics := serveMetrics(cfg.MetricsAddr, client)
			defer stopMetrics()

			req := sparql.Request{Query: args[0], Accept: sparqlAccept}
			if sparqlForceGet {
				req.Method = sparql.ForceGet
			}
			if sparqlForcePost {
				req.Method = sparql.ForcePost
			}

			resp, err := client.SPARQL.Run(ctx, req)
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(resp.Body)
			return err
		},
	}
	sparqlCmd.Flags().StringVar(&sparqlAccept, "accept", "", "Accept header override")
	sparqlCmd.Flags().BoolVar(&sparqlForceGet, "get", false, "force GET regardless of query length")
	sparqlCmd.Flags().BoolVar(&sparqlForcePost, "post", false, "force POST regardless of query length")

	root.AddCommand(fetch, touch, sparqlCmd)

	if err := root.Execute(); err != nil {
		log.Error().Err(err).Msg("wikibatch")
		os.Exit(1)
	}
}

// buildClient wires a client with the CLI's stdout sink and, when a state
// directory is configured, a persistent freshness store.
func buildClient(cfg cliconfig.Config) (*wikibatch.Client, error) {
	options := []wikibatch.Option{wikibatch.WithResultSink(stdoutSink{})}
	if cfg.StateDir != "" {
		store, err := freshness.NewFileStore(cfg.StateDir)
		if err != nil {
			return nil, fmt.Errorf("open freshness store: %w", err)
		}
		options = []wikibatch.Option{
			wikibatch.WithFreshnessStore(store),
			wikibatch.WithResultSink(freshness.NewRecorder(store, stdoutSink{}, nil)),
		}
	}
	return wikibatch.New(cfg, options...)
}

// fetchSession owns the client for one fetch run and absorbs configuration
// reloads. Thresholds are fixed per manager instance, so an accepted reload
// means a fresh client; the old one is drained first so no queued identifier
// is lost.
type fetchSession struct {
	cfg     cliconfig.Config
	client  *wikibatch.Client
	pending atomic.Pointer[cliconfig.Config]
}

func newFetchSession(cfg cliconfig.Config) (*fetchSession, error) {
	client, err := buildClient(cfg)
	if err != nil {
		return nil, err
	}
	return &fetchSession{cfg: cfg, client: client}, nil
}

// onReload records a reloaded configuration. Called from the watcher's
// goroutine; the change takes effect on the next refresh.
func (s *fetchSession) onReload(cfg cliconfig.Config) {
	s.pending.Store(&cfg)
}

// refresh swaps in a pending configuration, if any.
func (s *fetchSession) refresh(ctx context.Context) error {
	next := s.pending.Swap(nil)
	if next == nil {
		return nil
	}
	if err := s.drain(ctx); err != nil {
		return err
	}
	client, err := buildClient(*next)
	if err != nil {
		return err
	}
	s.cfg = *next
	s.client = client
	return nil
}

// drain flushes until every queue is empty.
func (s *fetchSession) drain(ctx context.Context) error {
	for {
		sent, err := s.client.Batches.Flush(ctx, wikibatch.KindAny)
		if err != nil {
			return err
		}
		if !sent {
			return nil
		}
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// serveMetrics exposes the client's network counters on addr, or does nothing
// for an empty addr. The returned func shuts the listener down.
func serveMetrics(addr string, client *wikibatch.Client) func() {
	if addr == "" {
		return func() {}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(client.MetricsCollector())

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger := wikibatch.Logger()
			logger.Error().Err(err).Msg("metrics listener")
		}
	}()

	return func() { _ = server.Close() }
}
