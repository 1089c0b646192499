// Command hitwatch is the administrative companion to the telemetry core:
// it queries windowed hit-rate statistics, prunes stale buckets, prints the
// capacity estimate, and can serve stats and Prometheus metrics over HTTP
// for a dashboard. It talks to the core only through the stats query and
// the store's administrative operations.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/viper"

	"github.com/Sternrassler/hitwatch/pkg/config"
	"github.com/Sternrassler/hitwatch/pkg/logging"
	"github.com/Sternrassler/hitwatch/pkg/stats"
	"github.com/Sternrassler/hitwatch/pkg/store"
)

const usage = `Usage: hitwatch <command> [flags]

Commands:
  stats     Print hit-rate statistics for a trailing window as JSON
  prune     Delete bucket keys older than the retention period
  estimate  Print the Redis capacity estimate
  meta      Print the persisted configuration metadata
  serve     Serve /stats, /metrics and /health over HTTP

Configuration is read from hitwatch.yaml (or $HITWATCH_CONFIG) and
HITWATCH_* environment variables.`

// keyspaceSpec mirrors one keyspace entry of the config file.
type keyspaceSpec struct {
	Name    string `mapstructure:"name"`
	Label   string `mapstructure:"label"`
	Pattern string `mapstructure:"pattern"`
}

func main() {
	logger := logging.Setup(logging.DefaultConfig()).With().Str("component", "cli").Logger()

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := loadConfig(viper.New())
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	st, err := store.New(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("cannot connect bucket store")
	}

	ctx := context.Background()
	switch os.Args[1] {
	case "stats":
		err = runStats(ctx, cfg, st, os.Args[2:])
	case "prune":
		err = runPrune(ctx, st)
	case "estimate":
		err = printJSON(st.EstimateSize())
	case "meta":
		err = runMeta(ctx, st)
	case "serve":
		err = runServe(cfg, st, os.Args[2:])
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		logger.Fatal().Err(err).Str("command", os.Args[1]).Msg("command failed")
	}
}

// loadConfig assembles the telemetry configuration from an optional YAML
// file plus HITWATCH_* environment variables.
func loadConfig(v *viper.Viper) (*config.Config, error) {
	v.SetEnvPrefix("hitwatch")
	v.AutomaticEnv()

	v.SetDefault("redis_url", "redis://localhost:6379/0")
	v.SetDefault("environment", config.DefaultEnvironment)
	v.SetDefault("namespace", config.DefaultNamespace)
	v.SetDefault("bucket_seconds", config.DefaultBucketSeconds)
	v.SetDefault("retention_seconds", config.DefaultRetentionSeconds)
	v.SetDefault("sample_rate", config.DefaultSampleRate)
	v.SetDefault("max_buckets", config.DefaultMaxBuckets)
	v.SetDefault("redis_pool_size", config.DefaultRedisPoolSize)

	if path := os.Getenv("HITWATCH_CONFIG"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("hitwatch")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; env vars and defaults suffice.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && os.Getenv("HITWATCH_CONFIG") != "" {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := config.DefaultConfig()
	cfg.Environment = v.GetString("environment")
	cfg.Namespace = v.GetString("namespace")
	cfg.BucketSeconds = v.GetInt("bucket_seconds")
	cfg.RetentionSeconds = v.GetInt("retention_seconds")
	cfg.SampleRate = v.GetFloat64("sample_rate")
	cfg.MaxBuckets = v.GetInt("max_buckets")
	cfg.RedisPoolSize = v.GetInt("redis_pool_size")
	cfg.Store = config.StoreURL(v.GetString("redis_url"))

	var keyspaces []keyspaceSpec
	if err := v.UnmarshalKey("keyspaces", &keyspaces); err != nil {
		return nil, fmt.Errorf("parse keyspaces: %w", err)
	}
	for _, ks := range keyspaces {
		if err := cfg.RegisterKeyspace(ks.Name, ks.Label, ks.Pattern); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runStats(ctx context.Context, cfg *config.Config, st *store.Store, args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	window := fs.Duration("window", time.Hour, "trailing window to aggregate")
	if err := fs.Parse(args); err != nil {
		return err
	}

	query := stats.NewQuery(cfg, st, logging.NewLogger("stats"))
	return printJSON(query.Execute(ctx, *window, time.Now()))
}

func runPrune(ctx context.Context, st *store.Store) error {
	deleted, err := st.Prune(ctx, time.Now())
	if err != nil {
		return err
	}
	fmt.Printf("deleted %d stale bucket keys\n", deleted)
	return nil
}

func runMeta(ctx context.Context, st *store.Store) error {
	meta, err := st.FetchMetadata(ctx)
	if err != nil {
		return err
	}
	if meta == nil {
		fmt.Println("no metadata stored")
		return nil
	}
	return printJSON(meta)
}

func runServe(cfg *config.Config, st *store.Store, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	port := fs.String("port", "8080", "listen port")
	if err := fs.Parse(args); err != nil {
		return err
	}

	query := stats.NewQuery(cfg, st, logging.NewLogger("stats"))

	addr := ":" + *port
	logger := logging.NewLogger("cli")
	logger.Info().Str("addr", addr).Msg("serving stats")
	return http.ListenAndServe(addr, newServeMux(query))
}

// newServeMux wires the HTTP surface: health probe, Prometheus metrics and
// the windowed stats endpoint.
func newServeMux(query *stats.Query) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/stats", statsHandler(query))
	return mux
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

// statsHandler serves the windowed aggregate as JSON. The window is given
// in seconds via ?window=, defaulting to one hour.
func statsHandler(query *stats.Query) http.HandlerFunc {
	logger := logging.NewLogger("cli")
	return func(w http.ResponseWriter, r *http.Request) {
		window := time.Hour
		if raw := r.URL.Query().Get("window"); raw != "" {
			secs, err := strconv.Atoi(raw)
			if err != nil || secs <= 0 {
				http.Error(w, "invalid window", http.StatusBadRequest)
				return
			}
			window = time.Duration(secs) * time.Second
		}

		result := query.Execute(r.Context(), window, time.Now())
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(result); err != nil {
			logger.Error().Err(err).Msg("encode stats response")
		}
	}
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
