// Package main provides the edgestored CLI entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/arcgraph/edgestore/pkg/codec"
	"github.com/arcgraph/edgestore/pkg/commit"
	"github.com/arcgraph/edgestore/pkg/config"
	"github.com/arcgraph/edgestore/pkg/deleteall"
	"github.com/arcgraph/edgestore/pkg/kv"
	"github.com/arcgraph/edgestore/pkg/logx"
	"github.com/arcgraph/edgestore/pkg/metricsx"
	"github.com/arcgraph/edgestore/pkg/model"
	"github.com/arcgraph/edgestore/pkg/mutate"
	"github.com/arcgraph/edgestore/pkg/query"
	"github.com/arcgraph/edgestore/pkg/schema"
)

var (
	version    = "0.1.0"
	commitHash = "dev"
)

func main() {
	var configFile string

	rootCmd := &cobra.Command{
		Use:   "edgestored",
		Short: "edgestore - a distributed property-graph storage layer over an HBase-style KV store",
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to a YAML config file; EDGESTORE_* environment variables that are set take precedence over it")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("edgestored v%s (%s)\n", version, commitHash)
		},
	})

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the metrics listener and hold the store open",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configFile)
		},
	}
	rootCmd.AddCommand(serveCmd)

	deleteAllCmd := &cobra.Command{
		Use:   "delete-all --src=<column>:<id> --label=<id> --direction=out",
		Short: "Run one DeleteAll traversal against the configured store",
		RunE: func(cmd *cobra.Command, args []string) error {
			srcFlag, _ := cmd.Flags().GetString("src")
			labelFlag, _ := cmd.Flags().GetInt("label")
			dirFlag, _ := cmd.Flags().GetString("direction")
			consistencyFlag, _ := cmd.Flags().GetString("consistency")
			return runDeleteAll(configFile, srcFlag, labelFlag, dirFlag, consistencyFlag)
		},
	}
	deleteAllCmd.Flags().String("src", "", "source vertex as column:id, e.g. 1:1001")
	deleteAllCmd.Flags().Int("label", 0, "label id to sweep")
	deleteAllCmd.Flags().String("direction", "out", "direction to sweep: out or in")
	deleteAllCmd.Flags().String("consistency", "strong", "label consistency level: strong or weak")
	_ = deleteAllCmd.MarkFlagRequired("src")
	rootCmd.AddCommand(deleteAllCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads configFile if given, else falls back to environment
// variables only, and validates the result before returning it.
func loadConfig(configFile string) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if configFile != "" {
		cfg, err = config.LoadFromFile(configFile)
	} else {
		cfg = config.LoadFromEnv()
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openStore wires the Badger-backed KV store plus the codec/mutate/query
// stack every subcommand needs, logging a startup banner before returning.
func openStore(cfg *config.Config) (kv.Store, *codec.Codec, *mutate.Builder, *query.Fetcher, error) {
	logx.Init(logx.Config{
		Level:      logx.Level(cfg.Logging.Level),
		JSONOutput: cfg.Logging.JSONOutput,
	})
	log := logx.Component("edgestored")

	store, err := kv.Open(kv.Options{DataDir: cfg.Storage.DataDir, SyncWrites: cfg.Storage.SyncWrites})
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("opening store: %w", err)
	}

	c := codec.New(schema.V3)
	builder := mutate.NewBuilder(c)
	fetcher := query.NewFetcher(store, c, query.FetcherOptions{})

	log.Info().Str("data_dir", cfg.Storage.DataDir).Msg("store opened")
	return store, c, builder, fetcher, nil
}

func runServe(configFile string) error {
	cfg, err := loadConfig(configFile)
	if err != nil {
		return err
	}

	store, _, _, _, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	log := logx.Component("edgestored")

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metricsx.Handler())
		metricsServer = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}
		go func() {
			log.Info().Str("addr", cfg.Metrics.Addr).Msg("metrics listener starting")
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("metrics listener failed")
			}
		}()
	}

	log.Info().Str("version", version).Msg("edgestored ready")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("shutting down")
	if metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(ctx)
	}
	return nil
}

func runDeleteAll(configFile, srcFlag string, labelFlag int, dirFlag, consistencyFlag string) error {
	cfg, err := loadConfig(configFile)
	if err != nil {
		return err
	}

	store, c, builder, fetcher, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	src, err := parseVertexID(srcFlag)
	if err != nil {
		return err
	}

	dir := model.DirOut
	if strings.EqualFold(dirFlag, "in") {
		dir = model.DirIn
	}

	level := schema.ConsistencyStrong
	if strings.EqualFold(consistencyFlag, "weak") {
		level = schema.ConsistencyWeak
	}
	label := schema.Label{
		ID:               model.LabelID(labelFlag),
		Indices:          []schema.IndexDecl{{Seq: 0}},
		ConsistencyLevel: level,
		SchemaVersion:    schema.V3,
	}

	engine := commit.NewEngine(store, c, builder)
	traversal := deleteall.New(store, c, fetcher, builder, engine, deleteall.Options{
		FetchSize: cfg.Retry.DeleteAllFetchSz,
		MaxRetry:  cfg.Retry.MaxRetryNumber,
	})

	retired, err := traversal.Run(context.Background(), deleteall.Request{
		SrcVertices: []model.VertexID{src},
		Labels:      []schema.Label{label},
		Direction:   dir,
		RequestTs:   time.Now(),
	})
	if err != nil {
		return fmt.Errorf("delete-all: %w", err)
	}

	fmt.Printf("retired %d edges\n", retired)
	return nil
}

// parseVertexID parses the "column:id" flag format into a VertexID with an
// int64 inner value, the common case for HBase-style numeric row ids.
func parseVertexID(s string) (model.VertexID, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return model.VertexID{}, fmt.Errorf("invalid --src %q, want column:id", s)
	}
	col, err := strconv.Atoi(parts[0])
	if err != nil {
		return model.VertexID{}, fmt.Errorf("invalid column in --src %q: %w", s, err)
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return model.VertexID{}, fmt.Errorf("invalid id in --src %q: %w", s, err)
	}
	return model.VertexID{ColumnID: model.ColumnID(col), InnerID: model.Long(id)}, nil
}
