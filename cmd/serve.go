package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kozaktomas/face-attend/internal/config"
	"github.com/kozaktomas/face-attend/internal/encoder"
	"github.com/kozaktomas/face-attend/internal/facematch"
	"github.com/kozaktomas/face-attend/internal/pipeline"
	"github.com/kozaktomas/face-attend/internal/roster"
	"github.com/kozaktomas/face-attend/internal/store"
	"github.com/kozaktomas/face-attend/internal/store/memory"
	"github.com/kozaktomas/face-attend/internal/store/postgres"
	"github.com/kozaktomas/face-attend/internal/web"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the attendance API server",
	Long: `Start the Face Attend API server.
The server accepts probe embeddings (or raw images when an encoder
service is configured), maintains per-session match aggregates, and
exposes the human review queue and finalized attendance records.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().Bool("in-memory", false, "Use in-memory storage instead of PostgreSQL (development only)")
}

// serveStores bundles the storage backends the server runs on.
type serveStores struct {
	encodings store.EncodingWriter
	aggs      store.AggregateStore
	records   store.RecordStore
	closer    func() error
}

// initStores opens the configured storage backend and runs migrations.
func initStores(cfg *config.Config, inMemory bool) (*serveStores, error) {
	if inMemory {
		fmt.Println("Using in-memory storage (data is lost on restart)")
		return &serveStores{
			encodings: memory.NewEncodingStore(),
			aggs:      memory.NewAggregateStore(),
			records:   memory.NewRecordStore(),
			closer:    func() error { return nil },
		}, nil
	}

	fmt.Println("Connecting to PostgreSQL database...")
	pool, err := postgres.Initialize(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	return &serveStores{
		encodings: postgres.NewEncodingRepository(pool),
		aggs:      postgres.NewAggregateRepository(pool),
		records:   postgres.NewRecordRepository(pool),
		closer:    pool.Close,
	}, nil
}

// initIndex builds the in-memory HNSW shortlist index over the stored
// encodings. Index trouble is not fatal; scoring falls back to full scans.
func initIndex(ctx context.Context, encodings store.EncodingReader, metric facematch.Metric) *store.EncodingIndex {
	snapshot, err := encodings.Snapshot(ctx)
	if err != nil {
		fmt.Printf("Warning: failed to load encodings for HNSW index: %v\n", err)
		fmt.Println("Probe scoring will scan all encodings (slower)")
		return nil
	}

	index := store.NewEncodingIndex(metric)
	index.Build(snapshot)
	fmt.Printf("HNSW shortlist index built with %d encodings\n", index.Count())
	return index
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	inMemory := mustGetBool(cmd, "in-memory")
	stores, err := initStores(cfg, inMemory)
	if err != nil {
		return err
	}
	defer stores.closer()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	index := initIndex(ctx, stores.encodings, cfg.Match.Metric)

	var attendanceRoster *roster.MySQL
	if cfg.Roster.DatabaseURL != "" {
		attendanceRoster, err = roster.Connect(cfg.Roster.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to roster database: %w", err)
		}
		defer attendanceRoster.Close()
		fmt.Println("Roster database connected, absence derivation enabled")
	}

	var encoderClient *encoder.Client
	if cfg.Encoder.URL != "" {
		encoderClient = encoder.NewClient(cfg.Encoder.URL, cfg.Encoder.Timeout)
		fmt.Printf("Encoder service configured at %s\n", cfg.Encoder.URL)
	}

	pipelineCfg := pipeline.Config{
		Thresholds:         cfg.Thresholds(),
		Metric:             cfg.Match.Metric,
		MinObservations:    cfg.Match.MinObservations,
		EmbeddingDim:       cfg.Match.EmbeddingDim,
		SessionIdleTimeout: cfg.Match.SessionIdleTimeout,
		ShortlistLimit:     cfg.Match.ShortlistLimit,
	}
	var p *pipeline.Pipeline
	if attendanceRoster != nil {
		p, err = pipeline.New(pipelineCfg, stores.encodings, stores.aggs, stores.records, index, attendanceRoster)
	} else {
		p, err = pipeline.New(pipelineCfg, stores.encodings, stores.aggs, stores.records, index, nil)
	}
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}
	go p.Run(ctx)

	port := mustGetInt(cmd, "port")
	host := mustGetString(cmd, "host")

	server := web.NewServer(cfg, port, host, p, encoderClient, stores.encodings, index)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
		cancel()
	}()

	fmt.Printf("Matching with %s metric, profile %s (confident %.2f, uncertain %.2f, min observations %d)\n",
		cfg.Match.Metric, cfg.Match.Profile, cfg.Match.ConfidentThreshold, cfg.Match.UncertainThreshold, cfg.Match.MinObservations)
	fmt.Printf("Starting Face Attend API on http://%s:%d\n", host, port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
