// Package main provides the NMT CLI entry point: a thin cobra wrapper
// around pkg/nmt.Store (grounded on the teacher's cmd/nornicdb/main.go
// flag/command layout, minus the Bolt/HTTP/auth surface spec.md treats as
// an out-of-scope external collaborator).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nmtsys/memstore/pkg/config"
	"github.com/nmtsys/memstore/pkg/graph"
	"github.com/nmtsys/memstore/pkg/ingest"
	"github.com/nmtsys/memstore/pkg/nmt"
)

var version = "0.1.0"

// configFile, if set via --config, replaces NMT_* environment variables as
// the configuration source for this invocation.
var configFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "nmt",
		Short: "NMT - verifiable semantic memory store for long-lived agents",
		Long: `NMT combines content-addressed chunking and Merkle commitment,
an HNSW vector index, a Hopfield/Hebbian neuron graph, an A* attractor
planner, and a CRDT-style sync kernel into one embeddable memory store.`,
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to a YAML config file (default: configure via NMT_* environment variables)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("nmt v%s\n", version)
		},
	})

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newIngestCmd())
	rootCmd.AddCommand(newSearchCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func openStore() (*nmt.Store, *zap.Logger, error) {
	var cfg *config.Config
	var cfgErr error
	if configFile != "" {
		cfg, cfgErr = config.LoadFromFile(configFile)
	} else {
		cfg = config.LoadFromEnv()
	}
	if cfgErr != nil {
		return nil, nil, cfgErr
	}

	var log *zap.Logger
	var err error
	if cfg.Logging.Format == "console" {
		log, err = zap.NewDevelopment()
	} else {
		log, err = zap.NewProduction()
	}
	if err != nil {
		return nil, nil, fmt.Errorf("building logger: %w", err)
	}

	s, err := nmt.Open(context.Background(), cfg, log)
	if err != nil {
		return nil, nil, fmt.Errorf("opening store: %w", err)
	}
	return s, log, nil
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Open the store and block until interrupted",
		Long:  "Opens the store at NMT_DATA_DIR, starts the compaction scheduler, and waits for SIGINT/SIGTERM to shut down cleanly.",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, log, err := openStore()
			if err != nil {
				return err
			}
			defer log.Sync() //nolint:errcheck

			log.Sugar().Infow("nmt store ready", "dataDir", s.Config.Storage.DataDir, "node", s.NodeID())

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
			<-sigChan

			log.Info("shutting down")
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := s.Close(ctx); err != nil {
				return fmt.Errorf("closing store: %w", err)
			}
			log.Info("shutdown complete")
			return nil
		},
	}
}

func newIngestCmd() *cobra.Command {
	var useCDC bool
	var chunkSize int
	var autoConnect bool

	cmd := &cobra.Command{
		Use:   "ingest [text]",
		Short: "Ingest a single piece of text and print the resulting neuron id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, log, err := openStore()
			if err != nil {
				return err
			}
			defer log.Sync() //nolint:errcheck
			defer s.Close(context.Background())

			n, err := s.IngestText(context.Background(), args[0], ingest.Options{
				UseCDC:      useCDC,
				ChunkSize:   chunkSize,
				AutoConnect: autoConnect,
			})
			if err != nil {
				return err
			}
			fmt.Printf("neuron: %s\nmerkleRoot: %s\nchunks: %d\n", n.ID, n.MerkleRoot, len(n.ChunkHashes))
			return nil
		},
	}
	cmd.Flags().BoolVar(&useCDC, "cdc", false, "use content-defined chunking instead of fixed size")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", 0, "fixed chunk size in bytes (0 selects the default)")
	cmd.Flags().BoolVar(&autoConnect, "auto-connect", false, "auto-link the new neuron to its nearest semantic neighbors")
	return cmd
}

func newSearchCmd() *cobra.Command {
	var k int

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Run hybrid retrieval over the store and print matching neuron ids",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, log, err := openStore()
			if err != nil {
				return err
			}
			defer log.Sync() //nolint:errcheck
			defer s.Close(context.Background())

			opts := graph.DefaultSearchOptions()
			if k > 0 {
				opts.K = k
			}
			hits, err := s.Search(context.Background(), args[0], opts)
			if err != nil {
				return err
			}
			for _, h := range hits {
				fmt.Printf("%s\tfinal=%.4f\tsemantic=%.4f\tkeyword=%.4f\n", h.Neuron.ID, h.FinalScore, h.SemanticScore, h.KeywordScore)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&k, "k", 0, "number of results to return (0 selects the default)")
	return cmd
}
