// Package cli provides the command-line interface for the agent.
package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jamisonl/Reverie/internal/bot"
	"github.com/jamisonl/Reverie/internal/config"
	"github.com/jamisonl/Reverie/internal/gate"
	"github.com/jamisonl/Reverie/internal/llm"
	"github.com/jamisonl/Reverie/internal/metrics"
	"github.com/jamisonl/Reverie/internal/ratelimit"
	"github.com/jamisonl/Reverie/internal/respond"
	"github.com/jamisonl/Reverie/internal/store"
	"github.com/jamisonl/Reverie/internal/vector"
)

// Version is set at build time.
var Version = "0.1.0"

const healthProbeInterval = 30 * time.Second

var configFile string

var rootCmd = &cobra.Command{
	Use:   "reverie",
	Short: "Retrieval-gated conversational Discord agent",
	Long: `Reverie is a Discord bot that decides when to speak. Every message it
sees is embedded into a vector memory; it replies when it is addressed,
asked a question, or when the conversation is similar enough to what it
remembers.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context())
	},
}

func init() {
	rootCmd.Flags().StringVarP(&configFile, "config", "c", "", "path to YAML config overlay")
}

// Execute runs the root command with signal-driven shutdown.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func run(ctx context.Context) error {
	cfg := config.Load()
	if configFile != "" {
		if err := cfg.LoadFile(configFile); err != nil {
			return fmt.Errorf("loading config file: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, cleanup := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer func() { _ = cleanup() }()

	logger.Info("reverie starting",
		"version", Version,
		"bot", cfg.BotName,
		"model", cfg.ModelName,
		"vector_db", cfg.VectorURL,
		"embedding_model", cfg.EmbedModel,
	)

	// Vector store
	client, err := vector.NewClient(ctx, vector.Config{
		URL:       cfg.VectorURL,
		Namespace: cfg.VectorNamespace,
		Database:  cfg.VectorDatabase,
		Username:  cfg.VectorUser,
		Password:  cfg.VectorPass,
	}, logger)
	if err != nil {
		return fmt.Errorf("connecting to vector store: %w", err)
	}
	defer func() { _ = client.Close(context.Background()) }()

	if err := client.InitSchema(ctx, cfg.Collection, cfg.EmbedDimension); err != nil {
		return fmt.Errorf("initializing vector schema: %w", err)
	}
	client.StartHealthProbe(ctx, healthProbeInterval)

	// Embedder and similarity index
	embedder, err := llm.NewEmbedder(cfg)
	if err != nil {
		return fmt.Errorf("creating embedder: %w", err)
	}
	logger.Info("embedder initialized", "model", embedder.Model(), "dimension", embedder.Dimension())

	collector := metrics.NewCollector()
	index := vector.NewIndex(client, cfg.Collection, embedder, collector, logger)

	// Conversation store
	st, err := store.Open(cfg.DBPath, logger)
	if err != nil {
		return fmt.Errorf("opening conversation store: %w", err)
	}
	defer func() { _ = st.Close() }()

	// Generation backend behind its rate limiter
	limiter := ratelimit.New(cfg.RateLimitMaxRequests,
		time.Duration(cfg.RateLimitWindowMs)*time.Millisecond, logger)

	provider, err := llm.NewProvider(ctx, cfg, limiter, logger)
	if err != nil {
		return fmt.Errorf("creating generation backend: %w", err)
	}
	logger.Info("generation backend ready", "provider", provider.Name(), "model", cfg.ModelName)

	responder := respond.New(gate.New(index, logger), index, provider, st, collector, respond.Config{
		BotName:             cfg.BotName,
		SystemPrompt:        cfg.SystemPrompt,
		ResponseGuidelines:  cfg.ResponseGuidelines,
		SimilarityThreshold: cfg.SimilarityThreshold,
		ContextWindow:       cfg.ContextWindow,
		MaxRecentTurns:      cfg.MaxRecentTurns,
		MaxMessageLength:    cfg.MaxMessageLength,
		ReactionChance:      cfg.ReactionResponseChance,
	}, logger)

	b, err := bot.New(&cfg, responder, index, logger)
	if err != nil {
		return fmt.Errorf("creating gateway client: %w", err)
	}

	logger.Info("agent ready, connecting to gateway")

	err = b.Run(ctx)

	snap := collector.Snapshot()
	for op, stats := range snap.Operations {
		logger.Info("operation stats",
			"op", op,
			"count", stats.Count,
			"failures", stats.Failures,
			"avg_ms", stats.AvgTimeMs,
		)
	}
	logger.Info("uptime", "seconds", snap.UptimeSeconds)

	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("gateway error: %w", err)
	}

	logger.Info("shutdown complete")
	return nil
}
