package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/tradecoach/agent"
	"github.com/rustyeddy/tradecoach/api"
	"github.com/rustyeddy/tradecoach/auth"
	"github.com/rustyeddy/tradecoach/config"
	"github.com/rustyeddy/tradecoach/journal"
	"github.com/rustyeddy/tradecoach/quotes"
	"github.com/rustyeddy/tradecoach/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the tradecoach API server",
	Long: `Start the HTTP API using settings from a configuration file.

Without --config the built-in defaults are used: file store under ./data,
Yahoo quotes, an Ollama coach at localhost:11434 and a CSV trade journal.

Example:
  tradecoach serve --config tradecoach.yaml`,
	RunE: runServe,
}

var serveConfigPath string

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&serveConfigPath, "config", "f", "", "path to config file (YAML or JSON)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if serveConfigPath != "" {
		var err error
		cfg, err = config.LoadFromFile(serveConfigPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	}

	st, err := buildStore(cfg)
	if err != nil {
		return fmt.Errorf("create store: %w", err)
	}
	defer st.Close()

	tokenTTL, err := cfg.Auth.ParseTokenTTL()
	if err != nil {
		return fmt.Errorf("auth token ttl: %w", err)
	}

	cacheTTL, err := cfg.Quotes.ParseCacheTTL()
	if err != nil {
		return fmt.Errorf("quotes cache ttl: %w", err)
	}
	chain, err := quotes.Build(cfg.Quotes.Providers, cfg.Quotes.AlphaVantageKey, cacheTTL, cfg.Quotes.AllowSynthetic)
	if err != nil {
		return fmt.Errorf("create quote chain: %w", err)
	}

	reasoner, err := buildReasoner(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("create agent: %w", err)
	}

	j, err := buildJournal(cfg)
	if err != nil {
		return fmt.Errorf("create journal: %w", err)
	}
	defer j.Close()

	server := api.NewServer(cfg.Server.Addr, api.Deps{
		Store:       st,
		Auth:        auth.NewService(st, cfg.Auth.JWTSecret, tokenTTL),
		Quotes:      chain,
		Coach:       agent.NewService(reasoner),
		Journal:     j,
		InitialCash: cfg.Server.InitialCash,
		Version:     version,
	})

	if err := server.Start(cmd.Context()); err != nil {
		return fmt.Errorf("start server: %w", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Println("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}

func buildStore(cfg *config.Config) (store.Store, error) {
	if cfg.Store.Type == "sqlite" {
		return store.NewSQLite(cfg.Store.DBPath)
	}
	return store.NewFileStore(cfg.Store.Dir)
}

func buildReasoner(ctx context.Context, cfg *config.Config) (agent.Reasoner, error) {
	timeout, err := cfg.Agent.ParseTimeout()
	if err != nil {
		return nil, err
	}

	var inner agent.Reasoner
	if cfg.Agent.Provider == "gemini" {
		inner, err = agent.NewGemini(ctx, cfg.Agent.Model)
		if err != nil {
			return nil, err
		}
	} else {
		inner = agent.NewOllama(cfg.Agent.OllamaURL, cfg.Agent.Model)
	}

	return agent.Timeout{Inner: inner, D: timeout}, nil
}

func buildJournal(cfg *config.Config) (journal.Journal, error) {
	switch cfg.Journal.Type {
	case "csv":
		return journal.NewCSV(cfg.Journal.TradesFile)
	case "sqlite":
		return journal.NewSQLite(cfg.Journal.DBPath)
	default:
		return journal.Nop{}, nil
	}
}
