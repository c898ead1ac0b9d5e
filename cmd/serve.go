package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/locum-chat/internal/ai"
	"github.com/spigell/locum-chat/internal/ai/gemini"
	"github.com/spigell/locum-chat/internal/catalog"
	"github.com/spigell/locum-chat/internal/logger"
	"github.com/spigell/locum-chat/internal/match"
	"github.com/spigell/locum-chat/internal/secrets"
	"github.com/spigell/locum-chat/internal/server"
	"github.com/spigell/locum-chat/internal/session"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the locum-chat HTTP server",
	Run: func(_ *cobra.Command, _ []string) {
		serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", defaultPort, "port for the HTTP listener")
	serveCmd.Flags().StringP("catalog-file", "c", "", "path to the job catalog file")

	viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	viper.BindPFlag("catalog.file", serveCmd.Flags().Lookup("catalog-file"))
}

// serve wires the pipeline and blocks until the process is signalled.
func serve() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the locum-chat server", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	store, engine, sessions := buildMatchPipeline(config, logger)

	composer, err := newComposer(ctx, aiConfig(config), logger)
	if err != nil {
		logger.Fatal("building the reply composer", zap.Error(err))
	}

	srv := server.New(serverConfig(config), store, engine, sessions, composer, logger)

	if err := srv.Run(ctx); err != nil {
		logger.Fatal("http server failed", zap.Error(err))
	}

	logger.Info("server stopped")
}

// buildMatchPipeline assembles the deterministic half of the service: catalog,
// search engine and session history.
func buildMatchPipeline(config *Config, log *zap.Logger) (*catalog.Store, *match.Engine, *session.Store) {
	store := catalog.Load(catalogPath(config), log)
	engine := match.New(store, matchParams(config), log)

	maxTurns := 0
	if config != nil && config.Session != nil {
		maxTurns = config.Session.MaxTurns
	}

	return store, engine, session.NewStore(maxTurns)
}

func catalogPath(config *Config) string {
	if config != nil && config.Catalog != nil && config.Catalog.File != "" {
		return config.Catalog.File
	}
	return defaultCatalogFile
}

func matchParams(config *Config) match.Params {
	if config == nil || config.Match == nil {
		return match.DefaultParams()
	}
	return match.Params{
		RateSlack:      config.Match.RateSlack,
		NeighborProbes: config.Match.NeighborProbes,
		NeighborCap:    config.Match.NeighborCap,
		BestOverallCap: config.Match.BestOverallCap,
	}
}

func serverConfig(config *Config) server.Config {
	cfg := server.Config{Port: defaultPort}
	if config != nil && config.Server != nil {
		if config.Server.Port > 0 {
			cfg.Port = config.Server.Port
		}
		cfg.AllowedOrigins = config.Server.AllowedOrigins
	}
	return cfg
}

func aiConfig(config *Config) *AIConfig {
	if config == nil {
		return nil
	}
	return config.AI
}

// newComposer picks the reply composer from the configuration. With no
// provider configured the service falls back to templated offline replies.
func newComposer(ctx context.Context, cfg *AIConfig, log *zap.Logger) (ai.Composer, error) {
	provider := ""
	if cfg != nil {
		provider = strings.TrimSpace(strings.ToLower(cfg.Provider))
	}

	switch provider {
	case "", "none", "templated":
		log.Info("no generative provider configured, using templated replies")
		return ai.NewTemplated(), nil
	case "gemini":
	default:
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}

	gcfg := cfg.Gemini
	if gcfg == nil {
		gcfg = &GeminiConfig{}
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name: "gemini api key",
		File: gcfg.APIKeyFile,
		Env:  "GEMINI_API_KEY",
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file, GEMINI_API_KEY_FILE or GEMINI_API_KEY)", err)
	}

	genLogger := logger.WithCommonFields(log, "gemini", gcfg.Model)

	generator, err := gemini.NewGenerator(ctx, apiKey, gcfg.Model, gcfg.MaxRetries, gcfg.RequestsPerMinute, genLogger)
	if err != nil {
		return nil, err
	}

	return gemini.NewComposer(generator, log, gcfg.MaxLogLength), nil
}
