package cmd

import (
	"errors"
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "locum-chat"

	defaultPort        = 8080
	defaultCatalogFile = "catalog.yaml"
)

type Config struct {
	Server  *ServerConfig  `mapstructure:"server"`
	Catalog *CatalogConfig `mapstructure:"catalog"`
	Session *SessionConfig `mapstructure:"session"`
	Match   *MatchConfig   `mapstructure:"match"`
	AI      *AIConfig      `mapstructure:"ai"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed-origins"`
}

type CatalogConfig struct {
	File string `mapstructure:"file"`
}

type SessionConfig struct {
	MaxTurns int `mapstructure:"max-turns"`
}

type MatchConfig struct {
	RateSlack      float64 `mapstructure:"rate-slack"`
	NeighborProbes int     `mapstructure:"neighbor-probes"`
	NeighborCap    int     `mapstructure:"neighbor-cap"`
	BestOverallCap int     `mapstructure:"best-overall-cap"`
}

type AIConfig struct {
	Provider string        `mapstructure:"provider"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKeyFile        string  `mapstructure:"api-key-file"`
	Model             string  `mapstructure:"model"`
	MaxRetries        int     `mapstructure:"max-retries"`
	MaxLogLength      int     `mapstructure:"max-log-length"`
	RequestsPerMinute float64 `mapstructure:"requests-per-minute"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "locum-chat is a conversational job-matching service for locum clinicians",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("ai.gemini.api-key-file", "GEMINI_API_KEY_FILE"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY_FILE environment variable: %v", err)
	}

	viper.SetDefault("server.port", defaultPort)
	viper.SetDefault("catalog.file", defaultCatalogFile)

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is locum-chat.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// Config matters only for the commands that run the pipeline.
	if serveCmd.CalledAs() == "" && consoleCmd.CalledAs() == "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app + ".yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		// Defaults cover everything, so a missing config file is fine
		// unless the user pointed at one explicitly.
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return
		}
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}
