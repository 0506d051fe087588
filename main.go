package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"node.town/listen/config"
	"node.town/listen/speechtotext"
)

var logger = log.New(os.Stderr)

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("url", speechtotext.BaseURL, "Service base URL")
	rootCmd.PersistentFlags().String("username", "", "Service username")
	rootCmd.PersistentFlags().String("password", "", "Service password")
	rootCmd.PersistentFlags().String("token", "", "Bearer token, used instead of username/password")
	rootCmd.PersistentFlags().String("model", "", "Recognition model")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")

	viper.BindPFlag(config.KeyURL, rootCmd.PersistentFlags().Lookup("url"))
	viper.BindPFlag(config.KeyUsername, rootCmd.PersistentFlags().Lookup("username"))
	viper.BindPFlag(config.KeyPassword, rootCmd.PersistentFlags().Lookup("password"))
	viper.BindPFlag(config.KeyToken, rootCmd.PersistentFlags().Lookup("token"))
	viper.BindPFlag(config.KeyModel, rootCmd.PersistentFlags().Lookup("model"))
	viper.BindPFlag(config.KeyLogLevel, rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.AddCommand(setupCmd)
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(sessionCmd)
	rootCmd.AddCommand(recognizeCmd)
	rootCmd.AddCommand(liveCmd)
	rootCmd.AddCommand(streamCmd)
}

func initConfig() {
	viper.SetConfigName("listen")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(filepath.Join(home, ".config", "listen"))
	}
	viper.SetEnvPrefix("listen")
	viper.AutomaticEnv()
	config.SetDefaults(viper.GetViper())

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "Error reading config file: %s\n", err)
		}
	}
}

var rootCmd = &cobra.Command{
	Use:   "listen",
	Short: "Speech recognition from the command line",
	Long: `listen talks to a session-based speech recognition service: one-shot
recognition, chunked live upload against a session, and duplex streaming
with interim results.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// loadClient reads the config, applies its log level and returns a client
// logging under the "hear" prefix.
func loadClient() (*config.Config, *speechtotext.Client) {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", "error", err)
	}

	logger.SetLevel(cfg.LogLevel)
	if cfg.LogLevel == log.DebugLevel {
		logger.SetReportCaller(true)
		logger.SetCallerFormatter(log.ShortCallerFormatter)
	}
	logger.SetStyles(logStyles())

	logger.WithPrefix("main").Debug("config", "url", cfg.URL, "model", cfg.Model)
	return cfg, speechtotext.NewClient(cfg.ClientOptions(logger.WithPrefix("hear"))...)
}

// logStyles keeps level tags short and highlights keys, so transcript
// lines stay readable between log output.
func logStyles() *log.Styles {
	styles := log.DefaultStyles()
	styles.Prefix = styles.Prefix.Bold(false).Transform(func(s string) string {
		return strings.TrimSuffix(s, ":")
	})
	for _, level := range []log.Level{log.DebugLevel, log.InfoLevel, log.WarnLevel, log.ErrorLevel} {
		styles.Levels[level] = styles.Levels[level].MaxWidth(4).MarginRight(1).Bold(false)
	}
	styles.Message = styles.Message.Bold(true).Width(16)
	styles.Key = styles.Key.Bold(false).Foreground(lipgloss.Color("#ff8800"))
	return styles
}
