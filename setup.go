package main

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"node.town/listen/config"
)

type setupAnswers struct {
	URL      string
	Username string
	Password string
	Token    string
	Model    string
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Write listen.yaml interactively",
	Run:   runSetup,
}

func init() {
	setupCmd.Flags().String("path", "", "Config file to write (default $HOME/.config/listen/listen.yaml)")
}

func runSetup(cmd *cobra.Command, args []string) {
	logger.Info("setup", "config", viper.ConfigFileUsed())

	answers := setupAnswers{
		URL:      viper.GetString(config.KeyURL),
		Username: viper.GetString(config.KeyUsername),
		Token:    viper.GetString(config.KeyToken),
		Model:    viper.GetString(config.KeyModel),
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Service URL").
				Value(&answers.URL).
				Validate(validateURL),
			huh.NewInput().
				Title("Default model (optional)").
				Value(&answers.Model),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Bearer token (leave empty for username/password)").
				Value(&answers.Token),
			huh.NewInput().
				Title("Username").
				Value(&answers.Username),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&answers.Password),
		),
	)

	if err := form.Run(); err != nil {
		logger.Fatal("setup", "error", err)
	}

	path, _ := cmd.Flags().GetString("path")
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			logger.Fatal("home directory", "error", err)
		}
		path = filepath.Join(home, ".config", "listen", "listen.yaml")
	}

	if err := writeSetupConfig(viper.New(), path, answers); err != nil {
		logger.Fatal("save config", "error", err)
	}

	logger.Info("setup", "wrote", path)
}

func validateURL(s string) error {
	u, err := url.Parse(s)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("URL must start with http:// or https://")
	}
	return nil
}

// writeSetupConfig stores answers as YAML at path, creating its directory.
func writeSetupConfig(v *viper.Viper, path string, answers setupAnswers) error {
	if err := validateURL(answers.URL); err != nil {
		return fmt.Errorf("url: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	v.Set(config.KeyURL, answers.URL)
	if answers.Model != "" {
		v.Set(config.KeyModel, answers.Model)
	}
	if answers.Token != "" {
		v.Set(config.KeyToken, answers.Token)
	} else {
		v.Set(config.KeyUsername, answers.Username)
		v.Set(config.KeyPassword, answers.Password)
	}

	v.SetConfigType("yaml")
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
