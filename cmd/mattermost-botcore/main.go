// Copyright 2024-2026 Aiku AI

// Command mattermost-botcore runs the Mattermost bot backend as a standalone
// daemon: it connects to the server, normalizes the real-time event stream
// and logs the resulting messages, presence changes and membership events.
// Embedders replace the logging sink with their own bot framework.
package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "embed"

	"github.com/kelseyhightower/envconfig"
	"github.com/mattermost/mattermost/server/public/model"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"go.mau.fi/util/ptr"
	"go.mau.fi/zeroconfig"
	"gopkg.in/yaml.v3"

	"github.com/aiku/mattermost-botcore/pkg/backend"
)

// These are filled at build time with -ldflags.
var (
	Tag       = "unknown"
	Commit    = "unknown"
	BuildTime = "unknown"
)

//go:embed example-config.yaml
var exampleConfig string

type daemonConfig struct {
	Backend backend.Config    `yaml:"backend"`
	Logging zeroconfig.Config `yaml:"logging"`
}

func loadConfig(path string) (*daemonConfig, error) {
	var cfg daemonConfig
	raw, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}
	if err := envconfig.Process("mattermost_bot", &cfg.Backend); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}
	if err := cfg.Backend.PostProcess(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if len(cfg.Logging.Writers) == 0 {
		cfg.Logging = zeroconfig.Config{
			MinLevel: ptr.Ptr(zerolog.InfoLevel),
			Writers: []zeroconfig.WriterConfig{{
				Type:   zeroconfig.WriterTypeStderr,
				Format: zeroconfig.LogFormatPrettyColored,
			}},
		}
	}
	return &cfg, nil
}

func run(configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	log, err := cfg.Logging.Compile()
	if err != nil {
		return fmt.Errorf("failed to configure logging: %w", err)
	}

	client := model.NewAPIv4Client(cfg.Backend.APIURL())
	client.HTTPClient = &http.Client{
		Timeout: time.Duration(cfg.Backend.Timeout) * time.Second,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: cfg.Backend.Insecure},
		},
	}
	if cfg.Backend.Token != "" {
		client.SetToken(cfg.Backend.Token)
	}

	b := backend.New(cfg.Backend, client, &logSink{log: *log}, *log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().
		Str("server", cfg.Backend.Server).
		Str("team", cfg.Backend.Team).
		Str("version", Tag).
		Msg("Starting mattermost-botcore")
	return b.Serve(ctx)
}

func main() {
	var configPath string

	root := &cobra.Command{
		Use:          "mattermost-botcore",
		Short:        "Mattermost bot backend daemon",
		Version:      fmt.Sprintf("%s (%s, built %s)", Tag, Commit, BuildTime),
		SilenceUsage: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			return run(configPath)
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the config file")

	root.AddCommand(&cobra.Command{
		Use:   "genconfig",
		Short: "Print an example config file",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.OutOrStdout().Write([]byte(exampleConfig))
		},
	})

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
