package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"google.golang.org/api/option"

	gstt "github.com/luiz-pereira/go-google-stt"
	"github.com/luiz-pereira/go-google-stt/config"
	"github.com/luiz-pereira/go-google-stt/transport/google"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "stt-server",
		Short: "WebSocket front end for streaming Google speech transcription",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath)
		},
	}
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Level:           parseLevel(cfg.Logging.Level),
	})

	gstt.SetDefaultRecognizer(cfg.Speech.Recognizer)

	var opts []option.ClientOption
	if cfg.Speech.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Speech.Endpoint))
	}
	provider := google.NewProvider(opts...)

	server := gstt.NewServer(cfg, provider, logger)

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Start()
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case <-sig:
	}

	if err := server.Stop(); err != nil {
		logger.Error("error during shutdown", "err", err)
		return err
	}
	return nil
}

func parseLevel(level string) log.Level {
	switch level {
	case "debug":
		return log.DebugLevel
	case "warn":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}
