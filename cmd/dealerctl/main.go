package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	dealerrfq "github.com/kaifufi/dealer-rfq-sdk-go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	envFile  string
	logLevel string

	logger *zap.Logger
	client *dealerrfq.Client
)

var rootCmd = &cobra.Command{
	Use:   "dealerctl",
	Short: "Request and fill 0x v3 quotes from an RFQ dealer",
	Long: `dealerctl talks to a dealer's RFQ API as a taker. It requests firm quotes,
checks them against the chain, signs the fill transaction and hands it to the
dealer for submission.

Configuration is read from DEALER_* environment variables, after loading a
.env file when one is present.`,
	SilenceUsage:       true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Path of a .env file to load (default ./.env)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level; overrides DEALER_LOG_LEVEL")

	rootCmd.AddCommand(marketsCmd)
	rootCmd.AddCommand(quoteCmd)
	rootCmd.AddCommand(fillCmd)
	rootCmd.AddCommand(allowanceCmd)
	rootCmd.AddCommand(balanceCmd)
	rootCmd.AddCommand(waitCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func setup(cmd *cobra.Command, _ []string) error {
	var envFiles []string
	if envFile != "" {
		envFiles = append(envFiles, envFile)
	}
	cfg, err := dealerrfq.LoadClientConfig(envFiles...)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	if logger, err = newLogger(cfg.LogLevel); err != nil {
		return err
	}

	if client, err = dealerrfq.NewClient(*cfg, dealerrfq.WithLogger(logger)); err != nil {
		return err
	}
	return client.Init(cmd.Context())
}

func teardown(*cobra.Command, []string) error {
	if client != nil {
		client.Close()
	}
	if logger != nil {
		_ = logger.Sync()
	}
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("failed to parse log level: %w", err)
	}

	config := zap.NewProductionConfig()
	if lvl == zapcore.DebugLevel {
		config = zap.NewDevelopmentConfig()
	}
	config.Level = zap.NewAtomicLevelAt(lvl)
	config.OutputPaths = []string{"stderr"}

	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}
