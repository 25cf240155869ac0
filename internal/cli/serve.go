package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/urlsentry/urlsentry-go/internal/config"
	"github.com/urlsentry/urlsentry-go/internal/server"
)

var (
	servePort       string
	serveConfig     string
	serveRules      string
	serveModel      string
	serveFeedback   string
	serveTLSDomains []string
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&servePort, "port", "", "HTTP listen port")
	serveCmd.Flags().StringVar(&serveConfig, "config", "", "Path to config YAML")
	serveCmd.Flags().StringVar(&serveRules, "rules", "", "Path to rule lists YAML")
	serveCmd.Flags().StringVar(&serveModel, "model", "", "Path to model coefficients JSON")
	serveCmd.Flags().StringVar(&serveFeedback, "feedback-log", "", "Path to feedback JSONL file")
	serveCmd.Flags().StringSliceVar(&serveTLSDomains, "tls-domain", nil, "Serve HTTPS for this domain (repeatable)")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the classification HTTP server",
	Long: "Runs the URL safety API: /predict, /feedback, /health plus the\n" +
		"batch, stats and live verdict endpoints under /api.\n" +
		"Rule lists and model coefficients hot-reload on file change.",
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(serveConfig)
	if err != nil {
		return err
	}

	// Flags beat the file and the environment.
	if servePort != "" {
		cfg.Port = servePort
	}
	if serveRules != "" {
		cfg.RulesPath = serveRules
	}
	if serveModel != "" {
		cfg.ModelPath = serveModel
	}
	if serveFeedback != "" {
		cfg.FeedbackPath = serveFeedback
	}
	if len(serveTLSDomains) > 0 {
		cfg.TLSDomains = serveTLSDomains
	}

	logger := server.SetupLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	ctx := context.Background()
	app, err := server.NewApp(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer app.Close()

	fmt.Fprintf(os.Stderr, "urlsentry listening on :%s\n", cfg.Port)
	return app.Run(ctx)
}
