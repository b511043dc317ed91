package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"unlabel/backend/internal/agent"
	"unlabel/backend/internal/compare"
	"unlabel/backend/internal/config"
	"unlabel/backend/internal/pipeline"
	"unlabel/backend/internal/util"
)

var (
	dump     bool
	logLevel string
	rootCmd  = &cobra.Command{
		Use:           "labelctl",
		Short:         "labelctl runs the label analysis pipelines from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// Execute runs the root command.
func Execute() error {
	rootCmd.PersistentFlags().BoolVar(&dump, "dump", false, "print a deep Go dump of the result instead of JSON")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL")
	rootCmd.AddCommand(decideCmd())
	rootCmd.AddCommand(compareCmd())
	rootCmd.AddCommand(agentCmd())
	rootCmd.AddCommand(foodCmd())
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	return nil
}

// services are the analysis components a command needs.
type services struct {
	cfg         config.Config
	coordinator *pipeline.Coordinator
	agent       *agent.Agent
	comparer    *compare.Service
}

func loadServices(ctx context.Context) (*services, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	cfg.Log.Apply()
	// Logs go to stderr so stdout carries only the result.
	logrus.SetOutput(os.Stderr)

	gateway, err := cfg.AI.NewGateway(ctx)
	if err != nil {
		return nil, err
	}
	coordinator := pipeline.NewCoordinator(gateway, pipeline.Options{MaxTranslations: cfg.Pipeline.MaxTranslations})
	return &services{
		cfg:         cfg,
		coordinator: coordinator,
		agent: agent.New(gateway, coordinator, coordinator.Analyzer(), agent.Config{
			MaxSteps:    cfg.Agent.MaxSteps,
			EnforcePlan: cfg.Agent.EnforcePlan,
		}),
		comparer: compare.NewService(gateway, coordinator),
	}, nil
}

// printResult writes v as indented JSON, or as a spew dump with --dump.
func printResult(w io.Writer, v any) error {
	if dump {
		util.Dump(w, v)
		return nil
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// readText returns the inline value, the contents of path, or stdin when path is "-".
func readText(inline, path string) (string, error) {
	if strings.TrimSpace(inline) != "" {
		return inline, nil
	}
	switch path {
	case "":
		return "", nil
	case "-":
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}
