package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"unlabel/backend/internal/agent"
	"unlabel/backend/internal/compare"
	"unlabel/backend/internal/pipeline"
)

func decideCmd() *cobra.Command {
	var text, file, intent string
	cmd := &cobra.Command{
		Use:   "decide",
		Short: "Run the decision pipeline on a label",
		RunE: func(cmd *cobra.Command, args []string) error {
			label, err := readText(text, file)
			if err != nil {
				return err
			}
			svc, err := loadServices(cmd.Context())
			if err != nil {
				return err
			}
			result, err := svc.coordinator.Process(cmd.Context(), pipeline.Request{Text: label, UserIntent: intent})
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "label text")
	cmd.Flags().StringVarP(&file, "file", "f", "", "read label text from a file, - for stdin")
	cmd.Flags().StringVar(&intent, "intent", "", "what the user wants to know")
	return cmd
}

func compareCmd() *cobra.Command {
	var req compare.Request
	var fileA, fileB string
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare two product labels",
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if req.ProductAText, err = readText(req.ProductAText, fileA); err != nil {
				return err
			}
			if req.ProductBText, err = readText(req.ProductBText, fileB); err != nil {
				return err
			}
			if req.ProductAText == "" || req.ProductBText == "" {
				return errors.New("both products need label text")
			}
			svc, err := loadServices(cmd.Context())
			if err != nil {
				return err
			}
			result, err := svc.comparer.Compare(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().StringVar(&req.ProductAText, "a", "", "label text of product A")
	cmd.Flags().StringVar(&req.ProductBText, "b", "", "label text of product B")
	cmd.Flags().StringVar(&fileA, "a-file", "", "read product A from a file")
	cmd.Flags().StringVar(&fileB, "b-file", "", "read product B from a file")
	cmd.Flags().StringVar(&req.ProductAName, "a-name", "", "display name of product A")
	cmd.Flags().StringVar(&req.ProductBName, "b-name", "", "display name of product B")
	return cmd
}

func agentCmd() *cobra.Command {
	var text, file, image, query string
	var quiet bool
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Run the autonomous agent on a label text or photo",
		RunE: func(cmd *cobra.Command, args []string) error {
			in := agent.Input{Query: query}
			var err error
			if in.Text, err = readText(text, file); err != nil {
				return err
			}
			if image != "" {
				if in.Image, err = os.ReadFile(image); err != nil {
					return fmt.Errorf("read image: %w", err)
				}
				in.ImageMIME = http.DetectContentType(in.Image)
			}
			if in.Text == "" && len(in.Image) == 0 {
				return errors.New("text or image is required")
			}

			svc, err := loadServices(cmd.Context())
			if err != nil {
				return err
			}
			var sink agent.ProgressSink
			if !quiet {
				stderr := cmd.ErrOrStderr()
				sink = agent.ProgressFunc(func(_ context.Context, p agent.Progress) {
					fmt.Fprintf(stderr, "[%d/%d] %s\n", p.Step, p.Total, p.Message)
				})
			}
			result, err := svc.agent.Run(cmd.Context(), in, sink)
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "label text")
	cmd.Flags().StringVarP(&file, "file", "f", "", "read label text from a file, - for stdin")
	cmd.Flags().StringVar(&image, "image", "", "path to a label photo")
	cmd.Flags().StringVar(&query, "query", "", "question for the agent")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "do not print progress")
	return cmd
}
