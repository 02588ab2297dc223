package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/kdimtricp/lostfound/internal/ai"
	"github.com/kdimtricp/lostfound/internal/config"
	"github.com/kdimtricp/lostfound/internal/logging"
	"github.com/kdimtricp/lostfound/internal/media"
	"github.com/kdimtricp/lostfound/internal/models"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	configPath  string
	imagePaths  []string
	description string
	location    string
	concurrency int
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "analyze-item",
	Short: "Extract item features from one or more photos",
	Long: `Runs the configured AI provider's feature extraction over each image and
prints one JSON object per image, in the order given.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		level := "warn"
		if verbose {
			level = "debug"
		}
		logger, err := logging.New(level, "console")
		if err != nil {
			return err
		}
		defer logger.Sync()

		client, err := ai.NewClient(cmd.Context(), &cfg.AI, logger)
		if err != nil {
			return err
		}

		logger.Debug("Analyzing images",
			zap.String("provider", client.SourceName()),
			zap.Int("count", len(imagePaths)),
			zap.Int("concurrency", concurrency))

		results, err := analyze(cmd.Context(), client, imagePaths, description, location, concurrency, cfg.MaxImageSize)
		if err != nil {
			return err
		}
		return writeResults(cmd.OutOrStdout(), results)
	},
}

type result struct {
	Image    string              `json:"image"`
	MIMEType string              `json:"mimeType"`
	Features models.ItemFeatures `json:"features"`
}

func main() {
	rootCmd.Flags().StringVar(&configPath, "config", "", "YAML config file (defaults to $CONFIG_FILE)")
	rootCmd.Flags().StringArrayVar(&imagePaths, "image", nil, "image to analyse (repeatable)")
	rootCmd.Flags().StringVar(&description, "description", "", "description sent with every image")
	rootCmd.Flags().StringVar(&location, "location", "", "location sent with every image")
	rootCmd.Flags().IntVar(&concurrency, "concurrency", 2, "images analysed at once")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.MarkFlagRequired("image")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// analyze extracts features for every path. The first failure cancels the
// rest.
func analyze(ctx context.Context, extractor ai.FeatureExtractor, paths []string, description, location string, concurrency int, maxImageSize int64) ([]result, error) {
	if concurrency < 1 {
		concurrency = 1
	}

	results := make([]result, len(paths))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(concurrency)

	for i, path := range paths {
		eg.Go(func() error {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("reading %s: %w", path, err)
			}
			img, err := media.Prepare(data, "", maxImageSize)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}

			features, err := extractor.ExtractFeatures(egCtx, ai.ExtractRequest{
				Image:       img,
				Description: description,
				Location:    location,
			})
			if err != nil {
				return fmt.Errorf("analyzing %s: %w", path, err)
			}

			results[i] = result{Image: path, MIMEType: img.MIMEType, Features: features.Normalize()}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func writeResults(w io.Writer, results []result) error {
	enc := json.NewEncoder(w)
	for _, r := range results {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return nil
}
