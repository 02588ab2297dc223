package main

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"time"

	"github.com/kdimtricp/lostfound/internal/ai"
	"github.com/kdimtricp/lostfound/internal/config"
	"github.com/kdimtricp/lostfound/internal/logging"
	"github.com/kdimtricp/lostfound/internal/media"
	"github.com/kdimtricp/lostfound/internal/models"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:          "check-ai",
	Short:        "Check the AI provider configuration with one extraction and one ranking",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		logger, err := logging.New("warn", "console")
		if err != nil {
			return err
		}
		defer logger.Sync()

		return check(cmd.Context(), cmd.OutOrStdout(), &cfg.AI, func(ctx context.Context) (ai.Client, error) {
			return ai.NewClient(ctx, &cfg.AI, logger)
		})
	},
}

func main() {
	rootCmd.Flags().StringVar(&configPath, "config", "", "YAML config file (defaults to $CONFIG_FILE)")
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func check(ctx context.Context, w io.Writer, cfg *ai.Config, newClient func(context.Context) (ai.Client, error)) error {
	fmt.Fprintln(w, "🔍 Checking AI configuration")
	fmt.Fprintln(w, "============================")

	enabled := func(key string) string {
		if key == "" {
			return "not set"
		}
		return "set"
	}
	fmt.Fprintf(w, "   - Gemini key: %s (model %s)\n", enabled(cfg.GeminiAPIKey), cfg.GeminiModel)
	fmt.Fprintf(w, "   - OpenAI key: %s (model %s)\n", enabled(cfg.OpenAIAPIKey), cfg.OpenAIModel)

	provider, err := ai.ResolveProvider(cfg)
	if err != nil {
		fmt.Fprintf(w, "⚠️  %v\n", err)
		return err
	}
	fmt.Fprintf(w, "✅ Provider: %s\n\n", provider)

	client, err := newClient(ctx)
	if err != nil {
		fmt.Fprintf(w, "❌ Failed to initialize provider: %v\n", err)
		return err
	}

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	img, err := sampleImage()
	if err != nil {
		return err
	}

	start := time.Now()
	features, err := client.ExtractFeatures(ctx, ai.ExtractRequest{
		Image:       img,
		Description: "Red umbrella with a wooden handle",
		Location:    "Main library entrance",
	})
	if err != nil {
		fmt.Fprintf(w, "❌ Feature extraction failed: %v\n", err)
		return err
	}
	features = features.Normalize()
	fmt.Fprintf(w, "🖼️  Extraction (%s): %s / %s / %s\n",
		time.Since(start).Round(time.Millisecond), features.ItemName, features.Category, features.PrimaryColor)

	lost := models.Item{ID: "check-lost", Kind: models.KindLost, Description: "Lost my red umbrella", Location: "Library", Features: features}
	found := models.Item{ID: "check-found", Kind: models.KindFound, Description: "Red umbrella left by the door", Location: "Library", Features: features}

	start = time.Now()
	ranked, err := client.RankMatches(ctx, lost, []models.Item{found})
	if err != nil {
		fmt.Fprintf(w, "❌ Match ranking failed: %v\n", err)
		return err
	}
	fmt.Fprintf(w, "🔗 Ranking (%s): %d candidate(s) above threshold\n", time.Since(start).Round(time.Millisecond), len(ranked))
	for _, r := range ranked {
		fmt.Fprintf(w, "   - %s: %.0f%% %q\n", r.ID, r.Score*100, r.Reasoning)
	}
	return nil
}

// sampleImage draws a small solid red square.
func sampleImage() (media.Image, error) {
	rgba := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for x := 0; x < 16; x++ {
		for y := 0; y < 16; y++ {
			rgba.Set(x, y, color.RGBA{R: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, rgba); err != nil {
		return media.Image{}, err
	}
	return media.Prepare(buf.Bytes(), "image/png", 0)
}
