// Package clearcmder provides the clear command for removing stored index
// artifacts.
package clearcmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/cliui"
	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/config"
	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/dotdir"
	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/embeddings"
	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/logger"
	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/store"
)

const clearLongDesc string = `Remove stored index artifacts.

Deletes the persisted embedding matrix and metadata for every quality
preset, plus the last-search state. The next index or search run
re-embeds from scratch.

Pass --quality to clear a single preset's index and keep the others.

Examples:
  imagesearch clear
  imagesearch clear --quality high_quality_slow`

const clearShortDesc string = "Remove stored index artifacts"

type clearCommander struct {
	cacheDir string
	quality  string

	configDir string
}

func NewClearCmd() *cobra.Command {
	cmder := &clearCommander{}

	cmd := &cobra.Command{
		Use:   "clear",
		Short: clearShortDesc,
		Long:  clearLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			cmder.configDir = configDir

			cfger, err := config.NewConfiger(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			cfg, err := cfger.LoadConfig()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			if !cmd.Flags().Changed("cache-dir") {
				cmder.cacheDir = cfg.Storage.CacheDir
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			debug, err := cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			return cmder.run(debug)
		},
	}

	cmd.Flags().StringVar(&cmder.cacheDir, "cache-dir", "", "Index artifact directory (default: .imagesearch/index)")
	cmd.Flags().StringVarP(&cmder.quality, "quality", "q", "", "Clear only this quality preset's index")

	return cmd
}

func (c *clearCommander) run(debug bool) error {
	log := logger.NewLogger(debug)
	defer func() { _ = log.Sync() }()

	manager := dotdir.NewManager()

	cacheDir := c.cacheDir
	if cacheDir == "" {
		var err error
		cacheDir, err = manager.IndexDir(c.configDir)
		if err != nil {
			return err
		}
	}

	st, err := store.New(cacheDir, log)
	if err != nil {
		return err
	}

	qualities := []embeddings.Quality{
		embeddings.QualityVeryFast,
		embeddings.QualityBalanced,
		embeddings.QualityHigh,
	}
	if c.quality != "" {
		qualities = []embeddings.Quality{embeddings.Quality(c.quality)}
	}

	fmt.Println()
	for _, quality := range qualities {
		model := embeddings.ModelForQuality(quality)
		if err := st.Clear(model.ID); err != nil {
			return fmt.Errorf("clearing %s index: %w", quality, err)
		}
		fmt.Printf("  %s Cleared %s %s\n",
			cliui.SuccessMark,
			cliui.KeyStyle.Render(string(quality)),
			cliui.DimStyle.Render("("+model.ID+")"),
		)
	}

	if c.quality == "" {
		if err := manager.ClearLastSearch(c.configDir); err != nil {
			return err
		}
		fmt.Printf("  %s Cleared last search state\n", cliui.SuccessMark)
	}
	fmt.Println()

	return nil
}
