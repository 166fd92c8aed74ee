// Package indexcmder provides the index command for building and updating
// the persistent embedding index.
package indexcmder

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/cliui"
	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/config"
	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/dirs"
	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/dotdir"
	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/embeddings"
	embeddingutils "github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/embeddings/utils"
	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/indexer"
	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/logger"
	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/store"
)

const indexLongDesc string = `Build or update the embedding index.

Walks the configured input, output, and temp directories for images and
brings the persistent index up to date: unchanged files are skipped, new
files are embedded and appended, and modified files are re-embedded in
place. Requires a running embedding sidecar (see --embedding-target).

Each quality preset keeps its own index; pass --quality to pick which
one to update.

Examples:
  imagesearch index
  imagesearch index --quality high_quality_slow
  imagesearch index --rebuild
  imagesearch index --output-dir ~/comfy/output --include-temp`

const indexShortDesc string = "Build or update the embedding index"

type indexCommander struct {
	inputDir  string
	outputDir string
	tempDir   string
	cacheDir  string

	embeddingProvider string
	embeddingTarget   string

	quality     string
	rebuild     bool
	includeTemp bool
	threads     int
	batchSize   int

	configDir string
	debug     bool
	logger    *zap.Logger
}

func NewIndexCmd() *cobra.Command {
	cmder := &indexCommander{}

	cmd := &cobra.Command{
		Use:   "index",
		Short: indexShortDesc,
		Long:  indexLongDesc,
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

			if !cmd.Flags().Changed("input-dir") {
				cmder.inputDir = cfg.Dirs.Input
			}
			if !cmd.Flags().Changed("output-dir") {
				cmder.outputDir = cfg.Dirs.Output
			}
			if !cmd.Flags().Changed("temp-dir") {
				cmder.tempDir = cfg.Dirs.Temp
			}
			if !cmd.Flags().Changed("cache-dir") {
				cmder.cacheDir = cfg.Storage.CacheDir
			}
			if !cmd.Flags().Changed("embedding-provider") {
				cmder.embeddingProvider = cfg.Embedding.Provider
			}
			if !cmd.Flags().Changed("embedding-target") {
				cmder.embeddingTarget = cfg.Embedding.Target
			}
			if !cmd.Flags().Changed("threads") {
				cmder.threads = cfg.Index.Threads
			}
			if !cmd.Flags().Changed("batch-size") {
				cmder.batchSize = cfg.Index.BatchSize
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			return cmder.run(cmd.Context())
		},
	}

	defaults := config.NewDefaultConfig()
	cmd.Flags().StringVarP(&cmder.inputDir, "input-dir", "i", defaults.Dirs.Input, "Input image directory")
	cmd.Flags().StringVarP(&cmder.outputDir, "output-dir", "o", defaults.Dirs.Output, "Output image directory")
	cmd.Flags().StringVar(&cmder.tempDir, "temp-dir", defaults.Dirs.Temp, "Temp image directory")
	cmd.Flags().StringVar(&cmder.cacheDir, "cache-dir", "", "Index artifact directory (default: .imagesearch/index)")
	cmd.Flags().StringVar(&cmder.embeddingProvider, "embedding-provider", defaults.Embedding.Provider, "Embedding provider type (e.g., clipd)")
	cmd.Flags().StringVar(&cmder.embeddingTarget, "embedding-target", defaults.Embedding.Target, "Embedding sidecar URL")
	cmd.Flags().StringVarP(&cmder.quality, "quality", "q", string(embeddings.QualityBalanced), "Embedding quality preset")
	cmd.Flags().BoolVar(&cmder.rebuild, "rebuild", false, "Discard the stored index and re-embed everything")
	cmd.Flags().BoolVar(&cmder.includeTemp, "include-temp", false, "Also index the temp directory")
	cmd.Flags().IntVar(&cmder.threads, "threads", defaults.Index.Threads, "Concurrent image load workers")
	cmd.Flags().IntVar(&cmder.batchSize, "batch-size", defaults.Index.BatchSize, "Images per embedding request")

	return cmd
}

func (c *indexCommander) run(ctx context.Context) error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	d := dirs.Dirs{Input: c.inputDir, Output: c.outputDir, Temp: c.tempDir}
	files := d.Gather(true, true, c.includeTemp)
	if len(files) == 0 {
		fmt.Printf("\n  %s No images found under the configured directories.\n\n", cliui.DimStyle.Render("●"))
		return nil
	}

	cacheDir, err := c.resolveCacheDir()
	if err != nil {
		return err
	}

	st, err := store.New(cacheDir, c.logger)
	if err != nil {
		return err
	}
	ix := indexer.NewIndexer(&indexer.Config{Store: st, Logger: c.logger})

	model := embeddings.ModelForQuality(embeddings.Quality(c.quality))

	if c.rebuild {
		if err := st.Clear(model.ID); err != nil {
			return fmt.Errorf("clearing index: %w", err)
		}
	}

	embedder, err := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
		ProviderType: c.embeddingProvider,
		TargetURL:    c.embeddingTarget,
		Quality:      c.quality,
	})
	if err != nil {
		return fmt.Errorf("creating embedder: %w", err)
	}
	defer func() { _ = embedder.Close() }()

	before := len(files)
	var entries []store.Entry
	if err := cliui.Step(os.Stdout, fmt.Sprintf("Indexing %d images", before), func() error {
		var updateErr error
		_, entries, updateErr = ix.Update(ctx, &indexer.UpdateOpts{
			Files:     files,
			Embedder:  embedder,
			ModelKey:  model.ID,
			Threads:   c.threads,
			BatchSize: c.batchSize,
		})
		return updateErr
	}); err != nil {
		return err
	}

	fmt.Printf("\n  %s Index holds %s images %s\n\n",
		cliui.SuccessMark,
		cliui.NameStyle.Render(strconv.Itoa(len(entries))),
		cliui.DimStyle.Render(fmt.Sprintf("(%s, %s)", c.quality, cacheDir)),
	)
	return nil
}

// resolveCacheDir picks the index artifact directory: the configured one
// when set, otherwise the dot directory's index/ subdirectory.
func (c *indexCommander) resolveCacheDir() (string, error) {
	if c.cacheDir != "" {
		return c.cacheDir, nil
	}
	return dotdir.NewManager().IndexDir(c.configDir)
}
