// Package searchcmder provides the search command for finding images by
// visual similarity.
package searchcmder

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/config"
	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/dirs"
	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/dotdir"
	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/gallery"
	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/indexer"
	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/logger"
	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/metrics"
	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/search"
	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/session"
	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/store"
	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/utils"
)

var (
	rankStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	scoreStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	pathStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	markerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	headerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	failureStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

const searchLongDesc string = `Find indexed images similar to one or more query images.

The index is brought up to date before searching, so new or modified
files under the searched directories are picked up automatically.
Requires a running embedding sidecar (see --embedding-target).

With multiple query images, each candidate is scored by its best match
against any query. Results at or above the similarity threshold are
ranked and printed with per-image detail.

Use --quiet to output only result paths, one per line. This is useful
for piping into other tools.

Examples:
  imagesearch search reference.png
  imagesearch search front.png side.png --top 20
  imagesearch search ref.png --quality high_quality_slow --threshold 0.9
  imagesearch search ref.png --quiet | xargs -I{} cp {} ./picks/`

const searchShortDesc string = "Find images similar to the given queries"

type searchCommander struct {
	queryImages []string

	inputDir  string
	outputDir string
	tempDir   string
	cacheDir  string

	embeddingProvider string
	embeddingTarget   string

	quality     string
	topK        int
	threshold   float64
	sortOrder   string
	sessionID   string
	rebuild     bool
	includeTemp bool
	accelerated bool
	threads     int
	batchSize   int

	quiet  bool
	asJSON bool

	configDir string
	debug     bool
	logger    *zap.Logger
}

func NewSearchCmd() *cobra.Command {
	cmder := &searchCommander{}

	cmd := &cobra.Command{
		Use:   "search <image>...",
		Short: searchShortDesc,
		Long:  searchLongDesc,
		Args:  cobra.MinimumNArgs(1),
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
			if !cmd.Flags().Changed("accelerated") {
				cmder.accelerated = cfg.Index.Accelerated
			}
			if !cmd.Flags().Changed("threads") {
				cmder.threads = cfg.Index.Threads
			}
			if !cmd.Flags().Changed("batch-size") {
				cmder.batchSize = cfg.Index.BatchSize
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.queryImages = args

			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			return cmder.run(cmd.Context())
		},
	}

	defaults := config.NewDefaultConfig()
	cmd.Flags().IntVarP(&cmder.topK, "top", "k", 10, "Number of results to return")
	cmd.Flags().Float64VarP(&cmder.threshold, "threshold", "t", 0.85, "Minimum similarity score (0 to 1)")
	cmd.Flags().StringVar(&cmder.quality, "quality", "balanced", "Embedding quality preset")
	cmd.Flags().StringVar(&cmder.sortOrder, "sort", gallery.SortHighestFirst, "Result order (highest_similarity_first, lowest_similarity_first)")
	cmd.Flags().StringVar(&cmder.sessionID, "session", "", "Session identifier (default: generated)")
	cmd.Flags().BoolVar(&cmder.rebuild, "rebuild", false, "Discard the stored index and re-embed everything")
	cmd.Flags().BoolVar(&cmder.includeTemp, "include-temp", false, "Also search the temp directory")
	cmd.Flags().BoolVarP(&cmder.quiet, "quiet", "q", false, "Output only result paths, one per line (for piping)")
	cmd.Flags().BoolVar(&cmder.asJSON, "json", false, "Output the full gallery payload as JSON")
	cmd.Flags().StringVarP(&cmder.inputDir, "input-dir", "i", defaults.Dirs.Input, "Input image directory")
	cmd.Flags().StringVarP(&cmder.outputDir, "output-dir", "o", defaults.Dirs.Output, "Output image directory")
	cmd.Flags().StringVar(&cmder.tempDir, "temp-dir", defaults.Dirs.Temp, "Temp image directory")
	cmd.Flags().StringVar(&cmder.cacheDir, "cache-dir", "", "Index artifact directory (default: .imagesearch/index)")
	cmd.Flags().StringVar(&cmder.embeddingProvider, "embedding-provider", defaults.Embedding.Provider, "Embedding provider type (e.g., clipd)")
	cmd.Flags().StringVar(&cmder.embeddingTarget, "embedding-target", defaults.Embedding.Target, "Embedding sidecar URL")
	cmd.Flags().BoolVar(&cmder.accelerated, "accelerated", defaults.Index.Accelerated, "Use the sqlite-vec backend when available")
	cmd.Flags().IntVar(&cmder.threads, "threads", defaults.Index.Threads, "Concurrent image load workers")
	cmd.Flags().IntVar(&cmder.batchSize, "batch-size", defaults.Index.BatchSize, "Images per embedding request")

	return cmd
}

func (c *searchCommander) run(ctx context.Context) error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	for _, path := range c.queryImages {
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("query image %s: %w", path, err)
		}
	}

	cacheDir, err := c.resolveCacheDir()
	if err != nil {
		return err
	}

	st, err := store.New(cacheDir, c.logger)
	if err != nil {
		return err
	}

	d := dirs.Dirs{Input: c.inputDir, Output: c.outputDir, Temp: c.tempDir}
	engine := search.NewEngine(&search.Config{
		Dirs:        d,
		Store:       st,
		Indexer:     indexer.NewIndexer(&indexer.Config{Store: st, Logger: c.logger}),
		Sessions:    session.NewCache[gallery.Options](0),
		Metrics:     metrics.NewGatherer(&metrics.Config{Dirs: d, Logger: c.logger}),
		Provider:    c.embeddingProvider,
		ProviderURL: c.embeddingTarget,
		Accelerated: c.accelerated,
		Logger:      c.logger,
	})
	defer func() { _ = engine.Close() }()

	if c.sessionID == "" {
		c.sessionID = uuid.NewString()[:8]
	}

	options := gallery.DefaultOptions()
	options.SessionID = c.sessionID
	options.QueryImages = c.queryImages
	options.ClipQuality = c.quality
	options.SimilarityThreshold = c.threshold
	options.MaxResults = c.topK
	options.SortOrder = c.sortOrder
	options.RebuildIndex = c.rebuild
	options.SearchTempDir = c.includeTemp
	options.IndexThreads = c.threads
	options.EmbedBatchSize = c.batchSize

	g, err := engine.Search(ctx, options)
	if err != nil {
		return err
	}

	c.saveLastSearch(g)

	switch {
	case c.asJSON:
		return printJSON(g)
	case c.quiet:
		for _, result := range g.Results {
			fmt.Println(result.Path)
		}
		return nil
	default:
		c.printGallery(g)
		return nil
	}
}

// saveLastSearch records the search so a later gallery selection can
// reference the session. Failures are logged, never fatal.
func (c *searchCommander) saveLastSearch(g *gallery.Gallery) {
	state := &dotdir.LastSearchState{
		SessionID:  g.SessionID,
		Quality:    c.quality,
		Results:    len(g.Results),
		SearchedAt: time.Now(),
	}
	if err := dotdir.NewManager().SaveLastSearch(state, c.configDir); err != nil {
		c.logger.Warn("failed to save last search state", zap.Error(err))
	}
}

func (c *searchCommander) printGallery(g *gallery.Gallery) {
	if len(g.Results) == 0 {
		reason := g.Reason
		if reason == "" {
			reason = "No results above the similarity threshold."
		}
		fmt.Printf("\n  %s %s\n\n", dimStyle.Render("●"), failureStyle.Render(reason))
		return
	}

	fmt.Printf("\n%s %s\n\n",
		headerStyle.Render("Search results for:"),
		pathStyle.Render(fmt.Sprintf("%v", g.QueryImages)),
	)

	for i, result := range g.Results {
		c.printResult(i+1, result)
	}

	fmt.Printf("%s\n\n", dimStyle.Render(fmt.Sprintf(
		"  %d of %d indexed images matched (session %s)",
		len(g.Results), g.TotalIndexed, g.SessionID,
	)))
}

func (c *searchCommander) printResult(rank int, result metrics.Result) {
	fmt.Printf("  %s  %s  %s\n",
		rankStyle.Render(fmt.Sprintf("#%d", rank)),
		scoreStyle.Render(fmt.Sprintf("score: %.4f", result.Similarity)),
		pathStyle.Render(result.Path),
	)

	detail := fmt.Sprintf("%dx%d  %s", result.Width, result.Height, formatSize(result.FileSize))
	if result.IsDark {
		detail += "  dark"
	} else {
		detail += "  light"
	}
	fmt.Printf("      %s", dimStyle.Render(detail))

	if result.HasWorkflow {
		fmt.Printf("  %s", markerStyle.Render("workflow"))
	}
	if result.HasPrompt {
		fmt.Printf("  %s", markerStyle.Render("prompt"))
	}
	if result.Error != "" {
		fmt.Printf("  %s", failureStyle.Render(utils.Truncate(result.Error, 60)))
	}
	fmt.Println()
}

func printJSON(g *gallery.Gallery) error {
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding gallery: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func formatSize(bytes int64) string {
	switch {
	case bytes >= 1<<20:
		return fmt.Sprintf("%.1fMB", float64(bytes)/(1<<20))
	case bytes >= 1<<10:
		return fmt.Sprintf("%.1fKB", float64(bytes)/(1<<10))
	default:
		return fmt.Sprintf("%dB", bytes)
	}
}

// resolveCacheDir picks the index artifact directory: the configured one
// when set, otherwise the dot directory's index/ subdirectory.
func (c *searchCommander) resolveCacheDir() (string, error) {
	if c.cacheDir != "" {
		return c.cacheDir, nil
	}
	return dotdir.NewManager().IndexDir(c.configDir)
}
