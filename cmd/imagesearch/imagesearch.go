// Package imagesearchcmder
package imagesearchcmder

import (
	"github.com/spf13/cobra"

	clearcmder "github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/cmd/imagesearch/clear"
	configcmder "github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/cmd/imagesearch/config"
	indexcmder "github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/cmd/imagesearch/index"
	initcmder "github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/cmd/imagesearch/init"
	searchcmder "github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/cmd/imagesearch/search"
	servecmder "github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/cmd/imagesearch/serve"
	statuscmder "github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/cmd/imagesearch/status"
	versioncmder "github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/cmd/version"
)

const imagesearchLongDesc string = `ImageSearch finds images by visual similarity.

Images under the configured input, output, and temp directories are
embedded with a CLIP model and indexed. Searches take one or more query
images and return the most similar indexed images.

Common commands:
  imagesearch index              Build or update the embedding index
  imagesearch search <image>...  Find images similar to the given queries
  imagesearch serve              Run the HTTP API for the gallery frontend`

const imagesearchShortDesc string = "ImageSearch - image similarity search"

func NewImageSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "imagesearch",
		Short: imagesearchShortDesc,
		Long:  imagesearchLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to .imagesearch/ config directory")

	// Add subcommands
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(indexcmder.NewIndexCmd())
	cmd.AddCommand(searchcmder.NewSearchCmd())
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(clearcmder.NewClearCmd())
	cmd.AddCommand(statuscmder.NewStatusCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
