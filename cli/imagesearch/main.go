package main

import (
	"os"

	imagesearchcmder "github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/cmd/imagesearch"
)

func main() {
	cmd := imagesearchcmder.NewImageSearchCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
