// Package statuscmder provides the status command for displaying the
// last search recorded in the local .imagesearch directory.
package statuscmder

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/cliui"
	"github.com/WASasquatch/ComfyUI-Viewer-Image-Search-Extension/pkg/dotdir"
)

const statusLongDesc string = `Show the last recorded search.

Reads the local .imagesearch/ directory (or ~/.imagesearch/) to display
the most recent search session, including its id, quality preset, and
result count.

If no search has been recorded, indicates that no session exists yet.

Examples:
  imagesearch status`

const statusShortDesc string = "Show the last recorded search"

func NewStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: statusShortDesc,
		Long:  statusLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runStatus(configDir)
		},
	}

	return cmd
}

func runStatus(configDir string) error {
	manager := dotdir.NewManager()

	state, err := manager.LoadLastSearch(configDir)
	if err != nil {
		return fmt.Errorf("loading last search state: %w", err)
	}

	if state == nil {
		fmt.Printf("  %s No searches recorded yet.\n", cliui.DimStyle.Render("●"))
		return nil
	}

	fmt.Printf("\n  %s  %s\n", cliui.KeyStyle.Render("Last session:"), cliui.NameStyle.Render(state.SessionID))
	fmt.Printf("  %s  %s\n", cliui.KeyStyle.Render("Quality:     "), cliui.ValueStyle.Render(state.Quality))
	fmt.Printf("  %s  %s\n", cliui.KeyStyle.Render("Results:     "), cliui.ValueStyle.Render(strconv.Itoa(state.Results)))
	fmt.Printf("  %s  %s\n\n", cliui.KeyStyle.Render("Searched at: "), cliui.DimStyle.Render(state.SearchedAt.Format("2006-01-02 15:04:05")))

	return nil
}
