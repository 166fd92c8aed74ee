// Package configcmder provides the config command for managing persistent
// imagesearch configuration stored in the .imagesearch/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent imagesearch configuration.

Configuration is stored as config.toml in the .imagesearch/ directory and
provides default values for command flags. CLI flags always take
precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  dirs.input, dirs.output, dirs.temp,
  storage.cache_dir, api.listen,
  embedding.provider, embedding.target,
  index.accelerated, index.threads, index.batch_size,
  session.capacity, watcher.enabled

Use subcommands to get, set, or list configuration values:
  imagesearch config set <key> <value>    Set a configuration value
  imagesearch config get <key>            Get a configuration value
  imagesearch config list                 List all configuration values

Examples:
  imagesearch config set dirs.output ~/comfy/output
  imagesearch config set index.accelerated false
  imagesearch config get embedding.target
  imagesearch config list`

const configShortDesc string = "Manage persistent imagesearch configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}
