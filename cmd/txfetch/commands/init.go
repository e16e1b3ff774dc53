package commands

import (
	"github.com/spf13/cobra"

	cfgpkg "github.com/tangramnet/txfetch/config"
)

// InitFilesCmd writes a config file with the default values.
var InitFilesCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a default config file",
	Args:  cobra.ExactArgs(1),
	RunE:  initFiles,
}

func initFiles(cmd *cobra.Command, args []string) error {
	path := args[0]
	if err := cfgpkg.WriteConfigFile(path, cfgpkg.DefaultConfig()); err != nil {
		return err
	}
	logger.Info("generated config file", "path", path)
	return nil
}
