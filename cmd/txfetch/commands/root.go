package commands

import (
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	cfgpkg "github.com/tangramnet/txfetch/config"
	"github.com/tangramnet/txfetch/libs/log"
)

var (
	config = cfgpkg.DefaultConfig()
	logger = log.NewLogger(os.Stdout)

	configFile string
)

// RootCmd is the root command for txfetch.
var RootCmd = &cobra.Command{
	Use:   "txfetch",
	Short: "Transaction request scheduling for p2p relay",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == VersionCmd.Name() {
			return nil
		}
		var err error
		config, err = parseConfig(cmd)
		if err != nil {
			return err
		}
		opt, err := log.AllowLevel(config.LogLevel)
		if err != nil {
			return err
		}
		logger = log.NewFilter(log.NewLogger(os.Stdout), opt)
		return nil
	},
}

func init() {
	RootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to a TOML config file (optional)")
	RootCmd.PersistentFlags().String("log_level", config.LogLevel, "minimum log level (debug|info|error)")

	RootCmd.AddCommand(
		InitFilesCmd,
		SimCmd,
		VersionCmd,
	)
}

// parseConfig retrieves the configuration from the config file (if given)
// and flags, and validates it.
func parseConfig(cmd *cobra.Command) (*cfgpkg.Config, error) {
	v := viper.New()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, err
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrap(err, "reading config file")
		}
	}

	conf := cfgpkg.DefaultConfig()
	if err := v.Unmarshal(conf); err != nil {
		return nil, errors.Wrap(err, "unmarshaling config")
	}
	if err := conf.ValidateBasic(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return conf, nil
}
