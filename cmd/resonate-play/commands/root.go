// ABOUTME: Root cobra command for resonate-play
// ABOUTME: Loads the YAML configuration and mounts the subcommands
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Resonate-Protocol/resonate-engine/internal/config"
)

var (
	cfgFile string
	// loadedConfig is set by initConfig before any command runs
	loadedConfig *config.Config
	configErr    error
)

var rootCmd = &cobra.Command{
	Use:   "resonate-play",
	Short: "Gapless audio player with pluggable decoders and sinks",
	Long: `resonate-play plays local files, in-memory resources and test tones
through a pluggable playback engine.

Decoders are probed in registration order, every output backend is available
as a sink and playback can be controlled from the terminal UI, stdin or a
websocket control server advertised over mDNS.

Configuration is read from ~/.resonate/config.yaml.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.resonate/config.yaml)")

	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(remoteCmd)
	rootCmd.AddCommand(decodersCmd)
	rootCmd.AddCommand(sinksCmd)
	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	loadedConfig, configErr = config.Load(cfgFile)
}

// getConfig returns the loaded configuration or the load error.
func getConfig() (*config.Config, error) {
	if configErr != nil {
		return nil, fmt.Errorf("config: %w", configErr)
	}
	if loadedConfig == nil {
		return config.Default(), nil
	}
	return loadedConfig, nil
}
