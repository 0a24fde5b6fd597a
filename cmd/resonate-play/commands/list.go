// ABOUTME: Registry listing commands
// ABOUTME: Prints decoders in probing order, sinks and resamplers
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Resonate-Protocol/resonate-engine/internal/version"
	"github.com/Resonate-Protocol/resonate-engine/pkg/audio/resample"
	"github.com/Resonate-Protocol/resonate-engine/pkg/backend"
)

var decodersCmd = &cobra.Command{
	Use:   "decoders",
	Short: "List decoders in probing order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := newRegistryBackend()
		if err != nil {
			return err
		}
		defer b.Close()
		for i, name := range b.Decoders() {
			fmt.Fprintf(cmd.OutOrStdout(), "%d. %s\n", i+1, name)
		}
		return nil
	},
}

var sinksCmd = &cobra.Command{
	Use:   "sinks",
	Short: "List output sinks and resamplers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfig()
		if err != nil {
			return err
		}
		b, err := newRegistryBackend()
		if err != nil {
			return err
		}
		defer b.Close()

		out := cmd.OutOrStdout()
		for _, name := range b.Sinks() {
			marker := " "
			if name == cfg.Sink {
				marker = "*"
			}
			fmt.Fprintf(out, "%s %s\n", marker, name)
		}
		fmt.Fprintf(out, "\nresamplers: %v (configured: %s)\n", resample.Names(), cfg.Resampler)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.String())
	},
}

func newRegistryBackend() (*backend.Backend, error) {
	b := backend.New(backend.DefaultConfig())
	if err := backend.RegisterDefaults(b, backend.Options{}); err != nil {
		b.Close()
		return nil, err
	}
	return b, nil
}
