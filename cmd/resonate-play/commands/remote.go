// ABOUTME: remote command: drives a running player over its control server
// ABOUTME: Finds the player over mDNS when no address is given
package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Resonate-Protocol/resonate-engine/internal/control"
	"github.com/Resonate-Protocol/resonate-engine/internal/discovery"
)

var remoteFlags struct {
	addr    string
	follow  bool
	timeout time.Duration
}

var remoteCmd = &cobra.Command{
	Use:   "remote <command> [args...]",
	Short: "Send a control command to a running player",
	Long: `Send one control command, for example:

  resonate-play remote status
  resonate-play remote play /music/a.flac
  resonate-play remote set_current_volume 32768
  resonate-play remote --follow status

Without --addr the first player advertising ` + discovery.ServiceType + ` is used.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRemote,
}

func init() {
	f := remoteCmd.Flags()
	f.StringVar(&remoteFlags.addr, "addr", "", "control server address host:port")
	f.BoolVar(&remoteFlags.follow, "follow", false, "print notifications until interrupted")
	f.DurationVar(&remoteFlags.timeout, "timeout", 5*time.Second, "discovery and reply timeout")
}

func runRemote(cmd *cobra.Command, args []string) error {
	line := strings.Join(args, " ")
	if _, err := control.Parse(line); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), remoteFlags.timeout)
	defer cancel()

	addr := remoteFlags.addr
	if addr == "" {
		mgr := discovery.NewManager(discovery.Config{})
		player, err := mgr.Find(ctx)
		mgr.Stop()
		if err != nil {
			return err
		}
		addr = player.Addr()
		fmt.Fprintf(cmd.ErrOrStderr(), "using %s at %s\n", player.Name, addr)
	}

	client, err := control.Dial(ctx, addr)
	if err != nil {
		return err
	}
	defer client.Close()

	reply, err := client.Do(ctx, line)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), reply)

	if !remoteFlags.follow {
		return nil
	}
	for note := range client.Notifications {
		fmt.Fprintln(cmd.OutOrStdout(), note)
	}
	return nil
}
