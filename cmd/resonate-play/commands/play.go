// ABOUTME: play command: runs the backend with the TUI, stdin and websocket control
// ABOUTME: Supervises the control server, discovery and UI with an errgroup
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"os/signal"
	"slices"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Resonate-Protocol/resonate-engine/internal/config"
	"github.com/Resonate-Protocol/resonate-engine/internal/control"
	"github.com/Resonate-Protocol/resonate-engine/internal/discovery"
	"github.com/Resonate-Protocol/resonate-engine/internal/ui"
	"github.com/Resonate-Protocol/resonate-engine/internal/version"
	"github.com/Resonate-Protocol/resonate-engine/pkg/audio/decode"
	"github.com/Resonate-Protocol/resonate-engine/pkg/audio/sink"
	"github.com/Resonate-Protocol/resonate-engine/pkg/backend"
)

var playFlags struct {
	sink       string
	volume     int
	loop       int
	resampler  string
	rate       int
	buffer     int
	output     string
	followRate bool
	hint       string
	control    string
	mdns       bool
	name       string
	noTUI      bool
	noStdin    bool
	logFile    string
}

var playCmd = &cobra.Command{
	Use:   "play [uri...]",
	Short: "Play resources gaplessly",
	Long: `Play files, mem:// resources or tone://<hz>[?duration=<d>] test tones in
order, handing over from one to the next without a gap.

With the TUI disabled, control commands are read from stdin and notifications
are printed to stdout. --control starts a websocket control server; --mdns
advertises it as ` + discovery.ServiceType + `.`,
	RunE: runPlay,
}

func init() {
	f := playCmd.Flags()
	f.StringVar(&playFlags.sink, "sink", "", "output sink (see 'resonate-play sinks')")
	f.IntVar(&playFlags.volume, "volume", 100, "volume in percent")
	f.IntVar(&playFlags.loop, "loop", 0, "loop count per resource, -1 loops forever")
	f.StringVar(&playFlags.resampler, "resampler", "", "resampler: nearest, linear, soxr or soxr-quick")
	f.IntVar(&playFlags.rate, "rate", 0, "device sample rate")
	f.IntVar(&playFlags.buffer, "buffer-frames", 0, "device period in frames")
	f.StringVar(&playFlags.output, "output", "", "output file of the wav sink")
	f.BoolVar(&playFlags.followRate, "follow-rate", false, "reopen the device at each decoder's native rate")
	f.StringVar(&playFlags.hint, "decoder", "", "decoder to try first for the first resource")
	f.StringVar(&playFlags.control, "control", "", "websocket control listen address, e.g. :8928")
	f.BoolVar(&playFlags.mdns, "mdns", false, "advertise the control server over mDNS")
	f.StringVar(&playFlags.name, "name", "", "player name (default: hostname-resonate-play)")
	f.BoolVar(&playFlags.noTUI, "no-tui", false, "disable the TUI and stream logs")
	f.BoolVar(&playFlags.noStdin, "no-stdin", false, "do not read control commands from stdin")
	f.StringVar(&playFlags.logFile, "log-file", "", "log file path")
}

// applyFlags overrides config values with the flags set on the command line.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("sink") {
		cfg.Sink = playFlags.sink
	}
	if f.Changed("volume") {
		cfg.Volume = playFlags.volume
	}
	if f.Changed("loop") {
		cfg.Loop = playFlags.loop
	}
	if f.Changed("resampler") {
		cfg.Resampler = playFlags.resampler
	}
	if f.Changed("rate") {
		cfg.Device.Frequency = playFlags.rate
	}
	if f.Changed("buffer-frames") {
		cfg.Device.BufferFrames = playFlags.buffer
	}
	if f.Changed("output") {
		cfg.Device.Path = playFlags.output
	}
	if f.Changed("follow-rate") {
		cfg.Device.FollowRate = playFlags.followRate
	}
	if f.Changed("control") {
		cfg.Control.Addr = playFlags.control
	}
	if f.Changed("mdns") {
		cfg.Control.MDNS = playFlags.mdns
	}
	if f.Changed("name") {
		cfg.Control.Name = playFlags.name
	}
	if f.Changed("log-file") {
		cfg.LogFile = playFlags.logFile
	}
}

// notifier fans notification lines out to every attached front end.
type notifier struct {
	mu  sync.Mutex
	fns []func(string)
}

func (n *notifier) add(fn func(string)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.fns = append(n.fns, fn)
}

func (n *notifier) notify(line string) {
	n.mu.Lock()
	fns := slices.Clone(n.fns)
	n.mu.Unlock()
	for _, fn := range fns {
		fn(line)
	}
}

// backendPlayer lets the queue skip on the backend
type backendPlayer struct{ *backend.Backend }

func (p backendPlayer) CurrentResource() string { return p.Status().Resource }

func runPlay(cmd *cobra.Command, args []string) error {
	cfg, err := getConfig()
	if err != nil {
		return err
	}
	applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	useTUI := !playFlags.noTUI
	if len(args) == 0 && cfg.Control.Addr == "" && (useTUI || playFlags.noStdin) {
		return errors.New("nothing to play: pass resources or enable a control interface")
	}

	// Set up logging
	lf, err := os.OpenFile(cfg.LogFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return fmt.Errorf("error opening log file: %w", err)
	}
	defer func() { _ = lf.Close() }()
	if useTUI {
		// TUI mode: log only to file
		log.SetOutput(lf)
	} else {
		log.SetOutput(io.MultiWriter(os.Stderr, lf))
	}
	log.Printf("Starting %s", version.String())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	q := newQueue(args)
	var n notifier
	stopped := make(chan struct{}, 1)

	b := backend.New(backend.Config{
		Volume:   cfg.EngineVolume(),
		LoopMode: cfg.Loop,
		Sink:     cfg.Sink,
		Listener: func(ev sink.Event) {
			line := control.FormatEvent(ev)
			log.Printf("Sink %s: %s", ev.Sink, line)
			n.notify(line)
			if ev.Kind == sink.EventStopped {
				select {
				case stopped <- struct{}{}:
				default:
				}
			}
		},
		NextResource: q.next,
		OnDecoderEvent: func(ev decode.Event) {
			if ev.Err != nil {
				log.Printf("Decoder %s %s: %v", ev.Resource, ev.Kind, ev.Err)
				return
			}
			log.Printf("Decoder %s %s", ev.Resource, ev.Kind)
		},
	})
	defer b.Close()

	if err := backend.RegisterDefaults(b, backend.Options{
		CacheDir:          cfg.CacheDir,
		Output:            cfg.Output(),
		Resampler:         cfg.Resampler,
		FollowDecoderRate: cfg.Device.FollowRate,
	}); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	var controlAddr string
	if cfg.Control.Addr != "" {
		srv := control.NewServer(control.ServerConfig{Addr: cfg.Control.Addr, Name: playerName(cfg)}, b)
		addr, err := srv.Listen()
		if err != nil {
			return err
		}
		controlAddr = fmt.Sprintf("ws://%s%s", addr, control.Path)
		n.add(srv.Broadcast)
		g.Go(func() error { return srv.Serve(gctx) })

		if cfg.Control.MDNS {
			mgr := discovery.NewManager(discovery.Config{
				ServiceName: playerName(cfg),
				Port:        addr.(*net.TCPAddr).Port,
				TXT:         []string{"path=" + control.Path, "version=" + version.Version},
			})
			if err := mgr.Advertise(); err != nil {
				log.Printf("mDNS advertisement failed: %v", err)
			}
			defer mgr.Stop()
		}
	}

	if len(args) > 0 {
		if err := b.Play(args[0], playFlags.hint); err != nil {
			return err
		}
	}

	skip := func() error { return q.skip(backendPlayer{b}) }

	if useTUI {
		t := ui.New(b, skip)
		n.add(t.Notify)
		if controlAddr != "" {
			t.SetControl(controlAddr)
		}
		g.Go(func() error {
			defer cancel()
			return t.Run(gctx)
		})
	} else {
		console := control.NewConsole(b, cmd.OutOrStdout())
		n.add(console.Notify)
		if controlAddr != "" {
			console.Notify("control " + controlAddr)
		}
		if !playFlags.noStdin {
			g.Go(func() error { return console.Serve(gctx, cmd.InOrStdin()) })
		}
		if cfg.Control.Addr == "" {
			// without a remote interface the run ends with playback
			g.Go(func() error {
				select {
				case <-stopped:
					cancel()
				case <-gctx.Done():
				}
				return nil
			})
		}
	}

	err = g.Wait()
	log.Printf("Player stopped")
	return err
}

func playerName(cfg *config.Config) string {
	if cfg.Control.Name != "" {
		return cfg.Control.Name
	}
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return fmt.Sprintf("%s-resonate-play", hostname)
}
