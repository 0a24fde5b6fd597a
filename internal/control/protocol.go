// ABOUTME: Line-oriented control protocol for the playback backend
// ABOUTME: Parses commands, executes them and formats replies and notifications
package control

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Resonate-Protocol/resonate-engine/pkg/audio/sink"
	"github.com/Resonate-Protocol/resonate-engine/pkg/backend"
)

var (
	// ErrUnknownCommand is returned for command names the protocol lacks
	ErrUnknownCommand = errors.New("unknown command")
	// ErrUsage is returned for wrong argument counts or malformed numbers
	ErrUsage = errors.New("usage")
)

// Controller is the part of the backend the protocol drives.
type Controller interface {
	Play(uri, hint string) error
	Stop() error
	Pause() error
	Resume() error
	SetNextResource(uri, hint string) error
	ClearNextResource() error
	SetCurrentPosition(ticks int64) (int64, error)
	SetCurrentVolume(volume int)
	SetLoopMode(n int)
	SwitchSink(name string) error
	Status() backend.Status
}

// Command is one parsed request line.
type Command struct {
	Name string
	Args []string
}

func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

type commandDef struct {
	min, max int
	usage    string
}

var commands = map[string]commandDef{
	"play":                 {1, 2, "play <uri> [hint]"},
	"stop":                 {0, 0, "stop"},
	"pause":                {0, 0, "pause"},
	"resume":               {0, 0, "resume"},
	"set_next_resource":    {1, 2, "set_next_resource <uri> [hint]"},
	"clear_next_resource":  {0, 0, "clear_next_resource"},
	"set_current_position": {1, 1, "set_current_position <ticks>"},
	"set_current_volume":   {1, 1, "set_current_volume <0-65536>"},
	"set_loop_mode":        {1, 1, "set_loop_mode <n>"},
	"switch_sink":          {1, 1, "switch_sink <name>"},
	"status":               {0, 0, "status"},
}

// Parse splits a request line into a command. Blank lines and lines
// starting with # parse to a zero Command.
func Parse(line string) (Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
		return Command{}, nil
	}
	cmd := Command{Name: strings.ToLower(fields[0]), Args: fields[1:]}
	sp, ok := commands[cmd.Name]
	if !ok {
		return cmd, fmt.Errorf("%s: %w", cmd.Name, ErrUnknownCommand)
	}
	if len(cmd.Args) < sp.min || len(cmd.Args) > sp.max {
		return cmd, fmt.Errorf("%w: %s", ErrUsage, sp.usage)
	}
	return cmd, nil
}

// Execute runs cmd against ctl and returns the reply payload.
func Execute(ctl Controller, cmd Command) (string, error) {
	arg := func(i int) string {
		if i < len(cmd.Args) {
			return cmd.Args[i]
		}
		return ""
	}

	switch cmd.Name {
	case "play":
		return "", ctl.Play(arg(0), arg(1))
	case "stop":
		return "", ctl.Stop()
	case "pause":
		return "", ctl.Pause()
	case "resume":
		return "", ctl.Resume()
	case "set_next_resource":
		return "", ctl.SetNextResource(arg(0), arg(1))
	case "clear_next_resource":
		return "", ctl.ClearNextResource()
	case "set_current_position":
		ticks, err := strconv.ParseInt(arg(0), 10, 64)
		if err != nil {
			return "", fmt.Errorf("%w: %s", ErrUsage, commands[cmd.Name].usage)
		}
		pos, err := ctl.SetCurrentPosition(ticks)
		if err != nil {
			return "", err
		}
		return strconv.FormatInt(pos, 10), nil
	case "set_current_volume":
		v, err := strconv.Atoi(arg(0))
		if err != nil {
			return "", fmt.Errorf("%w: %s", ErrUsage, commands[cmd.Name].usage)
		}
		ctl.SetCurrentVolume(v)
		return "", nil
	case "set_loop_mode":
		n, err := strconv.Atoi(arg(0))
		if err != nil {
			return "", fmt.Errorf("%w: %s", ErrUsage, commands[cmd.Name].usage)
		}
		ctl.SetLoopMode(n)
		return "", nil
	case "switch_sink":
		return "", ctl.SwitchSink(arg(0))
	case "status":
		return FormatStatus(ctl.Status()), nil
	}
	return "", fmt.Errorf("%s: %w", cmd.Name, ErrUnknownCommand)
}

// Handle parses and executes one line and returns the reply line, or ""
// for blank input.
func Handle(ctl Controller, line string) string {
	cmd, err := Parse(line)
	if err != nil {
		return "error " + err.Error()
	}
	if cmd.Name == "" {
		return ""
	}
	out, err := Execute(ctl, cmd)
	if err != nil {
		return "error " + err.Error()
	}
	if out == "" {
		return "ok " + cmd.Name
	}
	return "ok " + cmd.Name + " " + out
}

// FormatStatus renders a status snapshot as key=value pairs.
func FormatStatus(st backend.Status) string {
	return fmt.Sprintf("state=%s sink=%s resource=%q next=%q position=%d length=%d rate=%d volume=%d loop=%d",
		st.State, st.Sink, st.Resource, st.Next, st.Position, st.Length, st.TicksPerSecond, st.Volume, st.LoopMode)
}

// FormatEvent renders a sink event as a notification line.
func FormatEvent(ev sink.Event) string {
	switch ev.Kind {
	case sink.EventPaused, sink.EventResumed:
		return ev.Kind.String()
	case sink.EventStopped:
		if ev.Err != nil {
			return fmt.Sprintf("stopped %s error=%q", ev.Resource, ev.Err.Error())
		}
	}
	return ev.Kind.String() + " " + ev.Resource
}
