package agents

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	playground "github.com/bt-bridge/agent-playground"
	"github.com/bt-bridge/agent-playground/shared"
	"github.com/goccy/go-yaml"
	"go.uber.org/zap"
)

const cliHelp = `commands:
  connect | disconnect       start or end the session
  mic on|off, camera on|off  toggle local devices
  say <text>                 send a chat message
  rpc <method> [payload]     call a method on the agent
  agent <name>               set the agent to dispatch (not while connected)
  meta <metadata>            set the dispatch metadata (not while connected)
  attrs                      show the agent's attributes
  status                     show the session status
  help, quit`

// CLIFrontend drives a Playground from line-oriented terminal input and
// prints every session update.
type CLIFrontend struct {
	logger  shared.LoggerAdapter
	printer *shared.Printer
	pg      *playground.Playground
	config  shared.AppConfig

	mu        sync.Mutex
	lastState playground.ConnectionState
	lastAgent playground.AgentView
}

func NewCLIFrontend(logger shared.LoggerAdapter, printer *shared.Printer, pg *playground.Playground, config shared.AppConfig) (*CLIFrontend, error) {
	if logger == nil {
		return nil, shared.ErrNoLogger
	}
	if printer == nil {
		return nil, shared.ErrNoPrinter
	}
	if pg == nil {
		return nil, shared.ErrNoPlayground
	}
	return &CLIFrontend{
		logger:  logger.With(zap.String("component", "cli")),
		printer: printer,
		pg:      pg,
		config:  config,
	}, nil
}

// Run reads commands from in until it is exhausted, ctx is done or the user
// quits. The session is ended on return.
func (f *CLIFrontend) Run(ctx context.Context, in io.Reader) error {
	f.printer.SetAccent(f.pg.ThemeColor())
	stop := f.pg.Session().Observe(f.onUpdate)
	defer stop()
	defer f.pg.End()

	f.println(fmt.Sprintf("🎙️  %s", f.printer.Accent(f.config.Title)), 0)
	if f.config.Description != "" {
		f.println(f.config.Description, 1)
	}
	f.println("type 'help' for commands\n", 0)

	if f.config.AutoConnect {
		if err := f.pg.AutoConnect(ctx); err != nil {
			f.reportError("auto connect", err)
		}
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			f.logger.Error("reading input", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := f.Execute(ctx, line); quit {
				return nil
			}
		}
	}
}

// Execute runs one command line and reports whether the user asked to quit.
func (f *CLIFrontend) Execute(ctx context.Context, line string) (quit bool) {
	cmd, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
	rest = strings.TrimSpace(rest)
	switch strings.ToLower(cmd) {
	case "":
	case "quit", "exit":
		return true
	case "help":
		f.println(cliHelp, 0)
	case "connect":
		if err := f.pg.Start(ctx); err != nil {
			f.reportError("connect", err)
		}
	case "disconnect":
		f.pg.End()
	case "toggle":
		if err := f.pg.Toggle(ctx); err != nil {
			f.reportError("toggle", err)
		}
	case "mic", "camera":
		enabled, err := parseOnOff(rest)
		if err != nil {
			f.reportError(cmd, err)
			return false
		}
		if cmd == "mic" {
			err = f.pg.SetMicrophoneEnabled(ctx, enabled)
		} else {
			err = f.pg.SetCameraEnabled(ctx, enabled)
		}
		if err != nil {
			f.reportError(cmd, err)
		}
	case "say":
		if _, err := f.pg.Messages().Send(ctx, rest); err != nil {
			f.reportError("send", err)
		}
	case "rpc":
		method, payload, _ := strings.Cut(rest, " ")
		resp, err := f.pg.RPC().Invoke(ctx, method, strings.TrimSpace(payload))
		if err != nil {
			f.reportError("rpc", err)
			return false
		}
		f.println(fmt.Sprintf("↩️  %s: %s", method, resp), 1)
	case "agent":
		if err := f.pg.Session().SetAgentName(rest); err != nil {
			f.reportError("agent", err)
		}
	case "meta":
		if err := f.pg.Session().SetAgentMetadata(rest); err != nil {
			f.reportError("meta", err)
		}
	case "attrs":
		f.printAttributes()
	case "status":
		f.printStatus()
	default:
		f.println(fmt.Sprintf("unknown command %q, type 'help'", cmd), 0)
	}
	return false
}

func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "true", "1":
		return true, nil
	case "off", "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("expected on or off, got %q", s)
	}
}

func (f *CLIFrontend) onUpdate(u playground.Update) {
	f.mu.Lock()
	stateChanged := u.State != f.lastState
	agentChanged := !u.Agent.Equal(f.lastAgent)
	f.lastState = u.State
	f.lastAgent = u.Agent
	f.mu.Unlock()

	if stateChanged {
		line := fmt.Sprintf("● %s", u.State.Label())
		if u.State == playground.StateConnected {
			line = f.printer.Accent(line)
		}
		if u.Err != nil {
			line += fmt.Sprintf(" (%v)", u.Err)
		}
		f.println(line, 0)
	}
	if agentChanged {
		f.println(f.agentLine(u.State, u.Agent), 1)
	}
	if u.Message != nil && f.config.Settings.Chat {
		who := u.Message.From
		if u.Message.Local {
			who = "you"
		}
		f.println(fmt.Sprintf("💬 %s: %s", who, u.Message.Message), 1)
	}
}

func (f *CLIFrontend) agentLine(state playground.ConnectionState, view playground.AgentView) string {
	label := playground.IdentityLabel(state, view)
	switch playground.AudioTile(state, view) {
	case playground.AudioTileVisualizer:
		return fmt.Sprintf("🤖 %s [%s] 🔊", f.printer.Accent(label), view.State)
	case playground.AudioTileWaiting:
		if view.IsConnected {
			return fmt.Sprintf("🤖 %s [%s] waiting for agent audio track…", label, view.State)
		}
		return fmt.Sprintf("🤖 %s", label)
	default:
		return fmt.Sprintf("🤖 %s", label)
	}
}

type statusView struct {
	Room      string `yaml:"room"`
	Status    string `yaml:"status"`
	AgentName string `yaml:"agent_name"`
	Metadata  string `yaml:"metadata,omitempty"`
	Identity  string `yaml:"identity"`
	State     string `yaml:"agent_state,omitempty"`
	Track     string `yaml:"agent_track,omitempty"`
	Mic       string `yaml:"local_mic,omitempty"`
	Messages  int    `yaml:"messages"`
	Theme     string `yaml:"theme"`
}

func (f *CLIFrontend) printStatus() {
	session := f.pg.Session()
	state := session.State()
	view := session.Agent()
	opts, _ := session.FetchOptions()
	status := statusView{
		Room:      session.RoomName(),
		Status:    state.Label(),
		AgentName: opts.AgentName,
		Metadata:  opts.AgentMetadata,
		Identity:  playground.IdentityLabel(state, view),
		State:     string(view.State),
		Messages:  len(f.pg.Messages().Messages()),
		Theme:     f.pg.ThemeColor(),
	}
	if view.MicrophoneTrack != nil {
		status.Track = view.MicrophoneTrack.Track.SID
	}
	if mic := f.pg.LocalMicrophoneTrack(); mic != nil {
		status.Mic = mic.Track.SID
		if mic.Track.Muted {
			status.Mic += " (muted)"
		}
	}
	out, err := yaml.Marshal(status)
	if err != nil {
		f.logger.Error("marshaling status", err)
		return
	}
	f.println(strings.TrimRight(string(out), "\n"), 1)
}

func (f *CLIFrontend) printAttributes() {
	entries := f.pg.Attributes().Entries()
	if len(entries) == 0 {
		f.println("no agent attributes", 1)
		return
	}
	for _, e := range entries {
		f.println(fmt.Sprintf("%s = %s", e.Key, e.Value), 1)
	}
}

func (f *CLIFrontend) reportError(op string, err error) {
	f.logger.Error(op, err)
	f.println(fmt.Sprintf("❌ %s: %v", op, err), 1)
}

func (f *CLIFrontend) println(s string, ind int) {
	if err := f.printer.Writeln(s, ind); err != nil {
		f.logger.Error("printing", err)
	}
}
