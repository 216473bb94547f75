package main

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"pkt.systems/ecrituria"
	"pkt.systems/ecrituria/internal/apiclient"
	"pkt.systems/ecrituria/internal/appconfig"
	"pkt.systems/ecrituria/internal/chat"
	"pkt.systems/ecrituria/internal/command"
	"pkt.systems/ecrituria/internal/dialog"
	"pkt.systems/ecrituria/internal/eventbus"
	"pkt.systems/ecrituria/internal/format"
	"pkt.systems/ecrituria/internal/progress"
	"pkt.systems/ecrituria/internal/tui"
	"pkt.systems/ecrituria/schema"
	"pkt.systems/pslog"
)

// errReported marks a failure that was already shown to the user.
var errReported = errors.New("reported")

type globalOptions struct {
	configPath string
	envFile    string
	server     string
	project    string
	theme      string
	assumeYes  bool
}

func (o *globalOptions) bind(root *cobra.Command) {
	flags := root.PersistentFlags()
	flags.StringVarP(&o.configPath, "config", "c", "", "config file path (default ~/.ecrituria/config.yaml)")
	flags.StringVar(&o.envFile, "env-file", ".env", "dotenv file loaded before the config")
	flags.StringVar(&o.server, "server", "", "backend base URL (overrides server.base_url)")
	flags.StringVarP(&o.project, "project", "p", "", "project to open (overrides project)")
	flags.StringVar(&o.theme, "theme", "", "terminal theme ("+themeList()+")")
	flags.BoolVarP(&o.assumeYes, "yes", "y", false, "accept every confirmation")
}

func themeList() string {
	themes := schema.AvailableThemes()
	names := make([]string, 0, len(themes))
	for _, theme := range themes {
		names = append(names, string(theme))
	}
	return strings.Join(names, ", ")
}

func (o *globalOptions) loadConfig() (appconfig.Config, error) {
	if err := appconfig.LoadDotEnv(o.envFile); err != nil {
		return appconfig.Config{}, err
	}
	cfg, err := appconfig.Load(o.configPath)
	if err != nil {
		return appconfig.Config{}, err
	}
	if server := strings.TrimSpace(o.server); server != "" {
		cfg.Server.BaseURL = server
	}
	if project := strings.TrimSpace(o.project); project != "" {
		cfg.Project = project
	}
	if theme := strings.TrimSpace(o.theme); theme != "" {
		cfg.UI.Theme = theme
	}
	return cfg, nil
}

type sessionMode int

const (
	// oneShot prints status changes line by line on stderr.
	oneShot sessionMode = iota
	// interactive redraws the status line in place when stdout is a TTY.
	interactive
)

type session struct {
	client   *ecrituria.Client
	handler  *command.Handler
	terminal *dialog.Terminal
	out      *pump
	stdout   io.Writer
	logger   pslog.Logger
}

// openSession builds the client and the renderer for one command run and
// opens the configured project.
func openSession(cmd *cobra.Command, opts *globalOptions, mode sessionMode) (*session, error) {
	ctx := cmd.Context()
	logger := pslog.Ctx(ctx)
	cfg, err := opts.loadConfig()
	if err != nil {
		return nil, err
	}
	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()
	dialogOut := stderr
	if mode == interactive {
		dialogOut = stdout
	}
	terminal := dialog.NewTerminal(cmd.InOrStdin(), dialogOut)
	var dialogs dialog.Dialogs = terminal
	if opts.assumeYes {
		dialogs = dialog.AssumeYes(terminal)
	}

	width := cfg.UI.Width
	if width <= 0 {
		width = terminal.Width(0)
	}
	renderer := tui.NewRenderer(stdout, tui.Options{
		Theme:  schema.ThemeName(cfg.UI.Theme),
		Width:  width,
		Live:   mode == interactive && terminal.IsTTY(),
		Logger: logger,
	})

	deps := ecrituria.ClientDeps{
		Dialogs:   dialogs,
		Clipboard: chat.OSC52{Out: stdout},
		Logger:    logger,
	}
	if mode == oneShot {
		deps.Surface = progress.NewLine(stderr)
	}
	client, err := ecrituria.New(cfg, deps)
	if err != nil {
		return nil, err
	}
	out := startPump(ctx, renderer, client.Bus)

	handlerCfg := command.HandlerConfig{
		Out:          out,
		UploadFolder: cfg.Upload.Folder,
		Extensions:   cfg.Upload.Extensions,
	}
	if mode == oneShot {
		// The shell owns stdin through the terminal reader, so only
		// one-shot runs hand the draft to an external editor.
		handlerCfg.Edit = editInEditor(cmd.InOrStdin(), stdout, stderr)
	}
	s := &session{
		client:   client,
		handler:  command.NewHandler(client, handlerCfg),
		terminal: terminal,
		out:      out,
		stdout:   stdout,
		logger:   logger,
	}
	if err := client.Open(ctx); err != nil {
		reported := s.report(err)
		s.Close()
		return nil, reported
	}
	return s, nil
}

// run executes shell lines in order and stops at the first failure.
func (s *session) run(ctx context.Context, lines ...string) error {
	for _, line := range lines {
		if err := s.handler.Handle(ctx, line); err != nil {
			return s.report(err)
		}
	}
	return nil
}

// report shows err unless a component already did and returns an error
// that tells main not to log it again.
func (s *session) report(err error) error {
	if err == nil {
		return nil
	}
	s.out.Flush()
	if msg, ok := command.Describe(err); ok {
		s.out.Println(format.Error(msg))
		return errReported
	}
	if errors.Is(err, schema.ErrDeclined) || errors.Is(err, schema.ErrNoChange) {
		return nil
	}
	// Backend failures were alerted or noted by the component that hit them.
	var apiErr *apiclient.Error
	if errors.As(err, &apiErr) {
		s.logger.Debug("command failed", "err", err)
		return errReported
	}
	return err
}

func (s *session) Close() {
	s.client.Close()
	s.out.Close()
}

// pump feeds bus events to the renderer and keeps them ordered with the
// lines commands print directly.
type pump struct {
	mu       sync.Mutex
	renderer *tui.Renderer
	events   <-chan eventbus.Event
	cancel   context.CancelFunc
	unsub    func()
	done     chan struct{}
	once     sync.Once
}

func startPump(ctx context.Context, renderer *tui.Renderer, bus *eventbus.Bus) *pump {
	events, unsub := bus.Subscribe()
	ctx, cancel := context.WithCancel(ctx)
	p := &pump{
		renderer: renderer,
		events:   events,
		cancel:   cancel,
		unsub:    unsub,
		done:     make(chan struct{}),
	}
	go p.loop(ctx)
	return p
}

func (p *pump) loop(ctx context.Context) {
	defer close(p.done)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-p.events:
			if !ok {
				return
			}
			p.mu.Lock()
			p.renderer.Handle(ev)
			p.mu.Unlock()
		}
	}
}

// Println renders the events already queued, then lines.
func (p *pump) Println(lines ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.drain()
	p.renderer.Println(lines...)
}

// Prompt renders the events already queued, then writes text to w
// without a line break.
func (p *pump) Prompt(w io.Writer, text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.drain()
	_, _ = io.WriteString(w, text)
}

// Flush renders the events already queued.
func (p *pump) Flush() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.drain()
}

func (p *pump) drain() {
	for {
		select {
		case ev, ok := <-p.events:
			if !ok {
				return
			}
			p.renderer.Handle(ev)
		default:
			return
		}
	}
}

// Close stops the loop and renders what is left.
func (p *pump) Close() {
	p.once.Do(func() {
		p.cancel()
		<-p.done
		p.Flush()
		p.unsub()
	})
}
