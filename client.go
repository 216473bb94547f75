package ecrituria

import (
	"context"
	"errors"
	"net/http"

	"pkt.systems/ecrituria/core"
	"pkt.systems/ecrituria/internal/apiclient"
	"pkt.systems/ecrituria/internal/apikey"
	"pkt.systems/ecrituria/internal/appconfig"
	"pkt.systems/ecrituria/internal/chat"
	"pkt.systems/ecrituria/internal/dialog"
	"pkt.systems/ecrituria/internal/eventbus"
	"pkt.systems/ecrituria/internal/jobpoll"
	"pkt.systems/ecrituria/internal/logx"
	"pkt.systems/ecrituria/internal/progress"
	"pkt.systems/ecrituria/internal/upload"
	"pkt.systems/ecrituria/internal/version"
	"pkt.systems/ecrituria/internal/writer"
	"pkt.systems/ecrituria/schema"
	"pkt.systems/pslog"
)

// Client composes every client-side component around one backend.
type Client struct {
	API        *apiclient.Client
	Bus        *eventbus.Bus
	Reporter   *progress.Reporter
	Transcript *chat.Transcript
	Controller *core.Controller
	Chat       *chat.Client
	Writer     *writer.Workflow
	Uploads    *upload.Pipeline
	APIKey     *apikey.Panel

	cfg    appconfig.Config
	logger pslog.Logger
}

// ClientDeps captures what the caller provides.
type ClientDeps struct {
	Dialogs dialog.Dialogs
	// Surface receives the status line. Defaults to the event bus.
	Surface progress.Surface
	// EventSink receives controller events in addition to the bus.
	EventSink  core.EventSink
	Clipboard  chat.Clipboard
	HTTPClient *http.Client
	// OnUpload observes each finished upload.
	OnUpload upload.ProgressFunc
	Logger   pslog.Logger
}

// New builds a Client from configuration.
func New(cfg appconfig.Config, deps ClientDeps) (*Client, error) {
	if deps.Dialogs == nil {
		return nil, errors.New("dialogs are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	api, err := apiclient.New(apiclient.Options{
		BaseURL:    cfg.Server.BaseURL,
		Timeout:    cfg.Server.Timeout(),
		HTTPClient: deps.HTTPClient,
		CacheTTL:   cfg.Cache.TTL(),
		UserAgent:  version.UserAgent(),
	})
	if err != nil {
		return nil, err
	}

	bus := eventbus.New(logger)
	surface := deps.Surface
	if surface == nil {
		surface = bus
	}
	reporter := progress.New(surface, progress.Options{
		Tick:      cfg.Progress.Tick(),
		Floor:     cfg.Progress.Floor,
		Step:      cfg.Progress.Step,
		Ceiling:   cfg.Progress.Ceiling,
		HideAfter: cfg.Progress.HideAfter(),
	})
	transcript := chat.NewTranscript(cfg.Chat.TranscriptMax, bus)

	var sink core.EventSink = bus
	if deps.EventSink != nil {
		sink = eventFanout{sinks: []core.EventSink{bus, deps.EventSink}}
	}
	controller, err := core.NewController(core.ControllerDeps{
		Backend:  api,
		Dialogs:  deps.Dialogs,
		Reporter: reporter,
		Sink:     sink,
		Notes:    transcript,
		Jobs: jobpoll.Options{
			Interval:  cfg.Graph.PollInterval(),
			MaxPolls:  cfg.Graph.MaxPolls,
			MaxErrors: cfg.Graph.MaxPollErrors,
		},
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}

	model, err := schema.NormalizeModelID(cfg.Model)
	if err != nil && cfg.Model != "" {
		return nil, err
	}
	chatClient := chat.New(chat.Options{
		Backend:    api,
		Transcript: transcript,
		Reporter:   reporter,
		Workspace:  controller,
		Dialogs:    deps.Dialogs,
		Clipboard:  deps.Clipboard,
		Settings: chat.Settings{
			Model:     model,
			UseGraph:  cfg.Chat.UseGraph,
			UseAgents: cfg.Chat.UseAgents,
		},
		LongWait: cfg.Chat.LongWait(),
	})

	c := &Client{
		API:        api,
		Bus:        bus,
		Reporter:   reporter,
		Transcript: transcript,
		Controller: controller,
		Chat:       chatClient,
		APIKey:     apikey.New(api, deps.Dialogs),
		cfg:        cfg,
		logger:     logger,
	}
	c.Writer = writer.New(writer.Options{
		Backend:     api,
		Dialogs:     deps.Dialogs,
		Reporter:    reporter,
		OnCommitted: c.onCommitted,
	})
	c.Uploads = upload.New(upload.Options{
		Backend:    api,
		Reporter:   reporter,
		Reindex:    cfg.Upload.Reindex,
		OnProgress: deps.OnUpload,
	})
	return c, nil
}

// Config returns the configuration the client was built from.
func (c *Client) Config() appconfig.Config {
	return c.cfg
}

// Open selects the configured project, if any.
func (c *Client) Open(ctx context.Context) error {
	if c.cfg.Project == "" {
		return nil
	}
	_, err := c.Controller.SelectProject(ctx, c.cfg.Project)
	return err
}

// Close stops background work: the graph poller and the progress ticker.
func (c *Client) Close() {
	if run := c.Controller.GraphRun(); run != nil {
		run.Cancel()
	}
	c.Reporter.Clear()
}

func (c *Client) onCommitted(ctx context.Context, result writer.CommitResult) {
	log := logx.WithProject(ctx, result.Project)
	if _, err := c.Controller.LoadTree(ctx); err != nil {
		log.Warn("tree reload after write failed", "err", err)
	}
	c.Chat.Note("✅ " + result.Summary())
	if open, ok := c.Controller.OpenFile(); ok && open.String() == result.FilePath {
		if err := c.Controller.Open(ctx, open); err != nil {
			log.Warn("reopen after write failed", "path", result.FilePath, "err", err)
		}
	}
}
