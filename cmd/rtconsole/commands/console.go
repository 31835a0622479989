package commands

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/haivivi/rtconsole/pkg/cli"
	"github.com/haivivi/rtconsole/pkg/console"
	"github.com/haivivi/rtconsole/pkg/kv"
	rt "github.com/haivivi/rtconsole/pkg/openai-realtime"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Start the interactive Realtime console",
	Long: `Start the interactive Realtime console.

The console shows three panes: the event log (every client and server event,
newest first), the session controls, and the color palette tool. Start the
session with 's', type a message and press enter to send it, 'd' disconnects.

Audio: over WebRTC the local track streams --audio-in (Ogg/Opus) or silence,
and the model's audio is recorded to --audio-out or discarded.

Examples:
  rtconsole -c local console
  rtconsole -c direct console --audio-in question.ogg --audio-out reply.ogg
  rtconsole -c direct console --filter 'select(.type | startswith("response."))'
  rtconsole console --token-url http://localhost:3000/token --no-archive`,
	RunE: runConsole,
}

var (
	consoleTransport      string
	consoleTokenURL       string
	consoleModelName      string
	consoleVoice          string
	consoleAudioIn        string
	consoleAudioOut       string
	consoleHistory        int
	consoleArchiveDir     string
	consoleNoArchive      bool
	consoleFilter         string
	consoleConnectTimeout time.Duration
)

func init() {
	f := consoleCmd.Flags()
	f.StringVar(&consoleTransport, "transport", "", "webrtc or websocket (default: context, then webrtc)")
	f.StringVar(&consoleTokenURL, "token-url", "", "token endpoint (overrides the context)")
	f.StringVar(&consoleModelName, "model", "", "realtime model (default: context, then "+rt.DefaultModel+")")
	f.StringVar(&consoleVoice, "voice", "", "voice requested when minting keys")
	f.StringVar(&consoleAudioIn, "audio-in", "", "Ogg/Opus file streamed as the microphone")
	f.StringVar(&consoleAudioOut, "audio-out", "", "Ogg/Opus file the model's audio is recorded to")
	f.IntVar(&consoleHistory, "history", 0, "in-memory event history bound (0: unbounded)")
	f.StringVar(&consoleArchiveDir, "archive-dir", "", "event archive directory")
	f.BoolVar(&consoleNoArchive, "no-archive", false, "do not record events")
	f.StringVar(&consoleFilter, "filter", "", "jq expression selecting the events shown")
	f.DurationVar(&consoleConnectTimeout, "connect-timeout", 0, "credential fetch and handshake timeout (0: none)")
}

// consoleSettings is the effective configuration of a console run.
type consoleSettings struct {
	Context        string
	APIKey         string
	Organization   string
	Project        string
	BaseURL        string
	TokenURL       string
	Model          string
	Voice          string
	Transport      string
	AudioIn        string
	AudioOut       string
	History        int
	ArchiveDir     string
	Archive        bool
	Filter         string
	ConnectTimeout time.Duration
}

// resolveConsoleSettings merges the context with the command-line flags.
// Without a context, a token URL flag or OPENAI_API_KEY is enough.
func resolveConsoleSettings(cmd *cobra.Command, ctx *cli.Context) (*consoleSettings, error) {
	if ctx == nil {
		ctx = &cli.Context{APIKey: os.Getenv("OPENAI_API_KEY")}
	}
	history, err := ctx.History()
	if err != nil {
		return nil, err
	}
	s := &consoleSettings{
		Context:        ctx.Name,
		APIKey:         ctx.APIKey,
		Organization:   ctx.Organization,
		Project:        ctx.Project,
		BaseURL:        ctx.BaseURL,
		TokenURL:       ctx.TokenURL,
		Model:          ctx.Model,
		Voice:          ctx.DefaultVoice,
		Transport:      ctx.GetExtra(cli.ExtraTransport),
		AudioIn:        ctx.GetExtra(cli.ExtraAudioIn),
		AudioOut:       ctx.GetExtra(cli.ExtraAudioOut),
		History:        history,
		ArchiveDir:     ctx.GetExtra(cli.ExtraArchiveDir),
		Archive:        true,
		ConnectTimeout: time.Duration(ctx.Timeout) * time.Second,
	}

	changed := cmd.Flags().Changed
	if changed("transport") {
		s.Transport = consoleTransport
	}
	if changed("token-url") {
		s.TokenURL = consoleTokenURL
	}
	if changed("model") {
		s.Model = consoleModelName
	}
	if changed("voice") {
		s.Voice = consoleVoice
	}
	if changed("audio-in") {
		s.AudioIn = consoleAudioIn
	}
	if changed("audio-out") {
		s.AudioOut = consoleAudioOut
	}
	if changed("history") {
		s.History = consoleHistory
	}
	if changed("archive-dir") {
		s.ArchiveDir = consoleArchiveDir
	}
	if changed("connect-timeout") {
		s.ConnectTimeout = consoleConnectTimeout
	}
	s.Archive = !consoleNoArchive
	s.Filter = consoleFilter

	if s.Model == "" {
		s.Model = rt.DefaultModel
	}
	switch s.Transport {
	case "":
		s.Transport = "webrtc"
	case "webrtc", "websocket":
	default:
		return nil, fmt.Errorf("unknown transport %q", s.Transport)
	}
	if s.History < 0 {
		return nil, fmt.Errorf("invalid history %d", s.History)
	}
	if s.TokenURL == "" && s.APIKey == "" {
		return nil, fmt.Errorf("no credential: configure a context, pass --token-url or set OPENAI_API_KEY")
	}
	if s.Transport == "websocket" && s.AudioIn+s.AudioOut != "" {
		return nil, fmt.Errorf("--audio-in and --audio-out need the webrtc transport")
	}
	return s, nil
}

// newClient builds the HTTP/WebSocket client of the settings.
func (s *consoleSettings) newClient() *rt.Client {
	opts := []rt.Option{rt.WithAPIKey(s.APIKey)}
	if s.Organization != "" {
		opts = append(opts, rt.WithOrganization(s.Organization))
	}
	if s.Project != "" {
		opts = append(opts, rt.WithProject(s.Project))
	}
	if s.BaseURL != "" {
		opts = append(opts,
			rt.WithHTTPURL(s.BaseURL),
			rt.WithWebSocketURL(websocketURL(s.BaseURL)),
		)
	}
	return rt.NewClient(opts...)
}

// websocketURL derives the WebSocket endpoint from an HTTP base URL.
func websocketURL(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	default:
		return base
	}
}

// credentials picks the credential source: the token endpoint when set,
// the API key directly over WebSocket, otherwise minted ephemeral keys.
func (s *consoleSettings) credentials(client *rt.Client) rt.CredentialSource {
	switch {
	case s.TokenURL != "":
		return &rt.TokenEndpoint{URL: s.TokenURL}
	case s.Transport == "websocket":
		return rt.StaticCredential(s.APIKey)
	default:
		return &rt.EphemeralKeys{Client: client, Model: s.Model, Voice: s.Voice}
	}
}

// dialer builds the transport of the settings.
func (s *consoleSettings) dialer(client *rt.Client) rt.Dialer {
	if s.Transport == "websocket" {
		return &rt.WebSocketDialer{Client: client, Model: s.Model}
	}
	d := &rt.WebRTCDialer{Client: client, Model: s.Model}
	if s.AudioIn != "" {
		d.Microphone = rt.OggFileSource{Path: s.AudioIn}
	}
	if s.AudioOut != "" {
		d.Speaker = rt.OggFileSink{Path: s.AudioOut}
	}
	return d
}

// openArchive opens the badger-backed event archive of the settings.
func (s *consoleSettings) openArchive(logger *slog.Logger) (*console.Archive, error) {
	dir := s.ArchiveDir
	if dir == "" {
		paths, err := cli.NewPaths(appName)
		if err != nil {
			return nil, err
		}
		dir = paths.ArchiveDir(s.Context)
	}
	if err := cli.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("create archive directory: %w", err)
	}
	store, err := kv.NewBadger(kv.BadgerOptions{Dir: dir, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	return console.NewArchive(store), nil
}

func runConsole(cmd *cobra.Command, args []string) error {
	var ctx *cli.Context
	if contextName != "" || (globalConfig != nil && globalConfig.CurrentContext != "") {
		c, err := getContext()
		if err != nil {
			return err
		}
		ctx = c
	}
	settings, err := resolveConsoleSettings(cmd, ctx)
	if err != nil {
		return err
	}

	printVerbose("Using context: %s", settings.Context)
	printVerbose("Transport: %s, model: %s", settings.Transport, settings.Model)

	// Log lines go to the diagnostics pane while the TUI owns the terminal.
	logWriter := cli.NewLogWriter(200)
	logger := slog.New(slog.NewTextHandler(logWriter, &slog.HandlerOptions{Level: logLevel()}))
	prevLogger := slog.Default()
	slog.SetDefault(logger)
	defer slog.SetDefault(prevLogger)

	storeOpts := console.StoreOptions{Capacity: settings.History, Logger: logger}
	var archive *console.Archive
	if settings.Archive {
		archive, err = settings.openArchive(logger)
		if err != nil {
			return err
		}
		defer archive.Close()
		storeOpts.Sink = archive
	}

	store := console.NewStore(storeOpts)
	client := settings.newClient()
	session := console.NewSession(
		settings.credentials(client),
		settings.dialer(client),
		console.WithStore(store),
		console.WithLogger(logger),
	)
	defer session.Stop()

	eventLog := console.NewEventLog()
	if err := eventLog.SetFilter(settings.Filter); err != nil {
		return err
	}

	model := newConsoleModel(consoleDeps{
		Session:        session,
		EventLog:       eventLog,
		Controls:       console.NewControls(session),
		Tools:          console.NewToolPanel(session, console.WithToolLogger(logger)),
		Store:          store,
		LogWriter:      logWriter,
		Logger:         logger,
		Archive:        archive,
		ConnectTimeout: settings.ConnectTimeout,
		Title:          "RTCONSOLE // " + settings.Transport,
	})

	p := tea.NewProgram(model, tea.WithAltScreen())
	unsubscribe := session.Subscribe(func(snap console.Snapshot) {
		model.observe(snap)
		p.Send(snapshotMsg(snap))
	})
	defer unsubscribe()

	if _, err := p.Run(); err != nil {
		return err
	}
	if archive != nil {
		if run := archive.Current(); run != "" {
			cli.PrintInfo("Events recorded to run '%s' (rtconsole archive dump %s)", run, run)
		}
	}
	return nil
}
