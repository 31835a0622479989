package commands

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/haivivi/rtconsole/pkg/cli"
	rt "github.com/haivivi/rtconsole/pkg/openai-realtime"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
	Long: `Manage rtconsole configuration.

Configuration is stored in ~/.rtconsole/rtconsole/config.yaml.
Multiple contexts can be defined for different accounts or environments.`,
}

var configAddContextCmd = &cobra.Command{
	Use:   "add-context <name>",
	Short: "Add a new context",
	Long: `Add a new context. A context needs either a token endpoint or an API key.

The context can also be loaded from a YAML or JSON file with -f; flags
override the file.

Examples:
  rtconsole config add-context local --token-url http://localhost:3000/token
  rtconsole config add-context direct --api-key sk-xxxxx --voice verse
  rtconsole config add-context ws --api-key sk-xxxxx --transport websocket
  rtconsole config add-context dev -f dev-context.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigAddContext,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a context interactively",
	RunE:  runConfigInit,
}

var configDeleteContextCmd = &cobra.Command{
	Use:   "delete-context <name>",
	Short: "Delete a context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		cfg, err := getConfig()
		if err != nil {
			return err
		}
		if err := cfg.DeleteContext(name); err != nil {
			return err
		}
		cli.PrintSuccess("Context '%s' deleted", name)
		return nil
	},
}

var configUseContextCmd = &cobra.Command{
	Use:   "use-context <name>",
	Short: "Set the default context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		cfg, err := getConfig()
		if err != nil {
			return err
		}
		if err := cfg.UseContext(name); err != nil {
			return err
		}
		cli.PrintSuccess("Switched to context '%s'", name)
		return nil
	},
}

var configGetContextCmd = &cobra.Command{
	Use:   "get-context",
	Short: "Show the current context",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfig()
		if err != nil {
			return err
		}
		if cfg.CurrentContext == "" {
			fmt.Println("No current context set")
		} else {
			fmt.Println(cfg.CurrentContext)
		}
		return nil
	},
}

var configListContextsCmd = &cobra.Command{
	Use:   "list-contexts",
	Short: "List all contexts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfig()
		if err != nil {
			return err
		}
		if len(cfg.Contexts) == 0 {
			fmt.Println("No contexts configured")
			return nil
		}
		return outputResult(contextTable(cfg), cli.FormatTable)
	},
}

var configViewCmd = &cobra.Command{
	Use:   "view",
	Short: "View full configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfig()
		if err != nil {
			return err
		}
		return outputResult(redacted(cfg), cli.FormatYAML)
	},
}

var (
	addAPIKey     string
	addBaseURL    string
	addOrg        string
	addProject    string
	addTokenURL   string
	addModel      string
	addVoice      string
	addTimeout    int
	addTransport  string
	addAudioIn    string
	addAudioOut   string
	addArchiveDir string
	addHistory    int
)

func init() {
	f := configAddContextCmd.Flags()
	f.StringVarP(&addAPIKey, "api-key", "k", "", "API key used to mint ephemeral keys")
	f.StringVarP(&addBaseURL, "base-url", "u", "", "Realtime HTTP endpoint (default: "+rt.DefaultHTTPURL+")")
	f.StringVar(&addOrg, "organization", "", "OpenAI organization ID")
	f.StringVar(&addProject, "project", "", "OpenAI project ID")
	f.StringVar(&addTokenURL, "token-url", "", "token endpoint returning {client_secret:{value}}")
	f.StringVar(&addModel, "model", "", "realtime model (default: "+rt.DefaultModel+")")
	f.StringVar(&addVoice, "voice", "", "voice requested when minting keys")
	f.IntVar(&addTimeout, "timeout", 0, "connect timeout in seconds (0: none)")
	f.StringVar(&addTransport, "transport", "", "webrtc (default) or websocket")
	f.StringVar(&addAudioIn, "audio-in", "", "Ogg/Opus file streamed as the microphone")
	f.StringVar(&addAudioOut, "audio-out", "", "Ogg/Opus file the model's audio is recorded to")
	f.StringVar(&addArchiveDir, "archive-dir", "", "event archive directory")
	f.IntVar(&addHistory, "history", 0, "in-memory event history bound (0: unbounded)")

	configCmd.AddCommand(configAddContextCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configDeleteContextCmd)
	configCmd.AddCommand(configUseContextCmd)
	configCmd.AddCommand(configGetContextCmd)
	configCmd.AddCommand(configListContextsCmd)
	configCmd.AddCommand(configViewCmd)
}

func runConfigAddContext(cmd *cobra.Command, args []string) error {
	name := args[0]
	cfg, err := getConfig()
	if err != nil {
		return err
	}

	ctx := &cli.Context{}
	if inputFile != "" {
		if err := cli.LoadRequest(inputFile, ctx); err != nil {
			return err
		}
	}
	applyContextFlags(cmd, ctx)

	if err := cfg.AddContext(name, ctx); err != nil {
		return err
	}
	cli.PrintSuccess("Context '%s' added successfully", name)
	return nil
}

// applyContextFlags copies the flags the user set onto ctx.
func applyContextFlags(cmd *cobra.Command, ctx *cli.Context) {
	changed := cmd.Flags().Changed
	if changed("api-key") {
		ctx.APIKey = addAPIKey
	}
	if changed("base-url") {
		ctx.BaseURL = addBaseURL
	}
	if changed("organization") {
		ctx.Organization = addOrg
	}
	if changed("project") {
		ctx.Project = addProject
	}
	if changed("token-url") {
		ctx.TokenURL = addTokenURL
	}
	if changed("model") {
		ctx.Model = addModel
	}
	if changed("voice") {
		ctx.DefaultVoice = addVoice
	}
	if changed("timeout") {
		ctx.Timeout = addTimeout
	}
	if changed("transport") {
		ctx.SetExtra(cli.ExtraTransport, addTransport)
	}
	if changed("audio-in") {
		ctx.SetExtra(cli.ExtraAudioIn, addAudioIn)
	}
	if changed("audio-out") {
		ctx.SetExtra(cli.ExtraAudioOut, addAudioOut)
	}
	if changed("archive-dir") {
		ctx.SetExtra(cli.ExtraArchiveDir, addArchiveDir)
	}
	if changed("history") {
		ctx.SetExtra(cli.ExtraHistory, strconv.Itoa(addHistory))
	}
}

const (
	credTokenURL = "token"
	credAPIKey   = "apikey"
)

func runConfigInit(cmd *cobra.Command, args []string) error {
	cfg, err := getConfig()
	if err != nil {
		return err
	}

	var (
		name      string
		credMode  = credTokenURL
		tokenURL  = "http://localhost:3000/token"
		apiKey    string
		transport = "webrtc"
		voice     = rt.VoiceAlloy
		model     string
		makeUsed  = true
	)
	notEmpty := func(s string) error {
		if s == "" {
			return errors.New("required")
		}
		return nil
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Context name").Value(&name).Validate(notEmpty),
			huh.NewSelect[string]().
				Title("Credential").
				Options(
					huh.NewOption("Token endpoint", credTokenURL),
					huh.NewOption("API key (ephemeral keys)", credAPIKey),
				).
				Value(&credMode),
		),
		huh.NewGroup(
			huh.NewInput().Title("Token URL").Value(&tokenURL).Validate(notEmpty),
		).WithHideFunc(func() bool { return credMode != credTokenURL }),
		huh.NewGroup(
			huh.NewInput().Title("API key").EchoMode(huh.EchoModePassword).Value(&apiKey).Validate(notEmpty),
		).WithHideFunc(func() bool { return credMode != credAPIKey }),
		huh.NewGroup(
			huh.NewSelect[string]().Title("Transport").Options(huh.NewOptions("webrtc", "websocket")...).Value(&transport),
			huh.NewSelect[string]().Title("Voice").Options(huh.NewOptions(
				rt.VoiceAlloy, rt.VoiceAsh, rt.VoiceBallad, rt.VoiceCoral,
				rt.VoiceEcho, rt.VoiceSage, rt.VoiceShimmer, rt.VoiceVerse,
			)...).Value(&voice),
			huh.NewInput().Title("Model").Placeholder(rt.DefaultModel).Value(&model),
			huh.NewConfirm().Title("Use this context by default?").Value(&makeUsed),
		),
	)
	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return nil
		}
		return err
	}

	ctx := &cli.Context{Model: model, DefaultVoice: voice}
	if credMode == credTokenURL {
		ctx.TokenURL = tokenURL
	} else {
		ctx.APIKey = apiKey
	}
	if transport != "webrtc" {
		ctx.SetExtra(cli.ExtraTransport, transport)
	}
	if err := cfg.AddContext(name, ctx); err != nil {
		return err
	}
	if makeUsed {
		if err := cfg.UseContext(name); err != nil {
			return err
		}
	}
	cli.PrintSuccess("Context '%s' added successfully", name)
	return nil
}

// contextTable lists the contexts, marking the current one.
func contextTable(cfg *cli.Config) *cli.Table {
	t := &cli.Table{Headers: []string{"CURRENT", "NAME", "CREDENTIAL", "TRANSPORT", "MODEL"}}
	for _, name := range cfg.ListContexts() {
		ctx := cfg.Contexts[name]
		current := ""
		if name == cfg.CurrentContext {
			current = "*"
		}
		cred := "token " + ctx.TokenURL
		if ctx.TokenURL == "" {
			cred = "key " + cli.MaskAPIKey(ctx.APIKey)
		}
		transport := ctx.GetExtra(cli.ExtraTransport)
		if transport == "" {
			transport = "webrtc"
		}
		model := ctx.Model
		if model == "" {
			model = rt.DefaultModel
		}
		t.Rows = append(t.Rows, []string{current, name, cred, transport, model})
	}
	return t
}

// redacted returns a copy of cfg with API keys masked.
func redacted(cfg *cli.Config) *cli.Config {
	out := &cli.Config{
		AppName:        cfg.AppName,
		CurrentContext: cfg.CurrentContext,
		Contexts:       make(map[string]*cli.Context, len(cfg.Contexts)),
	}
	for name, ctx := range cfg.Contexts {
		c := *ctx
		c.APIKey = cli.MaskAPIKey(c.APIKey)
		out.Contexts[name] = &c
	}
	return out
}
