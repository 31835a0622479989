package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/haivivi/rtconsole/pkg/cli"
)

const appName = "rtconsole"

var (
	// Global flags
	cfgFile      string
	contextName  string
	outputFile   string
	inputFile    string
	outputFormat string
	outputJSON   bool
	verbose      bool

	// Global configuration
	globalConfig *cli.Config
	configErr    error
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "rtconsole",
	Short: "OpenAI Realtime console",
	Long: `rtconsole - A terminal console for the OpenAI Realtime API.

It negotiates a Realtime session over WebRTC (or WebSocket), shows every
client and server event as it happens, lets you send text messages, and
exposes a color palette tool the model can call.

Configuration is stored in ~/.rtconsole/rtconsole/ and supports multiple
contexts, similar to kubectl's context management.

Examples:
  # Use a local token server
  rtconsole config add-context local --token-url http://localhost:3000/token

  # Or mint ephemeral keys with an API key
  rtconsole config add-context direct --api-key sk-xxxxx

  # Start the console
  rtconsole -c local console

  # Inspect recorded sessions
  rtconsole archive list
`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Command returns the root cobra command for mounting into a parent CLI.
func Command() *cobra.Command {
	return rootCmd
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "", "", "config file (default is ~/.rtconsole/rtconsole/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&contextName, "context", "c", "", "context name to use")
	rootCmd.PersistentFlags().StringVarP(&outputFile, "output", "o", "", "output file (default: stdout)")
	rootCmd.PersistentFlags().StringVarP(&inputFile, "file", "f", "", "input request file (YAML or JSON, - for stdin)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "", "output format: yaml, json, jsonl, table")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output as JSON (for piping)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(consoleCmd)
	rootCmd.AddCommand(archiveCmd)
}

func initConfig() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(),
	})))

	globalConfig, configErr = cli.LoadConfigWithPath(appName, cfgFile)
	if configErr != nil {
		fmt.Fprintf(os.Stderr, "Warning: %s config: %v\n", appName, configErr)
	}
}

func logLevel() slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// getConfig returns the global configuration
func getConfig() (*cli.Config, error) {
	if globalConfig == nil {
		if configErr != nil {
			return nil, fmt.Errorf("%s config: %w", appName, configErr)
		}
		return nil, fmt.Errorf("configuration not initialized")
	}
	return globalConfig, nil
}

// getContext returns the context configuration to use
func getContext() (*cli.Context, error) {
	cfg, err := getConfig()
	if err != nil {
		return nil, err
	}

	ctx, err := cfg.ResolveContext(contextName)
	if err != nil {
		if contextName == "" {
			return nil, fmt.Errorf("no context specified. Use -c flag or set a default context with 'rtconsole config use-context'")
		}
		return nil, err
	}

	return ctx, nil
}

// resolveFormat combines --format and --json.
func resolveFormat(fallback cli.OutputFormat) (cli.OutputFormat, error) {
	if outputJSON {
		return cli.FormatJSON, nil
	}
	if outputFormat == "" {
		return fallback, nil
	}
	return cli.ParseOutputFormat(outputFormat)
}

// outputResult outputs the result using cli package
func outputResult(result any, fallback cli.OutputFormat) error {
	format, err := resolveFormat(fallback)
	if err != nil {
		return err
	}
	return cli.Output(result, cli.OutputOptions{
		Format: format,
		File:   outputFile,
	})
}

// printVerbose prints verbose output if enabled
func printVerbose(format string, args ...any) {
	if verbose {
		fmt.Fprintf(os.Stderr, "[verbose] "+format+"\n", args...)
	}
}
