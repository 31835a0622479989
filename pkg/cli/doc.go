// Package cli provides the shared command-line plumbing of rtconsole.
//
// This package includes:
//   - Configuration management (named contexts, like kubectl)
//   - Output formatting (YAML, JSON, JSON lines, tables)
//   - Request file loading (YAML/JSON)
//   - Terminal UI frames and a log writer feeding the diagnostics pane
//
// Configuration is stored in ~/.rtconsole/<app>/config.yaml.
//
// Example usage:
//
//	cfg, err := cli.LoadConfig("rtconsole")
//	ctx, err := cfg.ResolveContext(name)
//
//	cli.Output(result, cli.OutputOptions{
//	    Format: cli.FormatJSON,
//	    File:   outputPath,
//	})
package cli
