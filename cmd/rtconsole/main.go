// Package main provides the rtconsole CLI tool.
//
// Usage:
//
//	rtconsole [flags] <command> [args]
//
// Commands:
//
//	console  - Interactive Realtime console (event log, controls, tool panel)
//	archive  - Inspect recorded event histories
//	config   - Configuration management
//
// Configuration:
//
//	The CLI stores configuration in ~/.rtconsole/rtconsole/
//	Use 'rtconsole config' commands to manage contexts.
package main

import (
	"os"

	"github.com/haivivi/rtconsole/cmd/rtconsole/commands"
	"github.com/haivivi/rtconsole/pkg/cli"
)

func main() {
	if err := commands.Execute(); err != nil {
		cli.PrintError("%v", err)
		os.Exit(1)
	}
}
