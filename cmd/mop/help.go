// ABOUTME: Help display for the mop CLI with usage patterns, grouped flags, examples and environment status.
// ABOUTME: Provides printHelp for usage output and envStatus for the configured analysis server.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/2389-research/mop/config"
)

// printHelp writes a formatted help message to w.
func printHelp(w io.Writer, ver string) {
	fmt.Fprintf(w, "mop %s: live client for the multi-agent analysis pipeline\n", ver)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  mop [flags] <problem...>              Run an analysis and render it live")
	fmt.Fprintln(w, "  mop [flags] -                         Read the problem from stdin")
	fmt.Fprintln(w, "  mop serve [--addr host:port]          Start the browser dashboard")
	fmt.Fprintln(w, "  mop kernel stop|reset|history|export  Administrative kernel control")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Run Flags:")
	fmt.Fprintln(w, "  --back-url <url>         Analysis server base URL (default: http://127.0.0.1:8000)")
	fmt.Fprintln(w, "  --transport <name>       stream (one event stream) or sequential (one call per agent)")
	fmt.Fprintln(w, "  --dashboard              Full-screen dashboard with agent, detail and log panels")
	fmt.Fprintln(w, "  --plain                  No terminal UI; print one line per update")
	fmt.Fprintln(w, "  --report <file>          Write a report when the run ends (.md or .html)")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Server Flags:")
	fmt.Fprintln(w, "  --addr <host:port>       Dashboard listen address (default: 127.0.0.1:2390)")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Kernel Flags:")
	fmt.Fprintln(w, "  -o, --output <path>      Export file or directory (default: kernel_stop_history_<date>.xlsx)")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "General Flags:")
	fmt.Fprintln(w, "  --config <file>          Config file (default: $XDG_CONFIG_HOME/mop/config.yaml)")
	fmt.Fprintln(w, "  --log-file <file>        Log file while a terminal UI runs (default: $XDG_STATE_HOME/mop/mop.log)")
	fmt.Fprintln(w, "  --log-level <level>      debug, info, warn or error")
	fmt.Fprintln(w, "  --version                Print version and exit")
	fmt.Fprintln(w, "  -h, --help               Show this help")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Keys:")
	fmt.Fprintln(w, "  s hard stop · r reset & continue · h stop history · e export · q quit")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Examples:")
	fmt.Fprintln(w, "  mop \"How should we price the new plan?\"")
	fmt.Fprintln(w, "  echo \"Why did churn rise?\" | mop --plain --report churn.md -")
	fmt.Fprintln(w, "  mop --dashboard --transport sequential \"Review the launch plan\"")
	fmt.Fprintln(w, "  mop serve --addr 0.0.0.0:2390")
	fmt.Fprintln(w, "  mop kernel export -o ~/Downloads")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Environment:")
	for _, line := range envStatus(os.Getenv) {
		fmt.Fprintln(w, "  "+line)
	}
}

// envStatus describes the environment variables that select the analysis
// server.
func envStatus(getenv func(string) string) []string {
	var lines []string
	for _, key := range config.BackURLEnv {
		if v := getenv(key); v != "" {
			lines = append(lines, fmt.Sprintf("%-14s %s", key, v))
		} else {
			lines = append(lines, fmt.Sprintf("%-14s (not set)", key))
		}
	}
	return lines
}
