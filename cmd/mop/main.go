// ABOUTME: CLI entrypoint for mop: live analysis runs, the browser dashboard, and kernel control.
// ABOUTME: Parses pflag flags, layers config file, env and flags, and maps run outcomes to exit codes.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/2389-research/mop/config"
	"github.com/2389-research/mop/session"
)

var version = "dev"

// Exit codes.
const (
	exitOK     = 0
	exitFailed = 1
	exitUsage  = 2
	exitHalted = 3
)

const (
	commandServe  = "serve"
	commandKernel = "kernel"
)

var kernelActions = []string{"stop", "reset", "history", "export"}

// cliConfig holds everything parsed from flags and positional arguments.
type cliConfig struct {
	configPath  string
	backURL     string
	transport   string
	dashboard   bool
	plain       bool
	reportPath  string
	logFile     string
	logLevel    string
	addr        string
	output      string
	showVersion bool

	command string
	args    []string
}

func main() {
	loadDotEnvAuto()
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// parseArgs parses flags and classifies the positional arguments. "serve"
// alone and "kernel <action>" are subcommands; anything else is the problem.
func parseArgs(args []string) (cliConfig, error) {
	var cli cliConfig

	fs := pflag.NewFlagSet("mop", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&cli.configPath, "config", "", "config file (default: $XDG_CONFIG_HOME/mop/config.yaml)")
	fs.StringVar(&cli.backURL, "back-url", "", "analysis server base URL")
	fs.StringVar(&cli.transport, "transport", "", "upstream transport: stream or sequential")
	fs.BoolVar(&cli.dashboard, "dashboard", false, "full-screen dashboard instead of the inline view")
	fs.BoolVar(&cli.plain, "plain", false, "no terminal UI; print one line per update")
	fs.StringVar(&cli.reportPath, "report", "", "write a report when the run ends (.md or .html)")
	fs.StringVar(&cli.logFile, "log-file", "", "log file used while a terminal UI is running")
	fs.StringVar(&cli.logLevel, "log-level", "", "debug, info, warn or error")
	fs.StringVar(&cli.addr, "addr", "", "dashboard listen address for serve")
	fs.StringVarP(&cli.output, "output", "o", "", "output file for kernel export")
	fs.BoolVar(&cli.showVersion, "version", false, "print version and exit")
	fs.BoolP("help", "h", false, "show help")

	if err := fs.Parse(args); err != nil {
		return cli, err
	}
	if help, _ := fs.GetBool("help"); help {
		return cli, pflag.ErrHelp
	}

	rest := fs.Args()
	switch {
	case len(rest) == 1 && rest[0] == commandServe:
		cli.command = commandServe
		rest = nil
	case len(rest) > 0 && rest[0] == commandKernel:
		cli.command = commandKernel
		rest = rest[1:]
		if len(rest) != 1 || !validKernelAction(rest[0]) {
			return cli, fmt.Errorf("usage: mop kernel %s", strings.Join(kernelActions, "|"))
		}
	}
	cli.args = rest
	return cli, nil
}

func validKernelAction(a string) bool {
	for _, k := range kernelActions {
		if a == k {
			return true
		}
	}
	return false
}

// run dispatches to the selected mode and returns the process exit code.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cli, err := parseArgs(args)
	if errors.Is(err, pflag.ErrHelp) {
		printHelp(stdout, version)
		return exitOK
	}
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		fmt.Fprintln(stderr, "Run 'mop --help' for usage.")
		return exitUsage
	}
	if cli.showVersion {
		fmt.Fprintf(stdout, "mop %s\n", version)
		return exitOK
	}

	cfg, err := loadConfig(cli, os.Getenv)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitUsage
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cli.command {
	case commandServe:
		return runServe(ctx, cfg, stderr)
	case commandKernel:
		return runKernel(ctx, cli, cfg, stdout, stderr)
	}

	problem, err := readProblem(cli.args, stdin)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		if len(cli.args) == 0 {
			printHelp(stderr, version)
		}
		return exitUsage
	}
	return runAnalyze(ctx, cli, cfg, problem, stdout, stderr)
}

// loadConfig layers the config file, the environment and flags.
func loadConfig(cli cliConfig, getenv func(string) string) (config.Config, error) {
	cfg, err := config.Load(cli.configPath)
	if err != nil {
		return cfg, err
	}
	cfg.ApplyEnv(getenv)

	if cli.backURL != "" {
		cfg.BackURL = cli.backURL
	}
	if cli.transport != "" {
		cfg.Transport = cli.transport
	}
	if cli.logLevel != "" {
		cfg.Log.Level = cli.logLevel
	}
	if cli.logFile != "" {
		cfg.Log.File = cli.logFile
	}
	if cli.addr != "" {
		cfg.Server.Addr = cli.addr
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	if _, err := parseLevel(cfg.Log.Level); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// readProblem joins the positional arguments, or reads stdin for "-".
func readProblem(args []string, stdin io.Reader) (string, error) {
	var problem string
	if len(args) == 1 && args[0] == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read problem from stdin: %w", err)
		}
		problem = string(data)
	} else {
		problem = strings.Join(args, " ")
	}

	problem = strings.TrimSpace(problem)
	if problem == "" {
		return "", errors.New("no problem given")
	}
	return problem, nil
}

// exitCode maps how a run ended onto the process exit code.
func exitCode(o session.Outcome) int {
	switch o {
	case session.OutcomeCompleted, session.OutcomeEnded:
		return exitOK
	case session.OutcomeHalted:
		return exitHalted
	}
	return exitFailed
}
