package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

func main() {
	args := os.Args[1:]

	// Handle help flag first
	if len(args) >= 1 {
		switch args[0] {
		case "--help", "-h", "help":
			showUsage()
			return
		}
	}

	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		if err := run(args); err != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			os.Exit(1)
		}
		return
	}

	switch args[0] {
	case "reports":
		if err := runReports(args[1:]); err != nil {
			fmt.Fprintf(os.Stderr, "reports: %v\n", err)
			os.Exit(1)
		}
	case "echo":
		if err := runEcho(args[1:]); err != nil {
			fmt.Fprintf(os.Stderr, "echo: %v\n", err)
			os.Exit(1)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\nRun 'signalctl --help' for usage information.\n", args[0])
		os.Exit(1)
	}
}

func showUsage() {
	fmt.Println(`signalctl - call-control signaling client

USAGE:
    signalctl [COMMAND] [FLAGS]

COMMANDS:
    reports     Print the telemetry journal, newest first
    echo        Run a loopback signaling server for manual testing

    (no command) - Connect and relay stdin lines as requests

FLAGS:
    -h, --help         Show this help message
    --config PATH      Specify config file path (default: ./config.yaml)
    --host HOST        Signaling host (overrides config)
    --port PORT        Signaling port (overrides config)
    --limit N          Number of reports to print (reports only, default 50)
    --addr ADDR        Listen address (echo only, default 127.0.0.1:8765)

INPUT:
    Each stdin line is "method {json params}", for example:
        login {"token":"abc"}
        bye {"callID":"3fa85f64-5717-4562-b3fc-2c963f66afa6"}

CONFIGURATION:
    Config file: ./config.yaml
    Environment: CALLSIGNAL_* variables override config

EXAMPLES:
    signalctl echo --addr 127.0.0.1:8765
    signalctl --host 127.0.0.1 --port 8765
    signalctl reports --limit 10`)
}

// cliFlags holds the flags shared by every command.
type cliFlags struct {
	Config string
	Host   string
	Port   int
	Limit  int
	Addr   string
}

// parseFlags extracts --config, --host, --port, --limit and --addr from args.
// Unknown arguments are ignored.
func parseFlags(args []string) (cliFlags, error) {
	var flags cliFlags
	var port, limit string
	for i := 0; i < len(args); i++ {
		name, value, inline := strings.Cut(args[i], "=")
		var target *string
		switch name {
		case "--config":
			target = &flags.Config
		case "--host":
			target = &flags.Host
		case "--port":
			target = &port
		case "--limit":
			target = &limit
		case "--addr":
			target = &flags.Addr
		default:
			continue
		}
		switch {
		case inline:
			*target = value
		case i+1 < len(args):
			*target = args[i+1]
			i++
		default:
			return flags, fmt.Errorf("%s needs a value", name)
		}
	}

	if port != "" {
		p, err := strconv.Atoi(port)
		if err != nil || p <= 0 || p > 65535 {
			return flags, fmt.Errorf("invalid --port %q", port)
		}
		flags.Port = p
	}
	if limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n <= 0 {
			return flags, fmt.Errorf("invalid --limit %q", limit)
		}
		flags.Limit = n
	}
	return flags, nil
}

func configPath(flags cliFlags) string {
	if flags.Config != "" {
		return flags.Config
	}
	if p := os.Getenv("CALLSIGNAL_CONFIG"); p != "" {
		return p
	}
	return "config.yaml"
}
