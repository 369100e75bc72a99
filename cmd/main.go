package main

import (
	"fmt"
	"io"
	"os"
)

// Version is set at build time via -ldflags.
// Example: go build -ldflags="-X main.Version=v0.1.0" ./cmd
var Version = "dev"

const usage = `homectl-panel - headless control panel for HOMEctlx view-model servers

Usage:
  homectl-panel <command> [options]

Commands:
  open [path]        Open a panel page and drive it interactively
  exec <func> [k=v]  Run one operation and print the returned fragments
  discover           List HOMEctlx servers on the local network
  qr [path]          Show a panel URL as a QR code for a phone
  init               Write a starter config file
  version            Print the version
Run 'homectl-panel <command> --help' for more information on a command.
`

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr, os.Stdin))
}

func run(args []string, stdout, stderr io.Writer, stdin io.Reader) int {
	if len(args) < 2 {
		fmt.Fprint(stdout, usage)
		return 0
	}

	switch args[1] {
	case "open":
		return runOpen(args[2:], stdout, stderr, stdin)
	case "exec":
		return runExec(args[2:], stdout, stderr)
	case "discover":
		return runDiscover(args[2:], stdout, stderr)
	case "qr":
		return runQR(args[2:], stdout, stderr)
	case "init":
		return runInit(args[2:], stdout, stderr)
	case "--help", "-h", "help":
		fmt.Fprint(stdout, usage)
		return 0
	case "--version", "-v", "version":
		fmt.Fprintf(stdout, "homectl-panel %s\n", Version)
		return 0
	default:
		fmt.Fprintf(stdout, "Unknown command: %s\n", args[1])
		fmt.Fprint(stdout, usage)
		return 1
	}
}
