package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/homectlx/panel/internal/config"
	"github.com/homectlx/panel/internal/mdns"
)

const discoverHelp = `Usage: homectl-panel discover [options]

Browse the local network for HOMEctlx servers (` + mdns.ServiceType + `).
`

// runDiscover implements "homectl-panel discover".
func runDiscover(args []string, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet("discover", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	timeout := fs.Duration("timeout", time.Duration(config.DefaultDiscoverTimeoutMs)*time.Millisecond, "How long to browse")
	asJSON := fs.Bool("json", false, "Output in JSON format")
	fs.Usage = func() { printFlagHelp(stderr, discoverHelp, fs) }

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	servers, err := mdns.Discover(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return printServers(stdout, servers, *asJSON)
}

func printServers(w io.Writer, servers []mdns.Server, asJSON bool) int {
	if asJSON {
		type entry struct {
			Name    string `json:"name"`
			URL     string `json:"url"`
			Version string `json:"version,omitempty"`
		}
		out := make([]entry, 0, len(servers))
		for _, s := range servers {
			out = append(out, entry{Name: s.Name, URL: s.URL(), Version: s.Version})
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return 1
		}
		return 0
	}

	if len(servers) == 0 {
		fmt.Fprintln(w, "No servers found.")
		return 0
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tURL\tVERSION")
	for _, s := range servers {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", s.Name, s.URL(), s.Version)
	}
	tw.Flush()
	return 0
}
