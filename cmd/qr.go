package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"

	"github.com/skip2/go-qrcode"
	"github.com/spf13/pflag"
)

const qrHelp = `Usage: homectl-panel qr [options] [path]

Print the URL of a panel page as a QR code so a phone on the same network
can open it. The path defaults to the configured start page.
`

// runQR implements "homectl-panel qr".
func runQR(args []string, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet("qr", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	var common commonFlags
	common.register(fs)
	fs.Usage = func() { printFlagHelp(stderr, qrHelp, fs) }

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 1
	}

	cfg, err := common.load(fs)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DiscoverTimeout()+cfg.InitRetry())
	defer cancel()
	base, err := baseURLResolver(cfg)(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	page := cfg.StartPath
	if fs.NArg() > 0 {
		page = fs.Arg(0)
	}
	target, err := pageURL(base, page)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	DisplayQRCode(stdout, target.String())
	return 0
}

// pageURL joins a page path (with optional query) onto the server base URL.
func pageURL(base, page string) (*url.URL, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid server url %q: %w", base, err)
	}
	ref, err := url.Parse(page)
	if err != nil {
		return nil, fmt.Errorf("invalid page %q: %w", page, err)
	}
	u.Path = path.Join("/", u.Path, ref.Path)
	u.RawQuery = ref.RawQuery
	u.Fragment = ""
	return u, nil
}

// DisplayQRCode prints target as a compact terminal QR code with a
// plain-text fallback underneath.
func DisplayQRCode(w io.Writer, target string) {
	qr, err := qrcode.New(target, qrcode.Medium)
	if err != nil {
		fmt.Fprintf(w, "Error generating QR code: %v\n", err)
		fmt.Fprintf(w, "Open: %s\n", target)
		return
	}

	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "===========================================")
	fmt.Fprintln(w, "         SCAN TO OPEN PANEL")
	fmt.Fprintln(w, "===========================================")
	fmt.Fprintln(w, "")
	fmt.Fprint(w, qr.ToSmallString(false))
	fmt.Fprintln(w, "-------------------------------------------")
	fmt.Fprintf(w, "  %s\n", target)
	fmt.Fprintln(w, "===========================================")
}
