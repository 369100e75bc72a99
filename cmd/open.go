package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/homectlx/panel/internal/dom"
	"github.com/homectlx/panel/internal/panel"
)

const openHelp = `Usage: homectl-panel open [options] [path]

Load a panel page from the server, run its initial command and drive it
from the terminal. The path defaults to the configured start page, e.g.
'homectl-panel open /lights/status?room=kitchen'. Type 'help' once the
page is open for the available interactions.
`

// maxPageSize bounds the page shell download.
const maxPageSize = 8 << 20

// runOpen implements "homectl-panel open".
func runOpen(args []string, stdout, stderr io.Writer, stdin io.Reader) int {
	fs := pflag.NewFlagSet("open", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	var common commonFlags
	common.register(fs)
	fs.Usage = func() { printFlagHelp(stderr, openHelp, fs) }

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
	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	resolveCtx, cancelResolve := context.WithTimeout(ctx, cfg.DiscoverTimeout()+cfg.InitRetry())
	base, err := baseURLResolver(cfg)(resolveCtx)
	cancelResolve()
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
	// The initial command is named by the page path, not by the server's base path.
	initial, err := url.Parse(page)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	doc, err := fetchPage(ctx, target)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	in := newLineReader(stdin)
	console := &consolePresenter{out: stdout, in: in}

	// A configured scroll delay of 0 means scroll at once.
	scrollDelay := cfg.ScrollDelay()
	if scrollDelay == 0 {
		scrollDelay = -1
	}

	mgr := newManager(cfg, logger)
	pnl := panel.New(doc, mgr, panel.Options{
		Logger:      logger,
		Presenter:   console,
		Debounce:    cfg.Debounce(),
		ScrollDelay: scrollDelay,
	})
	mgr.OnMessage(pnl.HandleMessage)
	mgr.OnConnectionError(pnl.HandleConnectionError)
	mgr.OnDisconnected(func(err error) {
		logger.Warn("disconnected from server", zap.Error(err))
	})
	pnl.OnPatched(func(ids []string) {
		if len(ids) > 0 {
			console.printf("[patched] %s\n", strings.Join(ids, ", "))
		}
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	pnl.Start(ctx)
	defer mgr.Close()

	go func() {
		if err := mgr.Run(ctx); err != nil && ctx.Err() == nil {
			console.printf("[offline] %v\n", err)
			cancel()
		}
	}()

	if err := pnl.RunInitial(ctx, initial); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "Opened %s (type 'help' for commands)\n", target)
	runREPL(ctx, pnl, in, console)
	return 0
}

// fetchPage downloads and parses the page shell at target.
func fetchPage(ctx context.Context, target *url.URL) (*dom.Document, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: %s", target, resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", target, err)
	}
	return dom.Parse(string(body))
}
