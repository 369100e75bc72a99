// Package panel runs the command/response cycle of one panel page: it turns
// interaction events into execute commands, applies response fragments to the
// tree, re-arms self-refreshing regions and surfaces notifications.
//
// All panel state is owned by a single loop goroutine. Exported methods may
// be called from any goroutine; they hop onto the loop before touching state.
package panel

import (
	"context"
	"net/url"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/time/rate"

	"github.com/homectlx/panel/internal/collect"
	"github.com/homectlx/panel/internal/dom"
	"github.com/homectlx/panel/internal/logging"
	"github.com/homectlx/panel/internal/loop"
	"github.com/homectlx/panel/internal/protocol"
)

// Default timings.
const (
	DefaultDebounce    = 400 * time.Millisecond
	DefaultScrollDelay = time.Second
)

// Connection is the part of the connection manager the panel sends through.
type Connection interface {
	Send(t protocol.MessageType, payload any) error
	IsConnected() bool
	OnceConnected(fn func())
}

// Presenter shows blocking messages and moves the viewport.
type Presenter interface {
	Alert(msg string)
	Confirm(msg string) bool
	ScrollIntoView(id string)
}

// Options configure a Panel.
type Options struct {
	Clock       clock.Clock
	Logger      *zap.Logger
	Presenter   Presenter
	Debounce    time.Duration
	ScrollDelay time.Duration
}

// Panel is one live page.
type Panel struct {
	loop      *loop.Loop
	doc       *dom.Document
	conn      Connection
	presenter Presenter
	log       *zap.Logger

	guard     *Guard
	collector *collect.Collector
	debounce  *loop.Debouncer
	dropped   rate.Sometimes

	scrollDelay time.Duration
	armed       map[string]bool
	selections  map[*html.Node][]collect.File
	patched     []func(ids []string)

	ctx context.Context
}

// New creates a panel over doc. Nothing runs until Start.
func New(doc *dom.Document, conn Connection, opts Options) *Panel {
	log := logging.OrNop(opts.Logger)
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.ScrollDelay < 0 {
		opts.ScrollDelay = 0
	} else if opts.ScrollDelay == 0 {
		opts.ScrollDelay = DefaultScrollDelay
	}
	if opts.Presenter == nil {
		opts.Presenter = nopPresenter{}
	}

	l := loop.New(opts.Clock, log)
	p := &Panel{
		loop:        l,
		doc:         doc,
		conn:        conn,
		presenter:   opts.Presenter,
		log:         log.Named("panel"),
		guard:       NewGuard(doc),
		debounce:    loop.NewDebouncer(l, opts.Debounce),
		dropped:     rate.Sometimes{Interval: time.Second},
		scrollDelay: opts.ScrollDelay,
		armed:       make(map[string]bool),
		selections:  make(map[*html.Node][]collect.File),
		ctx:         context.Background(),
	}
	p.collector = collect.New(collect.FileSourceFunc(p.selectedFiles), log)
	return p
}

// Start runs the loop until ctx is done and surfaces any notifications
// already present in the page. It returns immediately.
func (p *Panel) Start(ctx context.Context) {
	p.ctx = ctx
	go func() {
		if err := p.loop.Run(ctx); err != nil && ctx.Err() == nil {
			p.log.Error("loop exited", zap.Error(err))
		}
	}()
	p.loop.Post(func() {
		p.surface()
	})
}

// Loop returns the panel's loop.
func (p *Panel) Loop() *loop.Loop { return p.loop }

// OnPatched registers fn to run on the loop after every applied response,
// with the ids of the replaced regions.
func (p *Panel) OnPatched(fn func(ids []string)) {
	p.loop.Post(func() {
		p.patched = append(p.patched, fn)
	})
}

// RunInitial issues the implicit command for the page URL. Every execute
// control is disabled before anything is sent.
func (p *Panel) RunInitial(ctx context.Context, u *url.URL) error {
	return p.loop.Do(ctx, func() {
		cmd := protocol.FromURL(u)
		p.guard.Acquire()
		p.log.Info("initial command", zap.Stringer("command", cmd))
		p.submit(cmd)
	})
}

// HandleMessage accepts an inbound frame from any goroutine.
func (p *Panel) HandleMessage(t protocol.MessageType, payload []byte) {
	if t != protocol.MessageTypeResponse {
		p.log.Debug("ignoring message", zap.String("type", string(t)))
		return
	}
	data := append([]byte(nil), payload...)
	if err := p.loop.Post(func() { p.apply(data) }); err != nil {
		p.log.Debug("response after stop", zap.Error(err))
	}
}

// HandleConnectionError unblocks the panel after a failed connection
// attempt so the user can retry.
func (p *Panel) HandleConnectionError(err error) {
	p.loop.Post(func() {
		p.log.Warn("connection error", zap.Error(err))
		p.guard.Release()
	})
}

// Busy reports whether a command is in flight.
func (p *Panel) Busy(ctx context.Context) (bool, error) {
	var busy bool
	err := p.loop.Do(ctx, func() { busy = p.guard.Busy() })
	return busy, err
}

// Snapshot renders the whole tree.
func (p *Panel) Snapshot(ctx context.Context) (string, error) {
	var out string
	err := p.loop.Do(ctx, func() { out = p.doc.Render() })
	return out, err
}

// Region renders the element with the given id.
func (p *Panel) Region(ctx context.Context, id string) (string, error) {
	var (
		out string
		nf  error
	)
	err := p.loop.Do(ctx, func() {
		n, err := p.doc.Select("#" + id)
		if err != nil {
			nf = err
			return
		}
		out = dom.OuterHTML(n)
	})
	if err != nil {
		return "", err
	}
	return out, nf
}

func (p *Panel) selectedFiles(input *html.Node) []collect.File {
	return p.selections[input]
}

type nopPresenter struct{}

func (nopPresenter) Alert(string)          {}
func (nopPresenter) Confirm(string) bool   { return true }
func (nopPresenter) ScrollIntoView(string) {}
