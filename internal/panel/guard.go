package panel

import (
	"golang.org/x/net/html"

	"github.com/homectlx/panel/internal/dom"
)

// Guard is the panel-wide busy flag. At most one command is in flight;
// the flag is mirrored onto every execute-class control as the disabled
// attribute so the tree always shows the current state.
// Use it only from the loop goroutine.
type Guard struct {
	doc  *dom.Document
	busy bool
}

// NewGuard creates an idle guard over doc.
func NewGuard(doc *dom.Document) *Guard {
	return &Guard{doc: doc}
}

// TryAcquire marks the panel busy. It returns false if it already was.
func (g *Guard) TryAcquire() bool {
	if g.busy {
		return false
	}
	g.Acquire()
	return true
}

// Acquire marks the panel busy unconditionally.
func (g *Guard) Acquire() {
	g.busy = true
	g.mirror()
}

// Release clears the busy flag and re-enables every execute-class control,
// including ones inserted since the guard was acquired.
func (g *Guard) Release() {
	g.busy = false
	g.mirror()
}

// Busy reports whether a command is in flight.
func (g *Guard) Busy() bool { return g.busy }

func (g *Guard) mirror() {
	for _, n := range executeControls(g.doc) {
		dom.SetDisabled(n, g.busy)
	}
}

func executeControls(doc *dom.Document) []*html.Node {
	nodes, err := doc.Query(dom.WithClass(dom.ClassExecute))
	if err != nil {
		return nil
	}
	return nodes
}
