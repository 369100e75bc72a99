package panel

import (
	"strings"

	"github.com/homectlx/panel/internal/dom"
)

// surface presents every pending alert directive once. Each element is
// detached before it is shown, so no later scan can find it again.
func (p *Panel) surface() int {
	nodes, err := p.doc.Query(dom.WithAttr(dom.AttrAlert))
	if err != nil {
		return 0
	}
	shown := 0
	for _, n := range nodes {
		msg := strings.TrimSpace(dom.Attr(n, dom.AttrAlert))
		if msg == "" {
			continue
		}
		dom.Remove(n)
		p.presenter.Alert(msg)
		shown++
	}
	return shown
}
