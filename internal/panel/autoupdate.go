package panel

import (
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/homectlx/panel/internal/dom"
)

func hasAutoUpdate(n *html.Node) bool { return dom.HasAttr(n, dom.AttrAutoUpdate) }

// arm schedules the refresh of a freshly patched region. A region already
// armed is left alone until its timer fires.
func (p *Panel) arm(r dom.Region) {
	if p.armed[r.ID] {
		return
	}
	found := dom.Find(r.Nodes, hasAutoUpdate)
	if len(found) == 0 {
		return
	}
	delay, err := parseDelay(dom.Attr(found[0], dom.AttrAutoUpdate))
	if err != nil {
		p.log.Warn("bad auto-update delay", zap.String("region", r.ID), zap.Error(err))
		return
	}

	p.armed[r.ID] = true
	id := r.ID
	p.loop.AfterFunc(delay, func() { p.refresh(id) })
	p.log.Debug("auto-update armed", zap.String("region", id), zap.Duration("delay", delay))
}

// refresh fires an armed region: the mark is cleared first so the response
// to this command can re-arm it.
func (p *Panel) refresh(id string) {
	delete(p.armed, id)

	region := p.doc.ByID(id)
	if region == nil {
		p.log.Debug("auto-update region gone", zap.String("region", id))
		return
	}
	found := dom.Find([]*html.Node{region}, hasAutoUpdate)
	if len(found) == 0 {
		return
	}
	p.dispatch(found[0])
}

// parseDelay reads a millisecond delay. Zero fires on the next loop turn.
func parseDelay(v string) (time.Duration, error) {
	ms, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, err
	}
	if ms < 0 {
		ms = 0
	}
	return time.Duration(ms) * time.Millisecond, nil
}
