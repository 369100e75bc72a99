package panel

import (
	"go.uber.org/zap"

	"github.com/homectlx/panel/internal/dom"
	"github.com/homectlx/panel/internal/protocol"
)

// apply handles one response: patch, arm, surface, then release. The guard
// is released last so no new command can target regions not yet patched.
func (p *Panel) apply(payload []byte) {
	defer p.guard.Release()

	set, err := protocol.DecodeResponse(payload)
	if err != nil {
		p.log.Warn("response rejected", zap.Error(err))
		return
	}
	p.log.Debug("response received", zap.Strings("ids", set.IDs()))

	res, err := dom.Apply(p.doc, set)
	if err != nil {
		// Fragments before the failing one are already in the tree.
		p.log.Warn("response partially applied", zap.Error(err))
	}
	if len(res.Missing) > 0 {
		p.log.Debug("regions not on page", zap.Strings("ids", res.Missing))
	}

	ids := make([]string, 0, len(res.Regions))
	for _, r := range res.Regions {
		ids = append(ids, r.ID)
		p.arm(r)
	}
	p.forgetDetached()
	p.surface()

	p.log.Debug("response applied", zap.Strings("regions", ids), zap.Int("appended", len(res.Appended)))
	for _, fn := range p.patched {
		fn(ids)
	}
}

// forgetDetached drops file selections of inputs that were replaced.
func (p *Panel) forgetDetached() {
	for n := range p.selections {
		if !p.doc.Contains(n) {
			delete(p.selections, n)
		}
	}
}
