package panel

import (
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/homectlx/panel/internal/dom"
	apperrors "github.com/homectlx/panel/internal/errors"
	"github.com/homectlx/panel/internal/protocol"
)

// dispatch issues a command for trigger. It is a silent no-op while another
// command is in flight.
func (p *Panel) dispatch(trigger *html.Node) {
	if !p.guard.TryAcquire() {
		p.dropped.Do(func() {
			p.log.Debug("command dropped", zap.String("code", apperrors.CodeCommandBusy))
		})
		return
	}

	path := dom.Attr(trigger, dom.AttrFunc)
	module, operation, err := protocol.ParseFunctionPath(path)
	if err != nil {
		p.log.Warn("trigger has no usable function path", zap.Error(err))
		p.guard.Release()
		return
	}

	res := p.collector.Collect(p.ctx, trigger)
	cmd := protocol.NewCommand(module, operation, res.Args)

	select {
	case <-res.Uploads.Done():
		p.afterUploads(cmd, res.Uploads.Err())
	default:
		p.log.Debug("waiting for uploads", zap.Stringer("command", cmd), zap.Int("pending", res.Uploads.Pending()))
		go func() {
			<-res.Uploads.Done()
			p.loop.Post(func() { p.afterUploads(cmd, res.Uploads.Err()) })
		}()
	}
}

// afterUploads submits cmd once its file reads have joined. A failed read
// abandons the command.
func (p *Panel) afterUploads(cmd *protocol.Command, err error) {
	if err != nil {
		p.log.Warn("command abandoned", zap.Stringer("command", cmd), zap.Error(err))
		p.guard.Release()
		p.presenter.Alert(apperrors.GetMessage(err))
		return
	}
	p.submit(cmd)
}

// submit sends cmd now, or once on the next connect. It never releases
// the guard on success; only a response or a connection error does.
func (p *Panel) submit(cmd *protocol.Command) {
	send := func() {
		if err := p.conn.Send(protocol.MessageTypeExecute, cmd.Payload()); err != nil {
			p.log.Error("execute not sent", zap.Stringer("command", cmd), zap.Error(err))
			p.guard.Release()
			return
		}
		p.log.Debug("execute sent", zap.Stringer("command", cmd))
	}
	if p.conn.IsConnected() {
		send()
		return
	}
	p.log.Debug("deferring until connected", zap.Stringer("command", cmd))
	p.conn.OnceConnected(func() {
		p.loop.Post(send)
	})
}
