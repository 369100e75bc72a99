package panel

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/homectlx/panel/internal/collect"
	"github.com/homectlx/panel/internal/dom"
	"github.com/homectlx/panel/internal/protocol"
)

const page = `<!DOCTYPE html><html><body>
<div id="panel-0">before</div>
<div id="panel-1">old</div>
<div id="panel-2">after</div>
<div id="clock"></div>
<form id="lights">
  <input name="room" value="kitchen">
  <input type="checkbox" name="lamps" value="a" checked>
  <input type="checkbox" name="lamps" value="b">
  <button id="go" class="execute" data-func="lights/set">Go</button>
  <button id="off" class="execute" data-func="lights/off" data-confirm="Really?">Off</button>
</form>
<form id="upload">
  <input id="pick" type="file" name="docs">
  <button id="send" class="execute" data-func="files/upload">Upload</button>
</form>
<div class="fieldset">
  <input id="search" class="execute" name="q" data-func="search" value="">
</div>
<div id="boxes">
  <input type="checkbox" name="x" value="1" checked>
  <input type="checkbox" name="x" value="2">
  <button id="invert" class="invert-selection">Invert</button>
</div>
<button id="jump" class="bring-into-view" data-scroll-target="panel-2">Jump</button>
<span id="info" data-details="Living room lamp, 40W">i</span>
<span id="blank" data-details="   ">i</span>
</body></html>`

type fakeConn struct {
	mu        sync.Mutex
	connected bool
	sent      []string
	once      []func()
}

func (c *fakeConn) Send(t protocol.MessageType, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return errors.New("not connected")
	}
	c.sent = append(c.sent, string(data))
	return nil
}

func (c *fakeConn) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeConn) OnceConnected(fn func()) {
	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		fn()
		return
	}
	c.once = append(c.once, fn)
	c.mu.Unlock()
}

func (c *fakeConn) connect() {
	c.mu.Lock()
	c.connected = true
	once := c.once
	c.once = nil
	c.mu.Unlock()
	for _, fn := range once {
		fn()
	}
}

func (c *fakeConn) Sent() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.sent...)
}

type fakePresenter struct {
	mu      sync.Mutex
	confirm bool
	alerts  []string
	prompts []string
	scrolls []string
}

func (p *fakePresenter) Alert(msg string) {
	p.mu.Lock()
	p.alerts = append(p.alerts, msg)
	p.mu.Unlock()
}

func (p *fakePresenter) Confirm(msg string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prompts = append(p.prompts, msg)
	return p.confirm
}

func (p *fakePresenter) ScrollIntoView(id string) {
	p.mu.Lock()
	p.scrolls = append(p.scrolls, id)
	p.mu.Unlock()
}

func (p *fakePresenter) Alerts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.alerts...)
}

func (p *fakePresenter) Scrolls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.scrolls...)
}

type fixture struct {
	panel *Panel
	conn  *fakeConn
	pres  *fakePresenter
	clock *clock.Mock
	ctx   context.Context
}

func newFixture(t *testing.T, connected bool) *fixture {
	t.Helper()
	doc, err := dom.Parse(page)
	require.NoError(t, err)

	f := &fixture{
		conn:  &fakeConn{connected: connected},
		pres:  &fakePresenter{confirm: true},
		clock: clock.NewMock(),
	}
	f.panel = New(doc, f.conn, Options{Clock: f.clock, Presenter: f.pres})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	f.ctx = ctx
	f.panel.Start(ctx)
	return f
}

// respond delivers a response and waits until the loop has applied it.
func (f *fixture) respond(t *testing.T, fragments string) {
	t.Helper()
	f.panel.HandleMessage(protocol.MessageTypeResponse, []byte(fragments))
	f.sync(t)
}

func (f *fixture) sync(t *testing.T) {
	t.Helper()
	require.NoError(t, f.panel.Loop().Do(f.ctx, func() {}))
}

func (f *fixture) busy(t *testing.T) bool {
	t.Helper()
	busy, err := f.panel.Busy(f.ctx)
	require.NoError(t, err)
	return busy
}

func (f *fixture) waitSent(t *testing.T, n int) []string {
	t.Helper()
	require.Eventually(t, func() bool { return len(f.conn.Sent()) >= n }, 2*time.Second, 5*time.Millisecond)
	sent := f.conn.Sent()
	require.Len(t, sent, n)
	return sent
}

func TestRunInitial_FromURL(t *testing.T) {
	f := newFixture(t, true)
	u, err := url.Parse("http://pi.local:5000/lights/status?room=kitchen")
	require.NoError(t, err)

	require.NoError(t, f.panel.RunInitial(f.ctx, u))

	sent := f.waitSent(t, 1)
	assert.JSONEq(t, `{"vm":"lights","func":"status","args":{"room":"kitchen"}}`, sent[0])
	assert.True(t, f.busy(t))

	snap, err := f.panel.Snapshot(f.ctx)
	require.NoError(t, err)
	assert.Contains(t, snap, `id="go" class="execute" data-func="lights/set" disabled=""`)
}

func TestRunInitial_RootPath(t *testing.T) {
	f := newFixture(t, true)
	u, _ := url.Parse("http://pi.local:5000/")
	require.NoError(t, f.panel.RunInitial(f.ctx, u))

	sent := f.waitSent(t, 1)
	assert.JSONEq(t, `{"vm":"start","func":"ctl","args":{}}`, sent[0])
}

func TestResponse_ReplacesRegionInPlace(t *testing.T) {
	f := newFixture(t, true)
	var (
		mu      sync.Mutex
		patched [][]string
	)
	f.panel.OnPatched(func(ids []string) {
		mu.Lock()
		patched = append(patched, ids)
		mu.Unlock()
	})

	f.respond(t, `{"panel-1": "<div id='panel-1'>ok</div>", "_error": ""}`)

	got, err := f.panel.Region(f.ctx, "panel-1")
	require.NoError(t, err)
	assert.Equal(t, `<div id="panel-1">ok</div>`, got)

	before, err := f.panel.Region(f.ctx, "panel-0")
	require.NoError(t, err)
	assert.Equal(t, `<div id="panel-0">before</div>`, before)
	after, err := f.panel.Region(f.ctx, "panel-2")
	require.NoError(t, err)
	assert.Equal(t, `<div id="panel-2">after</div>`, after)

	snap, err := f.panel.Snapshot(f.ctx)
	require.NoError(t, err)
	assert.Less(t, strings.Index(snap, "panel-0"), strings.Index(snap, "panel-1"))
	assert.Less(t, strings.Index(snap, "panel-1"), strings.Index(snap, "panel-2"))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, [][]string{{"panel-1"}}, patched)
}

func TestBusyGuard_OneExecuteInFlight(t *testing.T) {
	f := newFixture(t, true)

	require.NoError(t, f.panel.Click(f.ctx, "#go"))
	require.NoError(t, f.panel.Click(f.ctx, "#go"))

	sent := f.waitSent(t, 1)
	assert.JSONEq(t, `{"vm":"lights","func":"set","args":{"room":"kitchen","lamps":["a"]}}`, sent[0])
	assert.True(t, f.busy(t))

	f.respond(t, `{"_error": ""}`)
	assert.False(t, f.busy(t))

	require.NoError(t, f.panel.Click(f.ctx, "#go"))
	f.waitSent(t, 2)
}

func TestConfirm(t *testing.T) {
	f := newFixture(t, true)

	f.pres.mu.Lock()
	f.pres.confirm = false
	f.pres.mu.Unlock()
	require.NoError(t, f.panel.Click(f.ctx, "#off"))
	f.sync(t)
	assert.Empty(t, f.conn.Sent())
	assert.False(t, f.busy(t))

	f.pres.mu.Lock()
	f.pres.confirm = true
	f.pres.mu.Unlock()
	require.NoError(t, f.panel.Click(f.ctx, "#off"))
	sent := f.waitSent(t, 1)
	assert.Contains(t, sent[0], `"func":"off"`)

	f.pres.mu.Lock()
	defer f.pres.mu.Unlock()
	assert.Equal(t, []string{"Really?", "Really?"}, f.pres.prompts)
}

func TestInput_Debounced(t *testing.T) {
	f := newFixture(t, true)

	word := "kitchenlit"
	for i := 1; i <= len(word); i++ {
		require.NoError(t, f.panel.Input(f.ctx, "#search", word[:i]))
		f.clock.Add(100 * time.Millisecond)
	}
	f.sync(t)
	assert.Empty(t, f.conn.Sent())

	f.clock.Add(300 * time.Millisecond)
	sent := f.waitSent(t, 1)
	assert.JSONEq(t, `{"vm":"search","func":"ctl","args":{"q":"kitchenlit"}}`, sent[0])

	// The window has closed; nothing else is pending.
	f.clock.Add(time.Second)
	f.sync(t)
	assert.Len(t, f.conn.Sent(), 1)
}

func TestInput_DisabledDropped(t *testing.T) {
	f := newFixture(t, true)
	require.NoError(t, f.panel.Click(f.ctx, "#go"))
	f.waitSent(t, 1)

	require.NoError(t, f.panel.Input(f.ctx, "#search", "ignored"))
	f.clock.Add(time.Second)
	f.sync(t)

	got, err := f.panel.Region(f.ctx, "search")
	require.NoError(t, err)
	assert.Contains(t, got, `value=""`)
	assert.Len(t, f.conn.Sent(), 1)
}

func TestNotification_ShownOnce(t *testing.T) {
	f := newFixture(t, true)

	f.respond(t, `{"_error": "<div class='toast' data-alert='Lamp unreachable'></div>"}`)
	f.respond(t, `{"panel-1": "<div id='panel-1'>x</div>", "_error": ""}`)

	assert.Equal(t, []string{"Lamp unreachable"}, f.pres.Alerts())
	snap, err := f.panel.Snapshot(f.ctx)
	require.NoError(t, err)
	assert.NotContains(t, snap, "data-alert")
}

func TestNotification_InPageAtStart(t *testing.T) {
	doc, err := dom.Parse(`<html><body><p data-alert="Welcome"></p><p data-alert=""></p></body></html>`)
	require.NoError(t, err)
	pres := &fakePresenter{}
	p := New(doc, &fakeConn{}, Options{Clock: clock.NewMock(), Presenter: pres})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)

	require.NoError(t, p.Loop().Do(ctx, func() {}))
	assert.Equal(t, []string{"Welcome"}, pres.Alerts())
}

func TestAutoUpdate_FiresOnceAndRearms(t *testing.T) {
	f := newFixture(t, true)
	clockRegion := `{"clock": "<div id='clock'><span data-autoupdate='2000' data-func='start/clock'>12:00</span></div>"}`

	f.respond(t, clockRegion)
	// A second patch before the timer fires must not arm a second timer.
	f.respond(t, clockRegion)

	f.clock.Add(1999 * time.Millisecond)
	f.sync(t)
	assert.Empty(t, f.conn.Sent())

	f.clock.Add(time.Millisecond)
	sent := f.waitSent(t, 1)
	assert.JSONEq(t, `{"vm":"start","func":"clock","args":{}}`, sent[0])

	f.clock.Add(5 * time.Second)
	f.sync(t)
	assert.Len(t, f.conn.Sent(), 1)

	f.respond(t, clockRegion)
	f.clock.Add(2 * time.Second)
	f.waitSent(t, 2)
}

func TestAutoUpdate_DroppedWhileBusyRearmsOnNextPatch(t *testing.T) {
	f := newFixture(t, true)
	clockRegion := `{"clock": "<div id='clock'><span data-autoupdate='2000' data-func='start/clock'>12:00</span></div>"}`
	armed := func() bool {
		var ok bool
		require.NoError(t, f.panel.Loop().Do(f.ctx, func() { ok = f.panel.armed["clock"] }))
		return ok
	}

	f.respond(t, clockRegion)
	require.True(t, armed())

	require.NoError(t, f.panel.Click(f.ctx, "#go"))
	f.waitSent(t, 1)
	require.True(t, f.busy(t))

	// The timer fires during the round-trip: nothing is sent and the region is no longer armed.
	f.clock.Add(2 * time.Second)
	require.Eventually(t, func() bool { return !armed() }, 2*time.Second, 5*time.Millisecond)
	f.sync(t)
	assert.Len(t, f.conn.Sent(), 1)

	f.clock.Add(10 * time.Second)
	f.sync(t)
	assert.Len(t, f.conn.Sent(), 1)

	// The in-flight response patches the region again, which re-arms it.
	f.respond(t, clockRegion)
	assert.False(t, f.busy(t))
	assert.True(t, armed())

	f.clock.Add(2 * time.Second)
	sent := f.waitSent(t, 2)
	assert.JSONEq(t, `{"vm":"start","func":"clock","args":{}}`, sent[1])
}

func TestAutoUpdate_ZeroDelay(t *testing.T) {
	f := newFixture(t, true)
	f.respond(t, `{"clock": "<div id='clock'><i data-autoupdate='0' data-func='start/tick'></i></div>"}`)
	f.clock.Add(0)
	sent := f.waitSent(t, 1)
	assert.Contains(t, sent[0], `"func":"tick"`)
}

func TestSubmit_DeferredUntilConnected(t *testing.T) {
	f := newFixture(t, false)

	require.NoError(t, f.panel.Click(f.ctx, "#go"))
	f.sync(t)
	assert.Empty(t, f.conn.Sent())

	f.conn.connect()
	f.waitSent(t, 1)

	// The deferred send is not repeated on a later connect.
	f.conn.connect()
	f.sync(t)
	assert.Len(t, f.conn.Sent(), 1)
}

func TestConnectionError_ReleasesGuard(t *testing.T) {
	f := newFixture(t, false)
	require.NoError(t, f.panel.Click(f.ctx, "#go"))
	assert.True(t, f.busy(t))

	f.panel.HandleConnectionError(errors.New("dial refused"))
	assert.False(t, f.busy(t))

	snap, err := f.panel.Snapshot(f.ctx)
	require.NoError(t, err)
	assert.NotContains(t, snap, "disabled")
}

func TestUpload_FilesInSelectionOrder(t *testing.T) {
	f := newFixture(t, true)
	require.NoError(t, f.panel.SelectFiles(f.ctx, "#pick",
		collect.MemFile{FileName: "a.txt", Data: []byte("alpha")},
		collect.MemFile{FileName: "b.txt", Data: []byte("beta")},
	))
	require.NoError(t, f.panel.Click(f.ctx, "#send"))

	sent := f.waitSent(t, 1)
	var payload struct {
		Args struct {
			Docs struct {
				Names []string `json:"names"`
				Bytes []string `json:"bytes"`
			} `json:"docs"`
		} `json:"args"`
	}
	require.NoError(t, json.Unmarshal([]byte(sent[0]), &payload))
	assert.Equal(t, []string{"a.txt", "b.txt"}, payload.Args.Docs.Names)
	require.Len(t, payload.Args.Docs.Bytes, 2)
	assert.Equal(t, "data:text/plain;base64,YWxwaGE=", payload.Args.Docs.Bytes[0])
	assert.Equal(t, "data:text/plain;base64,YmV0YQ==", payload.Args.Docs.Bytes[1])
}

type brokenFile struct{}

func (brokenFile) Name() string { return "broken.bin" }

func (brokenFile) Open() (io.ReadCloser, error) { return nil, errors.New("permission denied") }

func TestUpload_ReadFailureAbandonsCommand(t *testing.T) {
	f := newFixture(t, true)
	require.NoError(t, f.panel.SelectFiles(f.ctx, "#pick", brokenFile{}))
	require.NoError(t, f.panel.Click(f.ctx, "#send"))

	require.Eventually(t, func() bool { return len(f.pres.Alerts()) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Contains(t, f.pres.Alerts()[0], "broken.bin")
	assert.False(t, f.busy(t))
	assert.Empty(t, f.conn.Sent())
}

func TestInvertSelection(t *testing.T) {
	f := newFixture(t, true)
	require.NoError(t, f.panel.Click(f.ctx, "#invert"))

	got, err := f.panel.Region(f.ctx, "boxes")
	require.NoError(t, err)
	assert.Contains(t, got, `<input type="checkbox" name="x" value="1"/>`)
	assert.Contains(t, got, `<input type="checkbox" name="x" value="2" checked=""/>`)
	assert.Empty(t, f.conn.Sent())
}

func TestBringIntoView_AfterDelay(t *testing.T) {
	f := newFixture(t, true)
	require.NoError(t, f.panel.Click(f.ctx, "#jump"))

	f.clock.Add(999 * time.Millisecond)
	f.sync(t)
	assert.Empty(t, f.pres.Scrolls())

	f.clock.Add(time.Millisecond)
	require.Eventually(t, func() bool { return len(f.pres.Scrolls()) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"panel-2"}, f.pres.Scrolls())
}

func TestDetails(t *testing.T) {
	f := newFixture(t, true)
	require.NoError(t, f.panel.Click(f.ctx, "#info"))
	require.NoError(t, f.panel.Click(f.ctx, "#blank"))
	assert.Equal(t, []string{"Living room lamp, 40W"}, f.pres.Alerts())
}

func TestClick_UnknownSelector(t *testing.T) {
	f := newFixture(t, true)
	err := f.panel.Click(f.ctx, "#nope")
	require.Error(t, err)
}
