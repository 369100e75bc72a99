package dom

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	apperrors "github.com/homectlx/panel/internal/errors"
	"github.com/homectlx/panel/internal/protocol"
)

const page = `<!DOCTYPE html><html><body>
<div id="panel-0">zero</div>
<div id="panel-1">old</div>
<div id="panel-2">two</div>
<form id="f">
  <input name="title" value="hi">
  <input type="checkbox" name="rooms" value="kitchen" checked>
  <textarea name="note">line</textarea>
  <select name="mode"><option value="a">A</option><option selected>B</option></select>
  <button class="execute primary" data-func="lights/set">go</button>
</form>
</body></html>`

func mustParse(t *testing.T, markup string) *Document {
	t.Helper()
	doc, err := Parse(markup)
	require.NoError(t, err)
	return doc
}

func TestSelect(t *testing.T) {
	doc := mustParse(t, page)

	n, err := doc.Select("#panel-1")
	require.NoError(t, err)
	assert.Equal(t, "old", Text(n))

	n, err = doc.Select(WithClass(ClassExecute))
	require.NoError(t, err)
	assert.Equal(t, "lights/set", Attr(n, AttrFunc))
	assert.True(t, IsExecute(n))

	_, err = doc.Select("#nope")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeDOMElementNotFound))

	_, err = doc.Select("//*[")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeDOMInvalidSelector))
}

func TestValues(t *testing.T) {
	doc := mustParse(t, page)
	form := doc.ByID("f")
	controls := Descendants(form, IsInputCapable)
	require.Len(t, controls, 4)

	assert.Equal(t, "hi", Value(controls[0]))
	assert.True(t, IsCheckbox(controls[1]))
	assert.True(t, Checked(controls[1]))
	assert.Equal(t, "line", Value(controls[2]))
	assert.Equal(t, "textarea", InputType(controls[2]))
	assert.Equal(t, "B", Value(controls[3]))

	SetValue(controls[0], "changed")
	SetValue(controls[2], "new note")
	SetValue(controls[3], "a")
	SetChecked(controls[1], false)

	assert.Equal(t, "changed", Value(controls[0]))
	assert.Equal(t, "new note", Value(controls[2]))
	assert.Equal(t, "a", Value(controls[3]))
	assert.False(t, Checked(controls[1]))
}

func TestClosest(t *testing.T) {
	doc := mustParse(t, page)
	btn, err := doc.Select(WithClass(ClassExecute))
	require.NoError(t, err)

	form := Closest(btn, func(n *html.Node) bool { return Attr(n, "id") == "f" })
	assert.Equal(t, doc.ByID("f"), form)
	assert.Equal(t, btn, Closest(btn, IsExecute))
	assert.Nil(t, Closest(btn, func(n *html.Node) bool { return HasClass(n, "missing") }))
}

func TestApply_ReplacesInPlaceAndLeavesSiblings(t *testing.T) {
	doc := mustParse(t, page)
	sibling0 := doc.ByID("panel-0")
	sibling2 := doc.ByID("panel-2")

	res, err := Apply(doc, protocol.FragmentSet{{ID: "panel-1", Markup: "<div id='panel-1'>ok</div>"}})
	require.NoError(t, err)
	require.Len(t, res.Regions, 1)

	fresh := doc.ByID("panel-1")
	require.NotNil(t, fresh)
	assert.Equal(t, "ok", Text(fresh))
	assert.Same(t, sibling0, doc.ByID("panel-0"))
	assert.Same(t, sibling2, doc.ByID("panel-2"))
	assert.Same(t, fresh, sibling0.NextSibling.NextSibling)
	assert.Equal(t, 1, strings.Count(doc.Render(), `id="panel-1"`))
}

func TestApply_NotificationAppendedToBody(t *testing.T) {
	doc := mustParse(t, page)

	res, err := Apply(doc, protocol.FragmentSet{
		{ID: protocol.NotificationKey, Markup: `<div data-alert="saved"></div>`},
		{ID: "ghost", Markup: "<p id='ghost'></p>"},
	})
	require.NoError(t, err)
	require.Len(t, res.Appended, 1)
	assert.Equal(t, []string{"ghost"}, res.Missing)
	assert.Same(t, doc.Body(), res.Appended[0].Parent)
	assert.Same(t, doc.Body().LastChild, res.Appended[0])
}

func TestApply_BlankNotificationSkipped(t *testing.T) {
	doc := mustParse(t, page)
	before := doc.Render()

	res, err := Apply(doc, protocol.FragmentSet{{ID: protocol.NotificationKey, Markup: "  "}})
	require.NoError(t, err)
	assert.Empty(t, res.Appended)
	assert.Equal(t, before, doc.Render())
}

func TestPatch_IsPure(t *testing.T) {
	doc := mustParse(t, page)
	before := doc.Render()

	next, res, err := Patch(doc, protocol.FragmentSet{{ID: "panel-2", Markup: `<div id="panel-2" data-autoupdate="2000">t</div>`}})
	require.NoError(t, err)
	assert.Equal(t, before, doc.Render())
	assert.Contains(t, next.Render(), `data-autoupdate="2000"`)

	auto := Find(res.Regions[0].Nodes, func(n *html.Node) bool { return HasAttr(n, AttrAutoUpdate) })
	require.Len(t, auto, 1)
	assert.True(t, next.Contains(auto[0]))
	assert.False(t, doc.Contains(auto[0]))
}

func TestApply_MultipleTopLevelNodes(t *testing.T) {
	doc := mustParse(t, page)
	res, err := Apply(doc, protocol.FragmentSet{{ID: "panel-0", Markup: `<div id="panel-0">a</div><div id="extra">b</div>`}})
	require.NoError(t, err)
	require.Len(t, res.Regions[0].Nodes, 2)
	assert.NotNil(t, doc.ByID("extra"))
	assert.Equal(t, "extra", Attr(doc.ByID("panel-0").NextSibling, "id"))
}
