// Package dom holds the panel's live tree. It wraps golang.org/x/net/html
// nodes, names the attribute contract shared with the server-rendered
// markup, and applies fragment sets to the tree.
package dom

import (
	"fmt"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	apperrors "github.com/homectlx/panel/internal/errors"
)

// Attribute and class names produced by the server templates.
const (
	AttrFunc         = "data-func"
	AttrConfirm      = "data-confirm"
	AttrParam        = "data-param"
	AttrValue        = "data-value"
	AttrAutoUpdate   = "data-autoupdate"
	AttrAlert        = "data-alert"
	AttrDetails      = "data-details"
	AttrScrollTarget = "data-scroll-target"
	AttrDisabled     = "disabled"
	AttrChecked      = "checked"
	AttrSelected     = "selected"

	ClassExecute         = "execute"
	ClassInvertSelection = "invert-selection"
	ClassBringIntoView   = "bring-into-view"
	ClassFieldset        = "fieldset"
)

// Document is the panel tree.
type Document struct {
	root *html.Node
}

// Parse builds a Document from a full page.
func Parse(markup string) (*Document, error) {
	root, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDOMParseFailed, "page markup could not be parsed", err)
	}
	return &Document{root: root}, nil
}

// Root returns the document node.
func (d *Document) Root() *html.Node { return d.root }

// Body returns the body element. html.Parse always synthesizes one.
func (d *Document) Body() *html.Node {
	return findFirst(d.root, func(n *html.Node) bool { return n.Type == html.ElementNode && n.DataAtom == atom.Body })
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	return &Document{root: cloneNode(d.root)}
}

// Render serializes the whole document.
func (d *Document) Render() string {
	var sb strings.Builder
	if err := html.Render(&sb, d.root); err != nil {
		return ""
	}
	return sb.String()
}

// ByID returns the first element with the given id, or nil.
func (d *Document) ByID(id string) *html.Node {
	if id == "" {
		return nil
	}
	return findFirst(d.root, func(n *html.Node) bool {
		return n.Type == html.ElementNode && Attr(n, "id") == id
	})
}

// Contains reports whether n is attached to this document.
func (d *Document) Contains(n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p == d.root {
			return true
		}
	}
	return false
}

// Query evaluates an XPath expression against the document.
func (d *Document) Query(expr string) ([]*html.Node, error) {
	return Query(d.root, expr)
}

// Select resolves "#id" or an XPath expression to its first match.
func (d *Document) Select(selector string) (*html.Node, error) {
	if id, ok := strings.CutPrefix(selector, "#"); ok {
		if n := d.ByID(id); n != nil {
			return n, nil
		}
		return nil, apperrors.ElementNotFound(selector)
	}
	nodes, err := d.Query(selector)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, apperrors.ElementNotFound(selector)
	}
	return nodes[0], nil
}

// Query evaluates an XPath expression below top.
func Query(top *html.Node, expr string) ([]*html.Node, error) {
	nodes, err := htmlquery.QueryAll(top, expr)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDOMInvalidSelector, fmt.Sprintf("invalid selector %q", expr), err)
	}
	return nodes, nil
}

// WithClass returns an XPath matching elements that carry class.
func WithClass(class string) string {
	return fmt.Sprintf("//*[contains(concat(' ', normalize-space(@class), ' '), ' %s ')]", class)
}

// WithAttr returns an XPath matching elements that carry attr.
func WithAttr(attr string) string {
	return fmt.Sprintf("//*[@%s]", attr)
}

// Attr returns the value of key on n, or "".
func Attr(n *html.Node, key string) string {
	if n == nil {
		return ""
	}
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val
		}
	}
	return ""
}

// HasAttr reports whether key is present on n.
func HasAttr(n *html.Node, key string) bool {
	if n == nil {
		return false
	}
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return true
		}
	}
	return false
}

// SetAttr sets or adds key on n.
func SetAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// RemoveAttr deletes key from n.
func RemoveAttr(n *html.Node, key string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}

// HasClass reports whether class is one of n's classes.
func HasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(Attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

// IsTag reports whether n is an element with the given atom.
func IsTag(n *html.Node, a atom.Atom) bool {
	return n != nil && n.Type == html.ElementNode && n.DataAtom == a
}

// Closest returns n or its nearest ancestor matching pred.
func Closest(n *html.Node, pred func(*html.Node) bool) *html.Node {
	for p := n; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && pred(p) {
			return p
		}
	}
	return nil
}

// Descendants returns the element descendants of n matching pred, in document order.
func Descendants(n *html.Node, pred func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		for ch := c.FirstChild; ch != nil; ch = ch.NextSibling {
			if ch.Type == html.ElementNode && pred(ch) {
				out = append(out, ch)
			}
			walk(ch)
		}
	}
	walk(n)
	return out
}

// Text returns the text content of n.
func Text(n *html.Node) string {
	return htmlquery.InnerText(n)
}

// OuterHTML renders n including its own tag.
func OuterHTML(n *html.Node) string {
	return htmlquery.OutputHTML(n, true)
}

// Remove detaches n from its parent.
func Remove(n *html.Node) {
	if n != nil && n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

func findFirst(n *html.Node, pred func(*html.Node) bool) *html.Node {
	if pred(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, pred); found != nil {
			return found
		}
	}
	return nil
}

func cloneNode(n *html.Node) *html.Node {
	if n == nil {
		return nil
	}
	clone := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
		Attr:      make([]html.Attribute, len(n.Attr)),
	}
	copy(clone.Attr, n.Attr)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		clone.AppendChild(cloneNode(c))
	}
	return clone
}
