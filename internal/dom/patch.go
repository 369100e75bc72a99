package dom

import (
	"strings"

	"golang.org/x/net/html"

	apperrors "github.com/homectlx/panel/internal/errors"
	"github.com/homectlx/panel/internal/protocol"
)

// Region is a freshly inserted replacement for one region id.
type Region struct {
	ID    string
	Nodes []*html.Node
}

// PatchResult describes what a fragment set did to a document.
type PatchResult struct {
	// Regions lists the replaced regions in fragment order.
	Regions []Region
	// Appended holds nodes added under the body for the notification key.
	Appended []*html.Node
	// Missing lists ids that had no live element and were skipped.
	Missing []string
}

// Patch is the pure form of Apply: it returns a patched copy and leaves doc untouched.
func Patch(doc *Document, set protocol.FragmentSet) (*Document, PatchResult, error) {
	next := doc.Clone()
	res, err := Apply(next, set)
	return next, res, err
}

// Apply patches doc in place. Each fragment replaces the element carrying
// its id, tag included; the notification fragment is appended to the body.
// Fragments are applied in order and a parse failure stops the pass.
func Apply(doc *Document, set protocol.FragmentSet) (PatchResult, error) {
	var res PatchResult
	for _, f := range set {
		if f.IsNotification() {
			if strings.TrimSpace(f.Markup) == "" {
				continue
			}
			body := doc.Body()
			nodes, err := parseFragment(f.Markup, body)
			if err != nil {
				return res, err
			}
			for _, n := range nodes {
				body.AppendChild(n)
			}
			res.Appended = append(res.Appended, nodes...)
			continue
		}

		target := doc.ByID(f.ID)
		if target == nil || target.Parent == nil {
			res.Missing = append(res.Missing, f.ID)
			continue
		}
		nodes, err := replaceElement(target, f.Markup)
		if err != nil {
			return res, err
		}
		res.Regions = append(res.Regions, Region{ID: f.ID, Nodes: nodes})
	}
	return res, nil
}

func replaceElement(target *html.Node, markup string) ([]*html.Node, error) {
	parent := target.Parent
	context := parent
	if context.Type != html.ElementNode {
		context = target
	}
	nodes, err := parseFragment(markup, context)
	if err != nil {
		return nil, err
	}
	for _, n := range nodes {
		parent.InsertBefore(n, target)
	}
	parent.RemoveChild(target)
	return nodes, nil
}

func parseFragment(markup string, context *html.Node) ([]*html.Node, error) {
	nodes, err := html.ParseFragment(strings.NewReader(markup), context)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDOMParseFailed, "fragment markup could not be parsed", err)
	}
	return nodes, nil
}

// Find returns the element nodes in nodes (and below) matching pred, in order.
func Find(nodes []*html.Node, pred func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	for _, n := range nodes {
		if n.Type == html.ElementNode && pred(n) {
			out = append(out, n)
		}
		out = append(out, Descendants(n, pred)...)
	}
	return out
}
