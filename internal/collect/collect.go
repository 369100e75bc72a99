// Package collect gathers the arguments of a command from the form-like
// containers around the element that triggered it.
package collect

import (
	"context"
	"sort"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/homectlx/panel/internal/dom"
	"github.com/homectlx/panel/internal/logging"
	"github.com/homectlx/panel/internal/protocol"
)

// FileSource reports the files currently selected in a file input.
type FileSource interface {
	Files(input *html.Node) []File
}

// FileSourceFunc adapts a function to FileSource.
type FileSourceFunc func(input *html.Node) []File

// Files calls f.
func (f FileSourceFunc) Files(input *html.Node) []File { return f(input) }

// Result is the outcome of one collection.
type Result struct {
	Args    *protocol.ArgMap
	Uploads *Uploads
}

// Collector builds argument maps.
type Collector struct {
	files FileSource
	log   *zap.Logger
}

// New creates a Collector. files may be nil when no file inputs are used.
func New(files FileSource, logger *zap.Logger) *Collector {
	return &Collector{files: files, log: logging.OrNop(logger).Named("collect")}
}

// Scopes returns the containers scanned for trigger, in merge order:
// the nearest form, the nearest fieldset element, and the nearest element
// marked with the "fieldset" class. Duplicates are dropped.
func Scopes(trigger *html.Node) []*html.Node {
	candidates := []*html.Node{
		dom.Closest(trigger, func(n *html.Node) bool { return dom.IsTag(n, atom.Form) }),
		dom.Closest(trigger, func(n *html.Node) bool { return dom.IsTag(n, atom.Fieldset) }),
		dom.Closest(trigger, func(n *html.Node) bool { return dom.HasClass(n, dom.ClassFieldset) }),
	}
	var scopes []*html.Node
	seen := make(map[*html.Node]bool)
	for _, c := range candidates {
		if c == nil || seen[c] {
			continue
		}
		seen[c] = true
		scopes = append(scopes, c)
	}
	return scopes
}

// Collect scans the scopes of trigger and returns the merged arguments.
// File reads continue in the background; the caller waits on Uploads.
//
// Scalars are merged in scope order, so a later scope replaces an earlier
// value. Checkbox lists hold every checked box found in any scope, once
// each, in document order.
func (c *Collector) Collect(ctx context.Context, trigger *html.Node) *Result {
	uploads := newUploads(ctx)
	args := protocol.NewArgMap()
	bundles := make(map[*html.Node]*protocol.FileBundle)
	boxes := newCheckboxes()

	for _, scope := range Scopes(trigger) {
		args.Merge(c.scan(scope, uploads, bundles, boxes))
	}
	boxes.fill(args, trigger)

	if param := dom.Attr(trigger, dom.AttrParam); param != "" {
		args.SetScalar(param, dom.Attr(trigger, dom.AttrValue))
	}

	uploads.seal()
	if uploads.started {
		go func() {
			<-uploads.Done()
			if err := uploads.Err(); err != nil {
				c.log.Warn("upload read failed", zap.Error(err))
				return
			}
			c.log.Debug("uploads read", zap.String("size", humanize.Bytes(uint64(uploads.Bytes()))))
		}()
	}
	return &Result{Args: args, Uploads: uploads}
}

func (c *Collector) scan(scope *html.Node, uploads *Uploads, bundles map[*html.Node]*protocol.FileBundle, boxes *checkboxes) *protocol.ArgMap {
	args := protocol.NewArgMap()
	for _, n := range dom.Descendants(scope, dom.IsInputCapable) {
		name := dom.Attr(n, "name")
		if name == "" || name == "undefined" {
			continue
		}
		switch dom.InputType(n) {
		case "checkbox":
			args.EnsureList(name)
			boxes.add(name, n)
		case "file":
			if b, ok := bundles[n]; ok {
				args.SetFiles(name, b)
				continue
			}
			b := c.readFiles(n, uploads)
			bundles[n] = b
			args.SetFiles(name, b)
		default:
			args.SetScalar(name, dom.Value(n))
		}
	}
	return args
}

// checkboxes groups checkbox nodes by name across scopes. A box inside
// several nested scopes is recorded once.
type checkboxes struct {
	names  []string
	byName map[string][]*html.Node
	seen   map[*html.Node]bool
}

func newCheckboxes() *checkboxes {
	return &checkboxes{
		byName: make(map[string][]*html.Node),
		seen:   make(map[*html.Node]bool),
	}
}

func (b *checkboxes) add(name string, n *html.Node) {
	if b.seen[n] {
		return
	}
	b.seen[n] = true
	if _, ok := b.byName[name]; !ok {
		b.names = append(b.names, name)
	}
	b.byName[name] = append(b.byName[name], n)
}

// fill replaces each checkbox list in args with the checked values of its
// group. A name that a later scope turned into a scalar keeps the scalar.
func (b *checkboxes) fill(args *protocol.ArgMap, trigger *html.Node) {
	if len(b.names) == 0 {
		return
	}
	order := documentOrder(trigger)
	for _, name := range b.names {
		if v, ok := args.Get(name); !ok || v.Kind != protocol.KindList {
			continue
		}
		nodes := b.byName[name]
		sort.SliceStable(nodes, func(i, j int) bool { return order[nodes[i]] < order[nodes[j]] })
		values := []string{}
		for _, n := range nodes {
			if dom.Checked(n) {
				values = append(values, dom.Value(n))
			}
		}
		args.Set(name, protocol.List(values...))
	}
}

// documentOrder indexes every checkbox in the tree that holds n.
func documentOrder(n *html.Node) map[*html.Node]int {
	root := n
	for root.Parent != nil {
		root = root.Parent
	}
	order := make(map[*html.Node]int)
	for i, box := range dom.Descendants(root, dom.IsCheckbox) {
		order[box] = i
	}
	return order
}

func (c *Collector) readFiles(input *html.Node, uploads *Uploads) *protocol.FileBundle {
	var files []File
	if c.files != nil {
		files = c.files.Files(input)
	}
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Name()
	}
	bundle := protocol.NewFileBundle(names)
	for i, f := range files {
		uploads.read(bundle, i, f)
	}
	return bundle
}
