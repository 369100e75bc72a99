package panel

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/homectlx/panel/internal/collect"
	"github.com/homectlx/panel/internal/dom"
)

// Click delivers a click on the element matched by selector ("#id" or XPath).
func (p *Panel) Click(ctx context.Context, selector string) error {
	return p.onElement(ctx, selector, p.click)
}

// Input sets the value of a control and delivers an input event. Input to a
// disabled control is dropped.
func (p *Panel) Input(ctx context.Context, selector, value string) error {
	return p.onElement(ctx, selector, func(n *html.Node) {
		if dom.Disabled(n) {
			p.log.Debug("input to disabled control dropped", zap.String("selector", selector))
			return
		}
		if dom.IsCheckbox(n) {
			dom.SetChecked(n, value != "" && value != "false" && value != "0")
		} else {
			dom.SetValue(n, value)
		}
		p.input(n)
	})
}

// SelectFiles replaces the file selection of a file input.
func (p *Panel) SelectFiles(ctx context.Context, selector string, files ...collect.File) error {
	return p.onElement(ctx, selector, func(n *html.Node) {
		if dom.InputType(n) != "file" {
			p.log.Warn("not a file input", zap.String("selector", selector))
			return
		}
		p.selections[n] = files
	})
}

func (p *Panel) onElement(ctx context.Context, selector string, fn func(*html.Node)) error {
	var selErr error
	err := p.loop.Do(ctx, func() {
		n, err := p.doc.Select(selector)
		if err != nil {
			selErr = err
			return
		}
		fn(n)
	})
	if err != nil {
		return err
	}
	return selErr
}

func (p *Panel) click(n *html.Node) {
	if dom.Disabled(n) {
		return
	}
	if dom.IsCheckbox(n) {
		dom.SetChecked(n, !dom.Checked(n))
	}
	if dom.HasClass(n, dom.ClassInvertSelection) {
		invertSelection(n)
	}
	if dom.HasClass(n, dom.ClassBringIntoView) {
		p.bringIntoView(n)
	}

	if exec := dom.Closest(n, dom.IsExecute); exec != nil {
		if dom.Disabled(exec) {
			return
		}
		if prompt := dom.Attr(exec, dom.AttrConfirm); prompt != "" && !p.presenter.Confirm(prompt) {
			p.log.Debug("confirmation declined", zap.String("func", dom.Attr(exec, dom.AttrFunc)))
			return
		}
		p.dispatch(exec)
		return
	}

	if d := dom.Closest(n, func(c *html.Node) bool { return dom.HasAttr(c, dom.AttrDetails) }); d != nil {
		if text := strings.TrimSpace(dom.Attr(d, dom.AttrDetails)); text != "" {
			p.presenter.Alert(text)
		}
	}
}

// input debounces value changes on execute-class inputs through one shared
// timer; the dispatch reads the tree as it stands when the window closes.
func (p *Panel) input(n *html.Node) {
	if !dom.IsExecute(n) || !dom.IsInputCapable(n) {
		return
	}
	p.debounce.Trigger(func() {
		if !p.doc.Contains(n) {
			p.log.Debug("debounced control was replaced")
			return
		}
		p.dispatch(n)
	})
}

// invertSelection toggles every checkbox sharing the control's parent.
func invertSelection(n *html.Node) {
	if n.Parent == nil {
		return
	}
	for c := n.Parent.FirstChild; c != nil; c = c.NextSibling {
		if c == n || !dom.IsTag(c, atom.Input) || !dom.IsCheckbox(c) {
			continue
		}
		dom.SetChecked(c, !dom.Checked(c))
	}
}

// bringIntoView scrolls the named container after the scroll delay.
func (p *Panel) bringIntoView(n *html.Node) {
	target := dom.Attr(n, dom.AttrScrollTarget)
	if target == "" {
		return
	}
	p.loop.AfterFunc(p.scrollDelay, func() {
		p.presenter.ScrollIntoView(target)
	})
}
