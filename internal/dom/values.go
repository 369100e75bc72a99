package dom

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// IsInputCapable reports whether n contributes a named value to a command.
func IsInputCapable(n *html.Node) bool {
	return IsTag(n, atom.Input) || IsTag(n, atom.Select) || IsTag(n, atom.Textarea)
}

// InputType returns the lower-cased type of an input ("text" when absent);
// select and textarea report their tag name.
func InputType(n *html.Node) string {
	switch {
	case IsTag(n, atom.Select):
		return "select"
	case IsTag(n, atom.Textarea):
		return "textarea"
	}
	t := strings.ToLower(strings.TrimSpace(Attr(n, "type")))
	if t == "" {
		return "text"
	}
	return t
}

// IsCheckbox reports whether n is a checkbox input.
func IsCheckbox(n *html.Node) bool {
	return IsTag(n, atom.Input) && InputType(n) == "checkbox"
}

// Value returns the current value of a form control.
func Value(n *html.Node) string {
	switch {
	case IsTag(n, atom.Textarea):
		return Text(n)
	case IsTag(n, atom.Select):
		opts := Descendants(n, func(c *html.Node) bool { return IsTag(c, atom.Option) })
		for _, o := range opts {
			if HasAttr(o, AttrSelected) {
				return optionValue(o)
			}
		}
		if len(opts) > 0 {
			return optionValue(opts[0])
		}
		return ""
	}
	if IsCheckbox(n) && !HasAttr(n, "value") {
		return "on"
	}
	return Attr(n, "value")
}

func optionValue(o *html.Node) string {
	if HasAttr(o, "value") {
		return Attr(o, "value")
	}
	return strings.TrimSpace(Text(o))
}

// SetValue updates the current value of a form control.
func SetValue(n *html.Node, v string) {
	switch {
	case IsTag(n, atom.Textarea):
		for c := n.FirstChild; c != nil; {
			next := c.NextSibling
			n.RemoveChild(c)
			c = next
		}
		n.AppendChild(&html.Node{Type: html.TextNode, Data: v})
	case IsTag(n, atom.Select):
		for _, o := range Descendants(n, func(c *html.Node) bool { return IsTag(c, atom.Option) }) {
			if optionValue(o) == v {
				SetAttr(o, AttrSelected, "")
			} else {
				RemoveAttr(o, AttrSelected)
			}
		}
	default:
		SetAttr(n, "value", v)
	}
}

// Checked reports whether a checkbox is checked.
func Checked(n *html.Node) bool { return HasAttr(n, AttrChecked) }

// SetChecked sets a checkbox's checked state.
func SetChecked(n *html.Node, checked bool) {
	if checked {
		SetAttr(n, AttrChecked, "")
	} else {
		RemoveAttr(n, AttrChecked)
	}
}

// Disabled reports whether a control is flagged inactive.
func Disabled(n *html.Node) bool { return HasAttr(n, AttrDisabled) }

// SetDisabled flags or unflags a control as inactive.
func SetDisabled(n *html.Node, disabled bool) {
	if disabled {
		SetAttr(n, AttrDisabled, "")
	} else {
		RemoveAttr(n, AttrDisabled)
	}
}

// IsExecute reports whether n is an execute-class control.
func IsExecute(n *html.Node) bool {
	return n != nil && n.Type == html.ElementNode && HasClass(n, ClassExecute)
}
