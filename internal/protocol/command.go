package protocol

import (
	"net/url"
	"strings"

	"github.com/google/uuid"

	apperrors "github.com/homectlx/panel/internal/errors"
)

// DefaultOperation is used when a function path names only the module.
const DefaultOperation = "ctl"

// DefaultModule is the landing view-model; the server redirects "/" to it.
const DefaultModule = "start"

// Command is one remote call. ID only correlates log lines and is never sent.
type Command struct {
	ID        string
	Module    string
	Operation string
	Args      *ArgMap
}

// ExecutePayload is the wire shape of an execute message.
type ExecutePayload struct {
	VM   string  `json:"vm"`
	Func string  `json:"func"`
	Args *ArgMap `json:"args"`
}

// NewCommand builds a command, defaulting the operation and the argument map.
func NewCommand(module, operation string, args *ArgMap) *Command {
	if args == nil {
		args = NewArgMap()
	}
	return &Command{
		ID:        uuid.New().String(),
		Module:    module,
		Operation: normalizeOperation(operation),
		Args:      args,
	}
}

// Payload returns the execute payload for this command.
func (c *Command) Payload() ExecutePayload {
	return ExecutePayload{VM: c.Module, Func: c.Operation, Args: c.Args}
}

// String renders the command as its function path.
func (c *Command) String() string {
	return c.Module + "/" + c.Operation
}

func normalizeOperation(op string) string {
	switch op {
	case "", "undefined":
		return DefaultOperation
	}
	return op
}

// ParseFunctionPath splits "module" or "module/operation".
// Only the first two segments are significant.
func ParseFunctionPath(path string) (module, operation string, err error) {
	path = strings.TrimSpace(path)
	module, operation, _ = strings.Cut(path, "/")
	operation, _, _ = strings.Cut(operation, "/")
	if module == "" {
		return "", "", apperrors.InvalidFunctionPath(path)
	}
	return module, normalizeOperation(operation), nil
}

// FromURL derives the implicit initial command from a page URL: path
// segments 1 and 2 name the module and operation, query parameters become
// scalar arguments in their textual order (a repeated key keeps its last value).
func FromURL(u *url.URL) *Command {
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	module, operation := DefaultModule, DefaultOperation
	if len(segments) > 0 && segments[0] != "" {
		module = segments[0]
		operation = ""
		if len(segments) > 1 {
			operation = segments[1]
		}
	}
	return NewCommand(module, operation, QueryArgs(u.RawQuery))
}

// QueryArgs parses a raw query string into an ArgMap, keeping key order.
// Malformed pairs are skipped.
func QueryArgs(rawQuery string) *ArgMap {
	args := NewArgMap()
	for _, pair := range strings.Split(rawQuery, "&") {
		if pair == "" {
			continue
		}
		k, v, _ := strings.Cut(pair, "=")
		key, err := url.QueryUnescape(k)
		if err != nil || key == "" {
			continue
		}
		val, err := url.QueryUnescape(v)
		if err != nil {
			continue
		}
		args.SetScalar(key, val)
	}
	return args
}
