package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/homectlx/panel/internal/collect"
	"github.com/homectlx/panel/internal/panel"
)

const replHelp = `Commands:
  click <selector>             Click an element (#id or XPath)
  input <selector> <value>     Type a value into a control
  files <selector> <path...>   Select files in a file input
  show [id]                    Print a region, or the whole page
  busy                         Report whether a command is in flight
  help                         Show this help
  quit                         Leave
`

// runREPL reads commands until quit, EOF or ctx is done.
func runREPL(ctx context.Context, p *panel.Panel, in *lineReader, out *consolePresenter) {
	for ctx.Err() == nil {
		line, ok := in.ReadLine()
		if !ok {
			return
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "quit" || fields[0] == "exit" {
			return
		}
		if err := replCommand(ctx, p, fields, out); err != nil {
			out.printf("error: %v\n", err)
		}
	}
}

func replCommand(ctx context.Context, p *panel.Panel, fields []string, out *consolePresenter) error {
	switch fields[0] {
	case "click":
		if len(fields) != 2 {
			return fmt.Errorf("usage: click <selector>")
		}
		return p.Click(ctx, fields[1])
	case "input":
		if len(fields) < 2 {
			return fmt.Errorf("usage: input <selector> <value>")
		}
		return p.Input(ctx, fields[1], strings.Join(fields[2:], " "))
	case "files":
		if len(fields) < 2 {
			return fmt.Errorf("usage: files <selector> <path...>")
		}
		files := make([]collect.File, 0, len(fields)-2)
		for _, path := range fields[2:] {
			files = append(files, collect.OSFile(path))
		}
		return p.SelectFiles(ctx, fields[1], files...)
	case "show":
		var (
			markup string
			err    error
		)
		if len(fields) > 1 {
			markup, err = p.Region(ctx, strings.TrimPrefix(fields[1], "#"))
		} else {
			markup, err = p.Snapshot(ctx)
		}
		if err != nil {
			return err
		}
		out.printf("%s\n", markup)
		return nil
	case "busy":
		busy, err := p.Busy(ctx)
		if err != nil {
			return err
		}
		out.printf("busy: %t\n", busy)
		return nil
	case "help":
		out.printf("%s", replHelp)
		return nil
	default:
		return fmt.Errorf("unknown command %q (try help)", fields[0])
	}
}
