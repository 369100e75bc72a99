package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/homectlx/panel/internal/collect"
	apperrors "github.com/homectlx/panel/internal/errors"
	"github.com/homectlx/panel/internal/protocol"
)

const execHelp = `Usage: homectl-panel exec [options] <module[/operation]> [name=value ...]

Send one execute command and print the fragments of the response.
A value of the form @path uploads that file; repeat the name to send
several files, or a list of strings for non-file values.
`

// runExec implements "homectl-panel exec".
func runExec(args []string, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet("exec", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	var common commonFlags
	common.register(fs)
	timeout := fs.Duration("timeout", 15*time.Second, "Give up waiting for a response after this long")
	raw := fs.Bool("json", false, "Print the raw response payload")
	regions := fs.StringSlice("region", nil, "Print only these region ids (repeatable)")
	fs.Usage = func() { printFlagHelp(stderr, execHelp, fs) }

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 1
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return 1
	}

	module, operation, err := protocol.ParseFunctionPath(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	cmdArgs, err := parseArgs(fs.Args()[1:])
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	cfg, err := common.load(fs)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	cmd := protocol.NewCommand(module, operation, cmdArgs)
	mgr := newManager(cfg, logger)
	replies := make(chan []byte, 1)
	mgr.OnMessage(func(t protocol.MessageType, payload []byte) {
		if t != protocol.MessageTypeResponse {
			return
		}
		select {
		case replies <- append([]byte(nil), payload...):
		default:
		}
	})
	mgr.OnceConnected(func() {
		if err := mgr.Send(protocol.MessageTypeExecute, cmd.Payload()); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			cancel()
		}
	})

	runErr := make(chan error, 1)
	go func() { runErr <- mgr.Run(ctx) }()
	defer mgr.Close()

	select {
	case payload := <-replies:
		return printResponse(stdout, payload, *raw, *regions)
	case err := <-runErr:
		if err == nil || errors.Is(err, context.Canceled) {
			err = ctx.Err()
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	case <-ctx.Done():
		fmt.Fprintf(stderr, "Error: no response to %s within %s\n", cmd, *timeout)
		return 1
	}
}

// parseArgs turns name=value pairs into an argument map. Repeated names
// become a list; @path values become a file bundle.
func parseArgs(pairs []string) (*protocol.ArgMap, error) {
	values := make(map[string][]string)
	var order []string
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, apperrors.New(apperrors.CodeProtocolInvalidMessage, fmt.Sprintf("argument %q is not name=value", pair))
		}
		if _, seen := values[name]; !seen {
			order = append(order, name)
		}
		values[name] = append(values[name], value)
	}

	args := protocol.NewArgMap()
	for _, name := range order {
		vs := values[name]
		if strings.HasPrefix(vs[0], "@") {
			files := make([]collect.File, len(vs))
			for i, v := range vs {
				files[i] = collect.OSFile(strings.TrimPrefix(v, "@"))
			}
			bundle, err := readBundle(files)
			if err != nil {
				return nil, err
			}
			args.SetFiles(name, bundle)
			continue
		}
		if len(vs) == 1 {
			args.SetScalar(name, vs[0])
			continue
		}
		args.EnsureList(name)
		for _, v := range vs {
			args.AppendList(name, v)
		}
	}
	return args, nil
}

func readBundle(files []collect.File) (*protocol.FileBundle, error) {
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Name()
	}
	bundle := protocol.NewFileBundle(names)
	for i, f := range files {
		dataURL, _, err := collect.ReadDataURL(f)
		if err != nil {
			return nil, apperrors.UploadReadFailed(f.Name(), err)
		}
		bundle.Bytes[i] = dataURL
	}
	return bundle, nil
}

// printResponse prints each fragment under its region id. When regions is
// set only those are printed, in the order given, and a missing one fails.
func printResponse(w io.Writer, payload []byte, raw bool, regions []string) int {
	if raw {
		fmt.Fprintln(w, string(payload))
		return 0
	}
	set, err := protocol.DecodeResponse(payload)
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 1
	}
	if len(regions) == 0 {
		regions = set.IDs()
	}
	code := 0
	for _, id := range regions {
		markup, ok := set.Get(id)
		if !ok {
			fmt.Fprintf(w, "Error: region %q not in response\n", id)
			code = 1
			continue
		}
		if id == protocol.NotificationKey && strings.TrimSpace(markup) == "" {
			continue
		}
		fmt.Fprintf(w, "== %s ==\n%s\n", id, markup)
	}
	return code
}
