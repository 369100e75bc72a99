// Command wsclient is a raw protocol probe for HOMEctlx servers: it sends a
// single execute message and prints every frame it receives.
// Usage: go run ./cmd/wsclient ws://127.0.0.1:5000/ws lights/status room=kitchen
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/homectlx/panel/internal/protocol"
)

func main() {
	url := "ws://127.0.0.1:5000/ws"
	if len(os.Args) > 1 {
		url = os.Args[1]
	}
	funcPath := "start/ctl"
	if len(os.Args) > 2 {
		funcPath = os.Args[2]
	}

	module, operation, err := protocol.ParseFunctionPath(funcPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Bad function path: %v\n", err)
		os.Exit(1)
	}
	args := protocol.NewArgMap()
	for _, pair := range os.Args[min(len(os.Args), 3):] {
		k, v, _ := strings.Cut(pair, "=")
		args.SetScalar(k, v)
	}

	fmt.Printf("Connecting to %s...\n", url)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	cmd := protocol.NewCommand(module, operation, args)
	frame, err := protocol.Encode(protocol.MessageTypeExecute, cmd.Payload())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode: %v\n", err)
		os.Exit(1)
	}
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to send: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Sent %s\n", frame)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	done := make(chan struct{})
	messageCount := 0

	go func() {
		defer close(done)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					fmt.Printf("Read error: %v\n", err)
				}
				return
			}

			messageCount++

			msg, err := protocol.Decode(data)
			if err != nil {
				fmt.Printf("[%d] Raw: %s\n", messageCount, string(data))
				continue
			}
			fmt.Printf("[%d] type=%s\n", messageCount, msg.Type)

			if msg.Type != protocol.MessageTypeResponse {
				continue
			}
			set, err := protocol.DecodeResponse(msg.Payload)
			if err != nil {
				var pretty map[string]any
				json.Unmarshal(msg.Payload, &pretty)
				fmt.Printf("  undecodable payload: %v\n", pretty)
				continue
			}
			for _, f := range set {
				fmt.Printf("  %s: %q\n", f.ID, f.Markup)
			}
		}
	}()

	select {
	case <-done:
		fmt.Println("Connection closed")
	case <-interrupt:
		fmt.Println("Interrupted")
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		select {
		case <-done:
		case <-time.After(time.Second):
		}
	}

	fmt.Printf("Total messages received: %d\n", messageCount)
}
