package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"
)

// lineReader hands out input lines to whichever of the REPL or a
// confirmation prompt currently owns the terminal.
type lineReader struct {
	mu      sync.Mutex
	scanner *bufio.Scanner
}

func newLineReader(r io.Reader) *lineReader {
	return &lineReader{scanner: bufio.NewScanner(r)}
}

// ReadLine returns the next line without its newline; ok is false at EOF.
func (r *lineReader) ReadLine() (line string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.scanner.Scan() {
		return "", false
	}
	return r.scanner.Text(), true
}

// consolePresenter shows alerts and prompts on a terminal.
type consolePresenter struct {
	mu  sync.Mutex
	out io.Writer
	in  *lineReader
}

func (c *consolePresenter) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

func (c *consolePresenter) Alert(msg string) {
	c.printf("[alert] %s\n", msg)
}

// Confirm asks a yes/no question; anything but y or yes declines.
func (c *consolePresenter) Confirm(msg string) bool {
	c.printf("[confirm] %s [y/N]: ", msg)
	line, ok := c.in.ReadLine()
	if !ok {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

func (c *consolePresenter) ScrollIntoView(id string) {
	c.printf("[scroll] #%s\n", id)
}
