package plugin

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"
)

// ServeFlag is passed to persistent plugins. A plugin started with it reads
// one JSON request per line on stdin and answers each with one JSON line.
const ServeFlag = "--serve"

// Conn keeps one persistent plugin process running and sends it requests in
// turn. The process is started on the first call and again after it exits or
// misses a reply deadline. It is safe for concurrent use.
type Conn struct {
	plugin  *Plugin
	timeout time.Duration

	mu      sync.Mutex
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	replies chan []byte
}

// Dial returns a Conn for p. Nothing is started until the first Call.
func Dial(p *Plugin, timeout time.Duration) *Conn {
	return &Conn{plugin: p, timeout: timeout}
}

// Call sends req and waits up to the timeout for the matching response.
func (c *Conn) Call(req *Request) (*Response, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	data = append(data, '\n')

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureStarted(); err != nil {
		return nil, err
	}

	if _, err := c.stdin.Write(data); err != nil {
		c.shutdown()
		return nil, fmt.Errorf("write request to %s: %w", c.plugin.Manifest.Name, err)
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case line, ok := <-c.replies:
		if !ok {
			c.shutdown()
			return nil, fmt.Errorf("plugin %s exited", c.plugin.Manifest.Name)
		}
		var resp Response
		if err := json.Unmarshal(line, &resp); err != nil {
			return nil, fmt.Errorf("parse plugin response: %w, stdout: %s", err, line)
		}
		return &resp, nil
	case <-timer.C:
		// A late reply would be read as the answer to the next request.
		c.shutdown()
		return nil, fmt.Errorf("%w after %s: %s", ErrTimeout, c.timeout, c.plugin.Manifest.Name)
	}
}

// Running reports whether the plugin process is up.
func (c *Conn) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cmd != nil
}

// Close stops the plugin process.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.shutdown()
}

func (c *Conn) ensureStarted() error {
	if c.cmd != nil {
		return nil
	}

	cmd := exec.Command(c.plugin.Executable, ServeFlag)
	cmd.Dir = c.plugin.Path
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start plugin %s: %w", c.plugin.Manifest.Name, err)
	}

	replies := make(chan []byte)
	go func() {
		defer close(replies)
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			replies <- append([]byte(nil), scanner.Bytes()...)
		}
	}()

	c.cmd = cmd
	c.stdin = stdin
	c.replies = replies
	return nil
}

func (c *Conn) shutdown() error {
	if c.cmd == nil {
		return nil
	}

	c.stdin.Close()
	c.cmd.Process.Kill()
	for range c.replies {
	}
	err := c.cmd.Wait()

	c.cmd = nil
	c.stdin = nil
	c.replies = nil

	// Killed is the normal way out.
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}
