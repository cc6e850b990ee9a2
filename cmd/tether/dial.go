package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/QYUbit/Tether/pkg/endpoint"
	"github.com/QYUbit/Tether/pkg/transport"
)

type Dial struct {
	Common
	Name   string `short:"n" long:"name" description:"nickname to announce after connecting"`
	Secure bool   `long:"wss" description:"use wss when dialing a websocket relay"`
}

func (d *Dial) Execute(args []string) error {
	cfg, logger, flush, err := d.load()
	if err != nil {
		return err
	}
	defer flush()

	ec, err := cfg.Endpoint.Build(dialFactory(cfg, logger, d.Secure), logger)
	if err != nil {
		return err
	}
	if ec.PollTimeout == 0 {
		ec.PollTimeout = 50 * time.Millisecond
	}

	c, err := endpoint.NewClient(ec)
	if err != nil {
		return err
	}
	defer c.Close()

	done := false
	chat(c, d.Name, &done)

	ctx, stop := signalContext()
	defer stop()

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	err = c.Connect(dialCtx, 0)
	cancel()
	if err != nil {
		return err
	}

	lines := readLines()
	for !done {
		if err := c.Poll(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return c.DisconnectNow(0)
			}
			return err
		}

	drain:
		for {
			select {
			case line, ok := <-lines:
				if !ok {
					return c.DisconnectNow(0)
				}
				if err := command(c, line); err != nil {
					fmt.Fprintln(os.Stderr, "error:", err)
				}
			default:
				break drain
			}
		}
	}
	return nil
}

// chat registers the client side handlers. Server events are positional and
// bound to names by schemas.
func chat(c *endpoint.Client, nick string, done *bool) {
	c.SetSchema("welcome", "name", "online")
	c.SetSchema("chat", "from", "text")
	c.SetSchema("joined", "name")
	c.SetSchema("left", "name")
	c.SetSchema("renamed", "from", "to")

	c.HandleFunc(endpoint.EventConnect, func(any, *endpoint.Session) error {
		fmt.Println("* connected to", c.ServerAddress())
		if nick != "" {
			return c.Send("nick", []any{nick})
		}
		return nil
	})
	c.HandleFunc(endpoint.EventDisconnect, func(data any, _ *endpoint.Session) error {
		fmt.Println("* disconnected", data)
		*done = true
		return nil
	})
	c.HandleFunc("welcome", func(data any, _ *endpoint.Session) error {
		m, _ := data.(map[string]any)
		fmt.Printf("* you are %v, %v online\n", m["name"], m["online"])
		return nil
	})
	c.HandleFunc("chat", func(data any, _ *endpoint.Session) error {
		m, _ := data.(map[string]any)
		fmt.Printf("<%v> %v\n", m["from"], m["text"])
		return nil
	})
	c.HandleFunc("joined", func(data any, _ *endpoint.Session) error {
		m, _ := data.(map[string]any)
		fmt.Printf("* %v joined\n", m["name"])
		return nil
	})
	c.HandleFunc("left", func(data any, _ *endpoint.Session) error {
		m, _ := data.(map[string]any)
		fmt.Printf("* %v left\n", m["name"])
		return nil
	})
	c.HandleFunc("renamed", func(data any, _ *endpoint.Session) error {
		m, _ := data.(map[string]any)
		fmt.Printf("* %v is now %v\n", m["from"], m["to"])
		return nil
	})
	c.HandleFunc("pong", func(data any, _ *endpoint.Session) error {
		sent, ok := pingTime(data)
		if !ok {
			return fmt.Errorf("malformed pong %T", data)
		}
		fmt.Println("* rtt", time.Since(sent).Round(time.Microsecond))
		return nil
	})
}

// pingTime reads the timestamp echoed in a pong. CBOR decodes it as an
// integer, JSON as a float64.
func pingTime(data any) (time.Time, bool) {
	switch v := data.(type) {
	case int64:
		return time.UnixMicro(v), true
	case uint64:
		return time.UnixMicro(int64(v)), true
	case float64:
		return time.UnixMicro(int64(v)), true
	default:
		return time.Time{}, false
	}
}

// command sends one line of input. Lines starting with a slash are commands.
func command(c *endpoint.Client, line string) error {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return nil
	case line == "/quit":
		return c.Disconnect(0)
	case line == "/ping":
		c.SetMode(transport.Unreliable)
		return c.Send("ping", time.Now().UnixMicro())
	case strings.HasPrefix(line, "/nick "):
		return c.Send("nick", []any{strings.TrimPrefix(line, "/nick ")})
	case strings.HasPrefix(line, "/"):
		return fmt.Errorf("unknown command %q", line)
	default:
		return c.Send("chat", []any{line})
	}
}

func readLines() <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	return lines
}
