// Command chatc is a minimal terminal client for the chat server. It speaks
// the plain line protocol: everything the server sends is appended to the
// messages view, and each submitted input line is sent as-is, so nickname
// negotiation and room selection work through the same two views as chat.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"net"
	"strings"
	"time"

	"github.com/jroimartin/gocui"
)

const (
	msgView   = "messages"
	inputView = "input"
)

type client struct {
	gui  *gocui.Gui
	conn net.Conn
	addr string
}

func main() {
	addr := flag.String("addr", "localhost:42069", "chat server address")
	flag.Parse()

	conn, err := net.DialTimeout("tcp", *addr, 5*time.Second)
	if err != nil {
		log.Fatalf("could not connect to %s: %v", *addr, err)
	}
	defer conn.Close()

	g, err := gocui.NewGui(gocui.OutputNormal)
	if err != nil {
		log.Fatalf("could not init UI: %v", err)
	}
	defer g.Close()

	c := &client{gui: g, conn: conn, addr: *addr}

	g.SetManagerFunc(c.layout)
	g.Cursor = true

	if err := g.SetKeybinding("", gocui.KeyCtrlC, gocui.ModNone, c.quit); err != nil {
		log.Fatalf("keybinding: %v", err)
	}
	if err := g.SetKeybinding(inputView, gocui.KeyEnter, gocui.ModNone, c.submit); err != nil {
		log.Fatalf("keybinding: %v", err)
	}

	go c.readLoop()

	if err := g.MainLoop(); err != nil && err != gocui.ErrQuit {
		log.Fatalf("ui loop: %v", err)
	}
}

func (c *client) layout(g *gocui.Gui) error {
	maxX, maxY := g.Size()

	if v, err := g.SetView(msgView, 0, 0, maxX-1, maxY-4); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = fmt.Sprintf("PyChat (%s)", c.addr)
		v.Wrap = true
		v.Autoscroll = true
	}

	if v, err := g.SetView(inputView, 0, maxY-3, maxX-1, maxY-1); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Input (Enter to send, Ctrl-C to quit)"
		v.Editable = true
		v.Wrap = true
		if _, err := g.SetCurrentView(inputView); err != nil {
			return err
		}
	}

	return nil
}

// readLoop appends every server line to the messages view until the
// connection closes.
func (c *client) readLoop() {
	scanner := bufio.NewScanner(c.conn)
	for scanner.Scan() {
		line := scanner.Text()
		c.gui.Update(func(g *gocui.Gui) error {
			v, err := g.View(msgView)
			if err != nil {
				return err
			}
			fmt.Fprintln(v, line)
			return nil
		})
	}

	c.gui.Update(func(g *gocui.Gui) error {
		v, err := g.View(msgView)
		if err != nil {
			return err
		}
		fmt.Fprintln(v, "* Disconnected from server.")
		return nil
	})
}

func (c *client) submit(g *gocui.Gui, v *gocui.View) error {
	line := strings.TrimRight(v.Buffer(), "\n")
	v.Clear()
	if err := v.SetCursor(0, 0); err != nil {
		return err
	}

	if strings.TrimSpace(line) == "" {
		return nil
	}
	if _, err := c.conn.Write([]byte(line + "\n")); err != nil {
		return gocui.ErrQuit
	}
	if strings.TrimSpace(line) == "/quit" {
		return gocui.ErrQuit
	}
	return nil
}

func (c *client) quit(*gocui.Gui, *gocui.View) error {
	return gocui.ErrQuit
}
