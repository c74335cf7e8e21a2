package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io/ioutil"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/abiosoft/ishell"
	"github.com/gorilla/websocket"
	"github.com/w1xm/rccar_interface/command"
	"github.com/w1xm/rccar_interface/drive"
	"github.com/w1xm/rccar_interface/internal/basicauth"
)

var (
	addr     = flag.String("addr", "localhost:8080", "address of a running car server")
	password = flag.String("password", "", "password for remote connections")
)

type client struct {
	conn   *websocket.Conn
	header http.Header
}

func (c *client) send(text string) error {
	return c.conn.WriteMessage(websocket.TextMessage, []byte(text))
}

func (c *client) status() (string, error) {
	req, err := http.NewRequest("GET", fmt.Sprintf("http://%s/api/status", *addr), nil)
	if err != nil {
		return "", err
	}
	req.Header = c.header
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("bad status code: %s\n%s", resp.Status, string(body))
	}
	var status struct{ Drive drive.Status }
	if err := json.Unmarshal(body, &status); err != nil {
		return "", err
	}
	d := status.Drive
	return fmt.Sprintf("preset %s (%d)  left %d  right %d", d.Preset, d.Magnitude, d.Left, d.Right), nil
}

// speedCommands maps preset names to their command words.
var speedCommands = map[string]string{
	"slow":   "slow-speed",
	"normal": "normal-speed",
	"fast":   "fast-speed",
}

func main() {
	flag.Parse()
	header := basicauth.Header(*password)
	conn, _, err := websocket.DefaultDialer.Dial(fmt.Sprintf("ws://%s/ws", *addr), header)
	if err != nil {
		log.Fatalf("connecting to %s: %v", *addr, err)
	}
	defer conn.Close()
	c := &client{conn: conn, header: header}

	shell := ishell.New()
	shell.Println("Car development shell")

	simple := func(name, text, help string) {
		shell.AddCmd(&ishell.Cmd{
			Name: name,
			Help: help,
			Func: func(ctx *ishell.Context) {
				if err := c.send(text); err != nil {
					ctx.Println(err)
				}
			},
		})
	}
	simple("up", "up", "drive forward at the current preset")
	simple("down", "down", "drive backward at the current preset")
	simple("left", "left", "pivot left")
	simple("right", "right", "pivot right")
	simple("stop", "stop", "brake both motors")

	shell.AddCmd(&ishell.Cmd{
		Name: "speed",
		Help: "speed <slow|normal|fast>",
		Func: func(ctx *ishell.Context) {
			if len(ctx.Args) != 1 {
				ctx.Println("usage: speed <slow|normal|fast>")
				return
			}
			text, ok := speedCommands[strings.ToLower(ctx.Args[0])]
			if !ok {
				ctx.Println("unknown preset", ctx.Args[0])
				return
			}
			if err := c.send(text); err != nil {
				ctx.Println(err)
			}
		},
	})
	shell.AddCmd(&ishell.Cmd{
		Name: "manual",
		Help: "manual <left> <right> (signed magnitudes)",
		Func: func(ctx *ishell.Context) {
			if len(ctx.Args) != 2 {
				ctx.Println("usage: manual <left> <right>")
				return
			}
			left, err := strconv.Atoi(ctx.Args[0])
			if err != nil {
				ctx.Println(err)
				return
			}
			right, err := strconv.Atoi(ctx.Args[1])
			if err != nil {
				ctx.Println(err)
				return
			}
			if err := c.send(command.ManualText(left, right)); err != nil {
				ctx.Println(err)
			}
		},
	})
	shell.AddCmd(&ishell.Cmd{
		Name: "send",
		Help: "send <text> (raw command, sent as-is)",
		Func: func(ctx *ishell.Context) {
			if err := c.send(strings.Join(ctx.Args, " ")); err != nil {
				ctx.Println(err)
			}
		},
	})
	shell.AddCmd(&ishell.Cmd{
		Name: "status",
		Help: "show preset and channel values",
		Func: func(ctx *ishell.Context) {
			s, err := c.status()
			if err != nil {
				ctx.Println(err)
				return
			}
			ctx.Println(s)
		},
	})
	shell.Start()
}
