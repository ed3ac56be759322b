// Command syncshell is an interactive playground for the synchronization
// engine: it links two Synchronizers over an in-memory pipe (or TCP),
// lets you create and mutate demo entities on side A, and shows the
// mirrors appearing on side B as you tick.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/abiosoft/ishell/v2"

	"github.com/Edgaru089/SFNUL/syncer"
	"github.com/Edgaru089/SFNUL/types/synced"
	"github.com/Edgaru089/SFNUL/types/transport"
)

type Config struct {
	Name           string `toml:"name"`
	StreamPeriodMS int64  `toml:"stream-period-ms"`
}

var (
	programLevel = new(slog.LevelVar) // Info by default

	cfg = Config{Name: "syncshell", StreamPeriodMS: 100}

	sctx *synced.Context

	syncA *syncer.Synchronizer
	syncB *syncer.Synchronizer

	entities map[string]*Entity
	mirrors  map[synced.ID]*Entity
)

// Entity is the demo replicated type: one field per synchronization
// policy.
type Entity struct {
	Obj *synced.Object

	Name    *synced.Field[string]  // Static: snapshot only
	Score   *synced.Field[int64]   // Dynamic: sent while dirty
	Heading *synced.Field[float64] // Stream: sent every stream period
}

func entityFields(o *synced.Object) *Entity {
	return &Entity{
		Obj: o,

		Name:    synced.NewField(o, synced.Static, ""),
		Score:   synced.NewField(o, synced.Dynamic, int64(0)),
		Heading: synced.NewField(o, synced.Stream, 0.0),
	}
}

func main() {
	configPath := flag.String("config", "", "path to TOML config")
	flag.Parse()

	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: programLevel})
	slog.SetDefault(slog.New(h))

	if *configPath != "" {
		if _, err := toml.DecodeFile(*configPath, &cfg); err != nil {
			slog.Error("could not read config", "path", *configPath, "err", err)
			os.Exit(1)
		}
	}

	sctx = synced.NewContext()
	sctx.SetStreamPeriod(time.Duration(cfg.StreamPeriodMS) * time.Millisecond)

	entities = make(map[string]*Entity)
	mirrors = make(map[synced.ID]*Entity)

	linkPipe()

	shell := ishell.New()

	shell.SetHomeHistoryPath(".syncshell_history")

	shell.Println("SFNUL Synchronization Shell")

	shell.AddCmd(&ishell.Cmd{
		Name: "debug",
		Help: "set log level to debug",
		Func: func(c *ishell.Context) {
			programLevel.Set(slog.LevelDebug)
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "info",
		Help: "set log level to info",
		Func: func(c *ishell.Context) {
			programLevel.Set(slog.LevelInfo)
		},
	})

	shell.AddCmd(newCmd())
	shell.AddCmd(setCmd())
	shell.AddCmd(delCmd())
	shell.AddCmd(tickCmd())
	shell.AddCmd(showCmd())
	shell.AddCmd(periodCmd())

	shell.Run()
}

func registry() *syncer.Registry {
	reg := syncer.NewRegistry()
	if err := reg.Register("entity", func(id synced.ID) *synced.Object {
		e := entityFields(synced.MirrorObject("entity", id))
		mirrors[id] = e
		return e.Obj
	}); err != nil {
		panic(err)
	}
	return reg
}

func linkPipe() {
	a, b := transport.NewPipe()

	syncA = syncer.New(sctx, a, registry(), slog.Default().With("side", "A"))
	syncB = syncer.New(sctx, b, registry(), slog.Default().With("side", "B"))

	syncB.OnMirrorRemoved = func(o *synced.Object) {
		delete(mirrors, o.ID())
	}
}

func newCmd() *ishell.Cmd {
	return &ishell.Cmd{
		Name: "new",
		Help: "new <name>: create an entity on side A",
		Func: func(c *ishell.Context) {
			if len(c.Args) != 1 {
				c.Println("usage: new <name>")
				return
			}
			name := c.Args[0]
			if _, ok := entities[name]; ok {
				c.Println("already exists:", name)
				return
			}

			e := entityFields(sctx.NewObject("entity"))
			e.Name.Set(name)
			if err := syncA.Add(e.Obj); err != nil {
				c.Println("add failed:", err)
				return
			}
			entities[name] = e

			c.Printf("created %q, id %d\n", name, e.Obj.ID())
		},
	}
}

func setCmd() *ishell.Cmd {
	return &ishell.Cmd{
		Name: "set",
		Help: "set <name> score|heading <value>",
		Func: func(c *ishell.Context) {
			if len(c.Args) != 3 {
				c.Println("usage: set <name> score|heading <value>")
				return
			}
			e, ok := entities[c.Args[0]]
			if !ok {
				c.Println("no such entity:", c.Args[0])
				return
			}

			switch c.Args[1] {
			case "score":
				v, err := strconv.ParseInt(c.Args[2], 10, 64)
				if err != nil {
					c.Println("bad value:", err)
					return
				}
				e.Score.Set(v)
			case "heading":
				v, err := strconv.ParseFloat(c.Args[2], 64)
				if err != nil {
					c.Println("bad value:", err)
					return
				}
				e.Heading.Set(v)
			default:
				c.Println("unknown field:", c.Args[1])
			}
		},
	}
}

func delCmd() *ishell.Cmd {
	return &ishell.Cmd{
		Name: "del",
		Help: "del <name>: remove an entity from side A",
		Func: func(c *ishell.Context) {
			if len(c.Args) != 1 {
				c.Println("usage: del <name>")
				return
			}
			e, ok := entities[c.Args[0]]
			if !ok {
				c.Println("no such entity:", c.Args[0])
				return
			}
			syncA.Remove(e.Obj)
			delete(entities, c.Args[0])
		},
	}
}

func tickCmd() *ishell.Cmd {
	return &ishell.Cmd{
		Name: "tick",
		Help: "tick [n]: run n ticks on both sides (default 1)",
		Func: func(c *ishell.Context) {
			n := 1
			if len(c.Args) == 1 {
				var err error
				if n, err = strconv.Atoi(c.Args[0]); err != nil {
					c.Println("bad count:", err)
					return
				}
			}

			for i := 0; i < n; i++ {
				if err := syncA.Tick(); err != nil {
					c.Println("side A tick failed:", err)
					return
				}
				if err := syncB.Tick(); err != nil {
					c.Println("side B tick failed:", err)
					return
				}
			}
		},
	}
}

func showCmd() *ishell.Cmd {
	return &ishell.Cmd{
		Name: "show",
		Help: "show local entities and remote mirrors",
		Func: func(c *ishell.Context) {
			c.Printf("side A: %d tracked\n", syncA.NumTracked())
			for name, e := range entities {
				c.Println(" ", describe(name, e))
			}

			c.Printf("side B: %d mirrored\n", syncB.NumMirrors())
			for _, e := range mirrors {
				c.Println(" ", describe(e.Name.Get(), e))
			}
		},
	}
}

func describe(name string, e *Entity) string {
	return fmt.Sprintf("%q id=%d score=%d heading=%.2f",
		name, e.Obj.ID(), e.Score.Get(), e.Heading.Get())
}

func periodCmd() *ishell.Cmd {
	return &ishell.Cmd{
		Name: "period",
		Help: "period <ms>: set the stream synchronization period",
		Func: func(c *ishell.Context) {
			if len(c.Args) != 1 {
				c.Printf("stream period: %v\n", sctx.StreamPeriod())
				return
			}
			ms, err := strconv.ParseInt(c.Args[0], 10, 64)
			if err != nil {
				c.Println("bad period:", err)
				return
			}
			sctx.SetStreamPeriod(time.Duration(ms) * time.Millisecond)
		},
	}
}
