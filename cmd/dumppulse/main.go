// Command dumppulse prints the audio server's objects and then every event it reports.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/Grissess/pulse-mcu/audio"
	"github.com/Grissess/pulse-mcu/audio/pulse"
)

func main() {
	name := flag.String("name", "dump-events", "client name to connect as")
	poll := flag.Duration("poll", pulse.DefaultPollInterval, "how often to re-list objects")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, *name, *poll); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, name string, poll time.Duration) error {
	server, err := pulse.Dial(name, poll)
	if err != nil {
		return err
	}
	defer server.Close()

	for _, kind := range audio.Kinds {
		objects, err := server.List(ctx, kind)
		if err != nil {
			return err
		}
		for _, o := range objects {
			fmt.Printf("%-16s %-40q app=%q muted=%t volume=%.3f monitor=%s/%d\n",
				o.ID, o.Name, o.AppName, o.Muted, o.Volume, o.Monitor.Source, int64(int32(o.Monitor.Stream)))
		}
	}

	return server.WatchEvents(ctx, func(ev audio.Event) {
		fmt.Printf("event %-6s on %-12s #%d\n", ev.Type, ev.Kind, ev.Index)
	})
}
