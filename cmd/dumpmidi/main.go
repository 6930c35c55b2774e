// Command dumpmidi prints every MIDI message arriving on the matching input ports, along with how the FP16
// decoder reads it.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"

	midi "gitlab.com/gomidi/midi/v2"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // autoregisters driver

	"github.com/Grissess/pulse-mcu/devices/fp16"
)

func main() {
	prefix := flag.String("port", "", "only listen on input ports whose names start with this")
	flag.Parse()
	defer midi.CloseDriver()

	fmt.Printf("inports:\n%s\n", midi.GetInPorts().String())

	var stops []func()
	for _, in := range midi.GetInPorts() {
		if !strings.HasPrefix(in.String(), *prefix) {
			continue
		}
		name := in.String()
		stop, err := midi.ListenTo(in, func(msg midi.Message, timestampms int32) {
			line := fmt.Sprintf("%s %6d % x  %s", name, timestampms, msg.Bytes(), msg)
			if input, ok := fp16.Decode(msg); ok {
				line += fmt.Sprintf("  -> %s slot=%d pressed=%t value=%.4f button=%q",
					input.Kind, input.Slot, input.Pressed, input.Value, input.Button)
			}
			fmt.Println(line)
		}, midi.UseSysEx())
		if err != nil {
			fmt.Fprintf(os.Stderr, "listen to %s: %v\n", name, err)
			continue
		}
		fmt.Printf("Listening on %s\n", name)
		stops = append(stops, stop)
	}
	if len(stops) == 0 {
		fmt.Fprintln(os.Stderr, "no input ports to listen on")
		os.Exit(1)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	<-sig
	for _, stop := range stops {
		stop()
	}
}
