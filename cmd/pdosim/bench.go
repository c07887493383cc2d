package main

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/theckman/yacspin"

	"github.com/nasa-jpl/pdosim/bus"
	"github.com/nasa-jpl/pdosim/fleet"
)

// bench runs the configured fleet flat out for a number of ticks
func bench(args []string) {
	n := int64(10000)
	if len(args) > 0 {
		v, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || v < 1 {
			log.Fatalf("bench: %q is not a tick count", args[0])
		}
		n = v
	}
	c, err := unmarshal(k)
	if err != nil {
		log.Fatal(err)
	}
	v := bus.NewVirtual(c.QueueDepth)
	f, err := fleet.New(c.Fleet, v.Port("fleet"), v.Port("supervisor"))
	if err != nil {
		log.Fatal(err)
	}

	spinner, err := yacspin.New(yacspin.Config{
		Frequency:       100 * time.Millisecond,
		CharSet:         yacspin.CharSets[14],
		Suffix:          " ticking",
		SuffixAutoColon: true,
		Message:         fmt.Sprintf("0/%d", n),
		StopCharacter:   "✓",
		StopColors:      []string{"fgGreen"},
	})
	if err != nil {
		log.Fatal(err)
	}

	var sent, recv int
	progress := func(f *fleet.Fleet, r fleet.Report) {
		sent += r.Sent
		recv += r.Received
		if r.Tick%1000 == 0 {
			spinner.Message(fmt.Sprintf("%d/%d", r.Tick, n))
		}
	}
	runner := fleet.Runner{Fleet: f, Limit: n, Hooks: []fleet.Hook{progress}}

	spinner.Start()
	start := time.Now()
	err = runner.Run(context.Background())
	elapsed := time.Since(start)
	spinner.Message(fmt.Sprintf("%d/%d", n, n))
	spinner.Stop()
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("%d axes, %d ticks in %v (%.0f ticks/s)\n", c.Fleet.Axes, n, elapsed, float64(n)/elapsed.Seconds())
	fmt.Printf("%d frames sent, %d received\n", sent, recv)
}
