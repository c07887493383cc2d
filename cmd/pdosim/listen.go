package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"time"

	"github.com/fatih/color"

	"github.com/nasa-jpl/pdosim/bus"
	"github.com/nasa-jpl/pdosim/comm"
	"github.com/nasa-jpl/pdosim/pdo"
)

var (
	syncColor = color.New(color.FgYellow).SprintFunc()
	nodeColor = color.New(color.FgCyan).SprintFunc()
	miscColor = color.New(color.FgMagenta).SprintFunc()
)

// describe renders one frame as a line of text
func describe(c pdo.Codec, f pdo.Frame) string {
	if c.IsSync(f) {
		return syncColor("SYNC")
	}
	if node, slot, ok := c.Locate(f.ID); ok && !f.Extended {
		return fmt.Sprintf("%s slot %d %v", nodeColor(fmt.Sprintf("node %3d", node)), slot, pdo.Values(f))
	}
	return miscColor(f.String())
}

// accept waits for the bridge of a running pdosim to connect
func accept(c BridgeSetup) (io.ReadWriteCloser, error) {
	if c.Serial {
		rd := comm.NewRemoteDevice(c.Addr, true, comm.DefaultSerialConf(c.Addr, c.Baud))
		if err := rd.Open(); err != nil {
			return nil, err
		}
		return rd.Conn, nil
	}
	ln, err := net.Listen("tcp", c.Addr)
	if err != nil {
		return nil, err
	}
	defer ln.Close()
	log.Println("waiting for a bridge at", c.Addr)
	return ln.Accept()
}

// listen prints the telegrams a bridge sends until it disconnects
func listen() {
	c, err := unmarshal(k)
	if err != nil {
		log.Fatal(err)
	}
	if c.Bridge.Addr == "" {
		log.Fatal("listen: Bridge.Addr is not set")
	}
	conn, err := accept(c.Bridge)
	if err != nil {
		log.Fatal(err)
	}
	s := bus.NewStream(conn, c.QueueDepth)
	defer s.Close()
	start := time.Now()
	for {
		f, err := s.Recv(time.Second)
		if errors.Is(err, bus.ErrTimeout) {
			continue
		}
		if err != nil {
			st := s.Stats()
			log.Printf("stream ended after %v: %d frames received, %d dropped", time.Since(start), st.Received, st.Dropped)
			return
		}
		fmt.Println(describe(c.Fleet.PDO, f))
	}
}
