// Package bus provides the shared channel the fleet and the supervisor talk
// over.  Virtual is an in-process broadcast bus; Stream carries the same
// frames over any byte stream (serial port, TCP socket).
package bus

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nasa-jpl/pdosim/pdo"
)

var (
	// ErrTimeout is generated when Recv sees no frame before its deadline.  It
	// is the normal idle case.
	ErrTimeout = errors.New("bus: receive timeout")

	// ErrClosed is generated by operations on a closed endpoint
	ErrClosed = errors.New("bus: endpoint closed")
)

// Endpoint is one participant on a bus.  Send never blocks; Recv blocks for at
// most the given timeout.
type Endpoint interface {
	Send(pdo.Frame) error
	Recv(timeout time.Duration) (pdo.Frame, error)
	Close() error
}

// Stats counts traffic through an endpoint
type Stats struct {
	Sent     uint64 `json:"sent"`
	Received uint64 `json:"received"`
	Dropped  uint64 `json:"dropped"`
}

// Virtual is an in-process bus.  Every frame sent by one port is delivered to
// every other open port whose filter accepts it.
type Virtual struct {
	// ReceiveOwn also delivers a port's frames back to itself
	ReceiveOwn bool

	mu    sync.RWMutex
	ports []*Port
	depth int
}

// NewVirtual returns a bus whose ports queue up to depth frames each
func NewVirtual(depth int) *Virtual {
	if depth < 1 {
		depth = 1
	}
	return &Virtual{depth: depth}
}

// Port attaches a new endpoint to the bus
func (v *Virtual) Port(name string) *Port {
	p := &Port{
		Name: name,
		bus:  v,
		rx:   make(chan pdo.Frame, v.depth),
		done: make(chan struct{})}
	v.mu.Lock()
	v.ports = append(v.ports, p)
	v.mu.Unlock()
	return p
}

func (v *Virtual) detach(p *Port) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i, q := range v.ports {
		if q == p {
			v.ports = append(v.ports[:i], v.ports[i+1:]...)
			return
		}
	}
}

func (v *Virtual) deliver(from *Port, f pdo.Frame) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	for _, p := range v.ports {
		if p == from && !v.ReceiveOwn {
			continue
		}
		p.offer(f)
	}
}

// Port is an endpoint of a Virtual bus
type Port struct {
	Name string

	bus    *Virtual
	rx     chan pdo.Frame
	done   chan struct{}
	once   sync.Once
	filter atomic.Value // func(uint16) bool

	sent, received, dropped uint64
}

// SetFilter installs an acceptance filter on received frame ids.  nil accepts everything.
func (p *Port) SetFilter(accept func(id uint16) bool) {
	p.filter.Store(accept)
}

func (p *Port) accepts(id uint16) bool {
	fn, _ := p.filter.Load().(func(uint16) bool)
	return fn == nil || fn(id)
}

func (p *Port) offer(f pdo.Frame) {
	if !p.accepts(f.ID) {
		return
	}
	select {
	case <-p.done:
	case p.rx <- f:
	default:
		atomic.AddUint64(&p.dropped, 1)
	}
}

// Send broadcasts f.  A full receiver drops the frame rather than blocking the sender.
func (p *Port) Send(f pdo.Frame) error {
	select {
	case <-p.done:
		return ErrClosed
	default:
	}
	atomic.AddUint64(&p.sent, 1)
	p.bus.deliver(p, f)
	return nil
}

// Recv returns the next frame, waiting at most timeout.  A timeout <= 0 polls.
func (p *Port) Recv(timeout time.Duration) (pdo.Frame, error) {
	return recv(p.rx, p.done, timeout, &p.received)
}

// Pending returns the number of queued frames
func (p *Port) Pending() int {
	return len(p.rx)
}

// Stats returns the traffic counters
func (p *Port) Stats() Stats {
	return Stats{
		Sent:     atomic.LoadUint64(&p.sent),
		Received: atomic.LoadUint64(&p.received),
		Dropped:  atomic.LoadUint64(&p.dropped)}
}

// Close detaches the port.  Later calls are no-ops.
func (p *Port) Close() error {
	p.once.Do(func() {
		close(p.done)
		p.bus.detach(p)
	})
	return nil
}

func recv(rx <-chan pdo.Frame, done <-chan struct{}, timeout time.Duration, counter *uint64) (pdo.Frame, error) {
	select {
	case f, ok := <-rx:
		if !ok {
			return pdo.Frame{}, ErrClosed
		}
		atomic.AddUint64(counter, 1)
		return f, nil
	default:
	}
	if timeout <= 0 {
		select {
		case <-done:
			return pdo.Frame{}, ErrClosed
		default:
			return pdo.Frame{}, ErrTimeout
		}
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case f, ok := <-rx:
		if !ok {
			return pdo.Frame{}, ErrClosed
		}
		atomic.AddUint64(counter, 1)
		return f, nil
	case <-done:
		return pdo.Frame{}, ErrClosed
	case <-timer.C:
		return pdo.Frame{}, ErrTimeout
	}
}
