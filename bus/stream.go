package bus

import (
	"bufio"
	"errors"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nasa-jpl/pdosim/pdo"
)

// Stream is an Endpoint over a byte stream.  A background reader decodes
// telegrams into a queue; corrupt telegrams are logged and skipped.
type Stream struct {
	rw   io.ReadWriteCloser
	wmu  sync.Mutex
	rx   chan pdo.Frame
	done chan struct{}
	once sync.Once

	sent, received, dropped, corrupt uint64
}

// NewStream starts reading from rw.  The stream owns rw and closes it on Close.
func NewStream(rw io.ReadWriteCloser, depth int) *Stream {
	if depth < 1 {
		depth = 1
	}
	s := &Stream{
		rw:   rw,
		rx:   make(chan pdo.Frame, depth),
		done: make(chan struct{})}
	go s.readLoop()
	return s
}

func (s *Stream) readLoop() {
	defer close(s.rx)
	r := bufio.NewReader(s.rw)
	for {
		buf, err := r.ReadBytes(telEnd)
		if len(buf) > 0 && err == nil {
			f, derr := DecodeTelegram(buf)
			if derr != nil {
				atomic.AddUint64(&s.corrupt, 1)
				log.Printf("bus: dropping telegram: %v", derr)
				continue
			}
			select {
			case s.rx <- f:
			case <-s.done:
				return
			default:
				atomic.AddUint64(&s.dropped, 1)
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				select {
				case <-s.done:
				default:
					log.Printf("bus: stream read: %v", err)
				}
			}
			return
		}
	}
}

// Send writes f as one telegram
func (s *Stream) Send(f pdo.Frame) error {
	select {
	case <-s.done:
		return ErrClosed
	default:
	}
	s.wmu.Lock()
	defer s.wmu.Unlock()
	_, err := s.rw.Write(MakeTelegram(f))
	if err == nil {
		atomic.AddUint64(&s.sent, 1)
	}
	return err
}

// Recv returns the next decoded frame, waiting at most timeout
func (s *Stream) Recv(timeout time.Duration) (pdo.Frame, error) {
	return recv(s.rx, s.done, timeout, &s.received)
}

// Stats returns the traffic counters; corrupt telegrams count as dropped
func (s *Stream) Stats() Stats {
	return Stats{
		Sent:     atomic.LoadUint64(&s.sent),
		Received: atomic.LoadUint64(&s.received),
		Dropped:  atomic.LoadUint64(&s.dropped) + atomic.LoadUint64(&s.corrupt)}
}

// Close stops the reader and closes the underlying stream
func (s *Stream) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.rw.Close()
	})
	return err
}
