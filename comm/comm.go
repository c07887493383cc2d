/*Package comm opens the byte streams that carry bus telegrams off-process.

A RemoteDevice is either a serial port or a TCP peer.  Open retries with an
exponential backoff, since USB-serial adapters and freshly started listeners
are often not ready on the first attempt.

	rd := comm.NewRemoteDevice("192.168.1.10:2000", false, nil)
	if err := rd.Open(); err != nil {
		return err
	}
	ep := bus.NewStream(rd.Conn, 256)
*/
package comm

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/tarm/serial"
)

var (
	// ErrNoSerialConf is generated when IsSerial is true and there is no serial config
	ErrNoSerialConf = errors.New("remote device is serial but has no serial config")

	// ErrNotConnected is generated when .Conn is nil and Close is called.
	ErrNotConnected = errors.New("conn is nil, not connected to remote")
)

// DefaultSerialConf returns 8N1 at baud on the named port
func DefaultSerialConf(name string, baud int) *serial.Config {
	if baud == 0 {
		baud = 115200
	}
	return &serial.Config{
		Name:        name,
		Baud:        baud,
		Size:        8,
		Parity:      serial.ParityNone,
		StopBits:    serial.Stop1,
		ReadTimeout: 0,
	}
}

/*RemoteDevice has an address and opens a connection to it

if IsSerial is true, Serial must be non-nil
*/
type RemoteDevice struct {
	Addr     string
	IsSerial bool
	Serial   *serial.Config
	Conn     io.ReadWriteCloser

	// DialTimeout bounds each TCP connection attempt
	DialTimeout time.Duration

	// MaxElapsed bounds the total time Open spends retrying
	MaxElapsed time.Duration
}

// NewRemoteDevice creates a new RemoteDevice instance.  For serial devices
// conf may be nil, in which case 115200 8N1 on addr is used.
func NewRemoteDevice(addr string, isSerial bool, conf *serial.Config) *RemoteDevice {
	if isSerial && conf == nil {
		conf = DefaultSerialConf(addr, 0)
	}
	return &RemoteDevice{
		Addr:        addr,
		IsSerial:    isSerial,
		Serial:      conf,
		DialTimeout: 3 * time.Second,
		MaxElapsed:  3 * time.Second}
}

// Open the connection, setting the Conn variable
func (rd *RemoteDevice) Open() error {
	wasTimeout := false
	var lastErr error
	op := func() error {
		err := rd.open()
		if err != nil {
			lastErr = err
			errS := strings.ToLower(err.Error())
			if strings.Contains(errS, "refused") || strings.Contains(errS, "no such") {
				// the peer is there but not listening yet, or the port
				// is not plugged in yet; both are worth retrying
				return err
			}
			if errors.Is(err, ErrNoSerialConf) {
				return backoff.Permanent(err)
			}
			wasTimeout = true
			return err
		}
		wasTimeout = false
		return nil
	}

	// backoff will cease on MaxElapsedTime so we don't wait forever
	err := backoff.Retry(op, &backoff.ExponentialBackOff{
		InitialInterval:     25 * time.Millisecond,
		RandomizationFactor: 0.,
		Multiplier:          2.,
		MaxInterval:         1 * time.Second,
		MaxElapsedTime:      rd.MaxElapsed,
		Clock:               backoff.SystemClock})
	if err == nil {
		return nil
	}
	if wasTimeout {
		return fmt.Errorf("connection timeout to %s: %w", rd.Addr, lastErr)
	}
	return err
}

func (rd *RemoteDevice) open() error {
	var err error
	var conn io.ReadWriteCloser
	if rd.IsSerial {
		if rd.Serial == nil {
			return ErrNoSerialConf
		}
		conn, err = serial.OpenPort(rd.Serial)
	} else {
		conn, err = TCPSetup(rd.Addr, rd.DialTimeout)
	}
	if err != nil {
		return err
	}
	rd.Conn = conn
	return nil
}

// Close the connection, nil-ing the Conn variable
func (rd *RemoteDevice) Close() error {
	if rd.Conn == nil {
		return ErrNotConnected
	}
	err := rd.Conn.Close()
	if err == nil {
		rd.Conn = nil
	}
	return err
}

// TCPSetup opens a new TCP connection with a timeout on connect.  Unlike a
// request/response device, a telegram stream is long lived, so no read or
// write deadline is set.
func TCPSetup(addr string, timeout time.Duration) (net.Conn, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, err
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		tc.SetNoDelay(true)
	}
	return conn, nil
}
