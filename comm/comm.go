/*Package comm provides the serial transport to the RLD pulse controller.

The controller speaks a newline-terminated ASCII command language and does
not require any response to be parsed; Send is therefore fire-and-forget.
The sequencer receives the transport as an injected capability and never
opens or closes it; the owning process does that through this package.

*/
package comm

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/tarm/serial"
)

const (
	// Baud is the controller UART rate, fixed in firmware
	Baud = 115200

	// terminator ends every command sent to the controller
	terminator = byte('\n')
)

// ErrNotConnected is generated when Send is called before Open succeeds.
var ErrNotConnected = errors.New("conn is nil, not connected to controller")

// Controller is a byte-oriented connection to the RLD controller.
// The zero value is not usable; create one with NewController.
type Controller struct {
	// Addr is the serial port, e.g. /dev/ttyACM0 or COM3
	Addr string

	// Timeout is the driver-level read timeout passed to the serial layer
	Timeout time.Duration

	conn io.ReadWriteCloser
}

// NewController returns a Controller bound to a serial port.
func NewController(addr string) *Controller {
	return &Controller{Addr: addr, Timeout: time.Second}
}

// SerialConf yields the serial config for the controller's UART
func (c *Controller) SerialConf() *serial.Config {
	return &serial.Config{
		Name:        c.Addr,
		Baud:        Baud,
		ReadTimeout: c.Timeout,
	}
}

// Open the connection, setting the conn variable.  The controller's USB
// CDC stack does not like being connection thrashed, so opens are retried
// with an exponential backoff.
func (c *Controller) Open() error {
	wasTimeout := false
	op := func() error {
		conn, err := serial.OpenPort(c.SerialConf())
		if err != nil {
			errS := strings.ToLower(err.Error())
			if strings.Contains(errS, "busy") || strings.Contains(errS, "denied") {
				return err
			}
			wasTimeout = true
			return nil
		}
		c.conn = conn
		return nil
	}
	err := backoff.Retry(op, &backoff.ExponentialBackOff{
		InitialInterval:     25 * time.Millisecond,
		RandomizationFactor: 0.,
		Multiplier:          2.,
		MaxInterval:         1 * time.Second,
		MaxElapsedTime:      3 * time.Second,
		Clock:               backoff.SystemClock})
	if err == nil && !wasTimeout {
		return nil
	}
	if wasTimeout {
		return fmt.Errorf("connection timeout to %s", c.Addr)
	}
	return err
}

// Close the connection, nil-ing the conn variable
func (c *Controller) Close() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	if err == nil {
		c.conn = nil
	}
	return err
}

// Write sends raw bytes to the controller.  The protocol encoders in
// package rld already terminate their commands, so no terminator is
// appended here.  Write satisfies io.Writer so the sequencer can take
// the transport as a plain writer.
func (c *Controller) Write(b []byte) (int, error) {
	if c.conn == nil {
		return 0, ErrNotConnected
	}
	return c.conn.Write(b)
}

// Send writes a command and appends the terminator if it is missing.
// The caller's slice is never written to.
func (c *Controller) Send(b []byte) error {
	if c.conn == nil {
		return ErrNotConnected
	}
	if len(b) == 0 || b[len(b)-1] != terminator {
		msg := make([]byte, len(b), len(b)+1)
		copy(msg, b)
		b = append(msg, terminator)
	}
	_, err := c.conn.Write(b)
	return err
}
