// Package traci implements the subset of the SUMO TraCI remote-control
// protocol the bridge needs: discrete step advancement and typed variable
// get/set for the vehicle, traffic light, edge, and simulation domains.
package traci

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"
)

// ErrConnLost reports that the TCP session to the simulation is gone. The
// client does not reconnect; that policy belongs to the caller.
var ErrConnLost = errors.New("simulation connection lost")

// CommandError is a protocol-level failure reported by the simulation for a
// single command, e.g. a vehicle that left the network between ticks. The
// session itself is still healthy.
type CommandError struct {
	Cmd  byte
	Desc string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("traci command 0x%02x failed: %s", e.Cmd, e.Desc)
}

// Client is a single TraCI session. It is not safe for concurrent use; the
// sync engine serializes all simulation calls by design.
type Client struct {
	conn    net.Conn
	timeout time.Duration

	// APIVersion and ServerVersion are captured from the handshake.
	APIVersion    int
	ServerVersion string
}

// Dial opens a TraCI session and performs the version handshake. The timeout
// bounds the dial and every subsequent exchange.
func Dial(host string, port int, timeout time.Duration) (*Client, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	c := &Client{conn: conn, timeout: timeout}
	if err := c.handshake(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("traci handshake: %w", err)
	}
	return c, nil
}

// Close tells the simulation the session is over and closes the socket.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	// Best effort; the socket is closed regardless.
	_, _ = c.exchange(cmdClose, nil)
	err := c.conn.Close()
	c.conn = nil
	return err
}

// Step advances the simulation by exactly one step.
func (c *Client) Step() error {
	content := appendDouble(nil, 0) // 0 = one step
	r, err := c.exchange(cmdSimStep, content)
	if err != nil {
		return err
	}
	// The step response carries a count of subscription results. The
	// bridge subscribes to nothing, so the count is read and must be zero
	// payload beyond it.
	if r.remaining() >= 4 {
		r.int32()
	}
	return nil
}

// GetStringList fetches a string-list variable.
func (c *Client) GetStringList(dom Domain, variable byte, objID string) ([]string, error) {
	r, err := c.get(dom, variable, objID, typeStringList)
	if err != nil {
		return nil, err
	}
	list := r.stringList()
	if r.err != nil {
		return nil, fmt.Errorf("decode string list: %w", r.err)
	}
	return list, nil
}

// GetString fetches a string variable.
func (c *Client) GetString(dom Domain, variable byte, objID string) (string, error) {
	r, err := c.get(dom, variable, objID, typeString)
	if err != nil {
		return "", err
	}
	s := r.string()
	if r.err != nil {
		return "", fmt.Errorf("decode string: %w", r.err)
	}
	return s, nil
}

// GetInt fetches an integer variable.
func (c *Client) GetInt(dom Domain, variable byte, objID string) (int, error) {
	r, err := c.get(dom, variable, objID, typeInteger)
	if err != nil {
		return 0, err
	}
	v := r.int32()
	if r.err != nil {
		return 0, fmt.Errorf("decode integer: %w", r.err)
	}
	return int(v), nil
}

// GetDouble fetches a double variable.
func (c *Client) GetDouble(dom Domain, variable byte, objID string) (float64, error) {
	r, err := c.get(dom, variable, objID, typeDouble)
	if err != nil {
		return 0, err
	}
	v := r.double()
	if r.err != nil {
		return 0, fmt.Errorf("decode double: %w", r.err)
	}
	return v, nil
}

// SetDouble writes a double variable on an object.
func (c *Client) SetDouble(dom Domain, variable byte, objID string, value float64) error {
	content := []byte{variable}
	content = appendString(content, objID)
	content = append(content, typeDouble)
	content = appendDouble(content, value)
	_, err := c.exchange(setCommand(dom), content)
	return err
}

// SetInt writes an integer variable on an object.
func (c *Client) SetInt(dom Domain, variable byte, objID string, value int) error {
	content := []byte{variable}
	content = appendString(content, objID)
	content = append(content, typeInteger)
	content = appendInt32(content, int32(value))
	_, err := c.exchange(setCommand(dom), content)
	return err
}

// SetString writes a string variable on an object.
func (c *Client) SetString(dom Domain, variable byte, objID string, value string) error {
	content := []byte{variable}
	content = appendString(content, objID)
	content = append(content, typeString)
	content = appendString(content, value)
	_, err := c.exchange(setCommand(dom), content)
	return err
}

func setCommand(dom Domain) byte {
	// Set identifiers sit 0x20 above the get identifiers.
	return byte(dom) + 0x20
}

func (c *Client) handshake() error {
	r, err := c.exchange(cmdGetVersion, nil)
	if err != nil {
		return err
	}
	if id := r.commandHeader(); id != cmdGetVersion {
		return fmt.Errorf("unexpected handshake response 0x%02x", id)
	}
	c.APIVersion = int(r.int32())
	c.ServerVersion = r.string()
	if r.err != nil {
		return fmt.Errorf("decode version response: %w", r.err)
	}
	return nil
}

// get issues a variable-retrieval command and positions the returned reader
// at the value, after verifying the echoed variable, object, and value type.
func (c *Client) get(dom Domain, variable byte, objID string, wantType byte) (*reader, error) {
	content := []byte{variable}
	content = appendString(content, objID)

	r, err := c.exchange(byte(dom), content)
	if err != nil {
		return nil, err
	}

	respID := r.commandHeader()
	gotVar := r.ubyte()
	gotObj := r.string()
	gotType := r.ubyte()
	if r.err != nil {
		return nil, fmt.Errorf("decode get response: %w", r.err)
	}
	if respID != byte(dom)+responseOffset {
		return nil, fmt.Errorf("unexpected response command 0x%02x for get 0x%02x", respID, byte(dom))
	}
	if gotVar != variable || gotObj != objID {
		return nil, fmt.Errorf("response for %q/0x%02x, requested %q/0x%02x", gotObj, gotVar, objID, variable)
	}
	if gotType != wantType {
		return nil, fmt.Errorf("value type 0x%02x, want 0x%02x", gotType, wantType)
	}
	return r, nil
}

// exchange writes a single-command message, reads the response message, and
// consumes the status command. The returned reader holds whatever follows
// the status. Transport failures are wrapped in ErrConnLost.
func (c *Client) exchange(cmd byte, content []byte) (*reader, error) {
	if c.conn == nil {
		return nil, ErrConnLost
	}
	deadline := time.Now().Add(c.timeout)
	if err := c.conn.SetDeadline(deadline); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnLost, err)
	}

	msg := packMessage(packCommand(cmd, content))
	if _, err := c.conn.Write(msg); err != nil {
		return nil, fmt.Errorf("%w: write: %v", ErrConnLost, err)
	}

	payload, err := readMessage(c.conn)
	if err != nil {
		return nil, fmt.Errorf("%w: read: %v", ErrConnLost, err)
	}

	r := newReader(payload)
	statusCmd := r.commandHeader()
	result := r.ubyte()
	desc := r.string()
	if r.err != nil {
		return nil, fmt.Errorf("decode status: %w", r.err)
	}
	if statusCmd != cmd {
		return nil, fmt.Errorf("status for command 0x%02x, sent 0x%02x", statusCmd, cmd)
	}
	if result != statusOK {
		return nil, &CommandError{Cmd: cmd, Desc: desc}
	}
	return r, nil
}
