package traci

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// All TraCI integers are big-endian. A message is a 4-byte total length
// (including itself) followed by one or more commands. A command is a 1-byte
// length, or a zero byte plus a 4-byte extended length when the command does
// not fit in 255 bytes, followed by the command identifier and its content.

func packCommand(cmd byte, content []byte) []byte {
	total := 2 + len(content)
	if total <= 0xff {
		out := make([]byte, 0, total)
		out = append(out, byte(total), cmd)
		return append(out, content...)
	}
	// Extended length covers the zero marker and the length word as well.
	total += 4
	out := make([]byte, 0, total)
	out = append(out, 0x00)
	out = binary.BigEndian.AppendUint32(out, uint32(total))
	out = append(out, cmd)
	return append(out, content...)
}

func packMessage(cmds ...[]byte) []byte {
	total := 4
	for _, c := range cmds {
		total += len(c)
	}
	out := make([]byte, 0, total)
	out = binary.BigEndian.AppendUint32(out, uint32(total))
	for _, c := range cmds {
		out = append(out, c...)
	}
	return out
}

func readMessage(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	total := binary.BigEndian.Uint32(lenBuf[:])
	if total < 4 {
		return nil, fmt.Errorf("invalid message length %d", total)
	}
	payload := make([]byte, total-4)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// reader decodes typed values from a message payload with a sticky error.
type reader struct {
	buf *bytes.Reader
	err error
}

func newReader(payload []byte) *reader {
	return &reader{buf: bytes.NewReader(payload)}
}

func (r *reader) remaining() int { return r.buf.Len() }

func (r *reader) ubyte() byte {
	if r.err != nil {
		return 0
	}
	b, err := r.buf.ReadByte()
	if err != nil {
		r.err = err
		return 0
	}
	return b
}

func (r *reader) int32() int32 {
	if r.err != nil {
		return 0
	}
	var buf [4]byte
	if _, err := io.ReadFull(r.buf, buf[:]); err != nil {
		r.err = err
		return 0
	}
	return int32(binary.BigEndian.Uint32(buf[:]))
}

func (r *reader) double() float64 {
	if r.err != nil {
		return 0
	}
	var buf [8]byte
	if _, err := io.ReadFull(r.buf, buf[:]); err != nil {
		r.err = err
		return 0
	}
	return math.Float64frombits(binary.BigEndian.Uint64(buf[:]))
}

func (r *reader) string() string {
	n := r.int32()
	if r.err != nil {
		return ""
	}
	if n < 0 {
		r.err = fmt.Errorf("negative string length %d", n)
		return ""
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.buf, buf); err != nil {
		r.err = err
		return ""
	}
	return string(buf)
}

func (r *reader) stringList() []string {
	n := r.int32()
	if r.err != nil {
		return nil
	}
	out := make([]string, 0, n)
	for i := int32(0); i < n; i++ {
		out = append(out, r.string())
		if r.err != nil {
			return nil
		}
	}
	return out
}

// commandHeader consumes a command length (plain or extended) and the
// command identifier, returning the identifier.
func (r *reader) commandHeader() byte {
	n := r.ubyte()
	if n == 0 {
		r.int32()
	}
	return r.ubyte()
}

// Typed value writers used to build command content.

func appendString(out []byte, s string) []byte {
	out = binary.BigEndian.AppendUint32(out, uint32(len(s)))
	return append(out, s...)
}

func appendDouble(out []byte, v float64) []byte {
	return binary.BigEndian.AppendUint64(out, math.Float64bits(v))
}

func appendInt32(out []byte, v int32) []byte {
	return binary.BigEndian.AppendUint32(out, uint32(v))
}
