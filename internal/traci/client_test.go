package traci

import (
	"errors"
	"net"
	"testing"
	"time"
)

func TestPackCommandShort(t *testing.T) {
	cmd := packCommand(cmdSimStep, []byte{1, 2, 3})
	if len(cmd) != 5 {
		t.Fatalf("len = %d, want 5", len(cmd))
	}
	if cmd[0] != 5 || cmd[1] != cmdSimStep {
		t.Fatalf("header = % x", cmd[:2])
	}
}

func TestPackCommandExtended(t *testing.T) {
	content := make([]byte, 300)
	cmd := packCommand(cmdSetTLVariable, content)
	if cmd[0] != 0 {
		t.Fatalf("extended command must start with zero marker, got %d", cmd[0])
	}
	// 1 marker + 4 length + 1 id + 300 content
	if len(cmd) != 306 {
		t.Fatalf("len = %d, want 306", len(cmd))
	}
}

func TestReaderTypes(t *testing.T) {
	var payload []byte
	payload = appendInt32(payload, -7)
	payload = appendDouble(payload, 13.5)
	payload = appendString(payload, "gneJ1")

	r := newReader(payload)
	if got := r.int32(); got != -7 {
		t.Fatalf("int32 = %d", got)
	}
	if got := r.double(); got != 13.5 {
		t.Fatalf("double = %v", got)
	}
	if got := r.string(); got != "gneJ1" {
		t.Fatalf("string = %q", got)
	}
	if r.err != nil {
		t.Fatalf("reader error: %v", r.err)
	}
	if r.remaining() != 0 {
		t.Fatalf("remaining = %d", r.remaining())
	}
}

// scriptedConn pairs a client with a server goroutine that answers one
// request with a canned payload built by reply.
func scriptedConn(t *testing.T, reply func(cmd byte) [][]byte) *Client {
	t.Helper()
	client, server := net.Pipe()
	t.Cleanup(func() {
		client.Close()
		server.Close()
	})

	go func() {
		payload, err := readMessage(server)
		if err != nil {
			return
		}
		r := newReader(payload)
		cmd := r.commandHeader()
		_, _ = server.Write(packMessage(reply(cmd)...))
	}()

	return &Client{conn: client, timeout: time.Second}
}

func statusReply(cmd byte, result byte, desc string) []byte {
	content := []byte{result}
	content = appendString(content, desc)
	return packCommand(cmd, content)
}

func TestGetIntRoundTrip(t *testing.T) {
	c := scriptedConn(t, func(cmd byte) [][]byte {
		resp := []byte{VarTLPhase}
		resp = appendString(resp, "tl1")
		resp = append(resp, typeInteger)
		resp = appendInt32(resp, 3)
		return [][]byte{
			statusReply(cmd, statusOK, ""),
			packCommand(cmd+responseOffset, resp),
		}
	})

	got, err := c.GetInt(DomainTrafficLight, VarTLPhase, "tl1")
	if err != nil {
		t.Fatalf("GetInt: %v", err)
	}
	if got != 3 {
		t.Fatalf("GetInt = %d, want 3", got)
	}
}

func TestGetStringListRoundTrip(t *testing.T) {
	c := scriptedConn(t, func(cmd byte) [][]byte {
		resp := []byte{VarIDList}
		resp = appendString(resp, "")
		resp = append(resp, typeStringList)
		resp = appendInt32(resp, 2)
		resp = appendString(resp, "veh0")
		resp = appendString(resp, "veh1")
		return [][]byte{
			statusReply(cmd, statusOK, ""),
			packCommand(cmd+responseOffset, resp),
		}
	})

	got, err := c.GetStringList(DomainVehicle, VarIDList, "")
	if err != nil {
		t.Fatalf("GetStringList: %v", err)
	}
	if len(got) != 2 || got[0] != "veh0" || got[1] != "veh1" {
		t.Fatalf("GetStringList = %v", got)
	}
}

func TestCommandErrorSurfaced(t *testing.T) {
	c := scriptedConn(t, func(cmd byte) [][]byte {
		return [][]byte{statusReply(cmd, statusErr, "vehicle 'ghost' is not known")}
	})

	_, err := c.GetDouble(DomainVehicle, VarSpeed, "ghost")
	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("err = %v, want CommandError", err)
	}
	if cmdErr.Desc != "vehicle 'ghost' is not known" {
		t.Fatalf("Desc = %q", cmdErr.Desc)
	}
}

func TestTransportFailureMapsToConnLost(t *testing.T) {
	client, server := net.Pipe()
	server.Close()
	client.Close()
	c := &Client{conn: client, timeout: 50 * time.Millisecond}

	err := c.Step()
	if !errors.Is(err, ErrConnLost) {
		t.Fatalf("err = %v, want ErrConnLost", err)
	}
}

func TestStepConsumesSubscriptionCount(t *testing.T) {
	c := scriptedConn(t, func(cmd byte) [][]byte {
		if cmd != cmdSimStep {
			t.Errorf("server saw command 0x%02x, want simstep", cmd)
		}
		return [][]byte{
			statusReply(cmd, statusOK, ""),
			appendInt32(nil, 0), // zero subscription results
		}
	})

	if err := c.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
}
