package obd

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// OBD service modes understood by the tool.
const (
	ModeCurrentData byte = 0x01
	ModeFreezeFrame byte = 0x02
)

// Constant values used to describe pieces of a request or response.
const (
	// RequestTerminator ends every command written to the interface.
	RequestTerminator byte = '\r'
	// ResponsePrompt is printed by the interface once a reply is complete
	// and it is ready for the next command.
	ResponsePrompt byte = '>'

	// A response frame starts with a two-byte header (0x40+mode, PID);
	// the value bytes sit at the two offsets following it.
	FrameHeaderSize         int = 2
	FrameIndexPayloadFirst  int = 2
	FrameIndexPayloadSecond int = 3
)

// newRequest builds the textual command for a mode/PID query,
// e.g. mode 0x01 PID 0x0C becomes "01 0C\r".
func newRequest(mode, pid byte) []byte {
	return []byte(fmt.Sprintf("%02X %02X%c", mode, pid, RequestTerminator))
}

// Message holds the parsed response frames for a single query. Messages are
// pooled: one is only valid until Release is called, and the holder must
// release it exactly once on every path out of a query.
type Message struct {
	// Frames holds one byte slice per data line the interface returned.
	Frames [][]byte

	released bool
}

var messagePool = sync.Pool{
	New: func() interface{} { return &Message{} },
}

func newMessage() *Message {
	m := messagePool.Get().(*Message)
	m.released = false
	return m
}

// FrameCount returns the number of data frames in the message.
func (m *Message) FrameCount() int {
	return len(m.Frames)
}

// PayloadBytes returns the value bytes at the fixed payload offsets of the
// first frame. The second byte reads as zero for single-byte parameters.
func (m *Message) PayloadBytes() (byte, byte) {
	if len(m.Frames) == 0 {
		return 0, 0
	}

	f := m.Frames[0]
	if len(f) <= FrameIndexPayloadFirst {
		return 0, 0
	}

	b0 := f[FrameIndexPayloadFirst]
	var b1 byte
	if len(f) > FrameIndexPayloadSecond {
		b1 = f[FrameIndexPayloadSecond]
	}
	return b0, b1
}

// Release returns the message's storage to the pool. Releasing nil or an
// already-released message is a no-op, so error paths can release
// unconditionally.
func (m *Message) Release() {
	if m == nil || m.released {
		return
	}
	m.released = true
	m.Frames = m.Frames[:0]
	messagePool.Put(m)
}

// Replies the interface uses to signal that a query produced no data.
var noDataReplies = []string{
	"NO DATA",
	"UNABLE TO CONNECT",
	"CAN ERROR",
	"BUS ERROR",
	"STOPPED",
	"?",
}

// parseResponse parses the raw bytes read up to the prompt into a Message.
// Echoed requests, "SEARCHING..." notices, and banner text are skipped. The
// returned message is owned by the caller; on error nothing is retained.
func parseResponse(raw []byte) (*Message, error) {
	msg := newMessage()

	lines := strings.FieldsFunc(string(raw), func(r rune) bool {
		return r == '\r' || r == '\n' || r == rune(ResponsePrompt)
	})
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || line == "SEARCHING..." {
			continue
		}

		for _, reply := range noDataReplies {
			if line == reply {
				msg.Release()
				return nil, errors.Wrapf(ErrNoData, "interface replied %q", line)
			}
		}

		frame, ok := parseFrame(line)
		if !ok {
			continue
		}
		msg.Frames = append(msg.Frames, frame)
	}

	if len(msg.Frames) == 0 {
		msg.Release()
		return nil, ErrNoData
	}
	return msg, nil
}

// parseFrame parses one response line of hex octets. Lines that aren't pure
// hex (banners, prompts) and lines too short to carry a payload (echoed
// requests) are rejected. Octets may be space-separated or packed.
func parseFrame(line string) ([]byte, bool) {
	fields := strings.Fields(line)
	frame := make([]byte, 0, len(fields))

	for _, f := range fields {
		if len(f)%2 != 0 {
			return nil, false
		}
		for i := 0; i < len(f); i += 2 {
			b, err := strconv.ParseUint(f[i:i+2], 16, 8)
			if err != nil {
				return nil, false
			}
			frame = append(frame, byte(b))
		}
	}

	if len(frame) <= FrameHeaderSize {
		return nil, false
	}
	return frame, true
}
