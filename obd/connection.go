package obd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Connection provides high-level methods for querying a vehicle through an
// ELM327-compatible interface attached to a byte-stream port.
type Connection struct {
	port    io.ReadWriteCloser
	timeout time.Duration
	logger  Logger

	// mu serializes access to the port; at most one command is in flight.
	mu sync.Mutex
}

// DefaultQueryTimeout bounds the wait for a complete response frame.
const DefaultQueryTimeout time.Duration = 3000 * time.Millisecond

// NewConnection returns a new Connection over the given port. A
// non-positive timeout selects DefaultQueryTimeout. A nil logger disables
// logging.
func NewConnection(port io.ReadWriteCloser, timeout time.Duration, l Logger) *Connection {
	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}
	if l == nil {
		l = NopLogger
	}
	return &Connection{
		port:    port,
		timeout: timeout,
		logger:  l,
	}
}

var (
	// ErrNoData is returned when the interface answers a query with no
	// usable data frames.
	ErrNoData = errors.New("no data returned by the interface")

	// ErrReadTimeout is returned when reading a response times out.
	ErrReadTimeout = errors.New("the read operation timed out")
)

// initCommands puts the interface into a known state: reset, echo off,
// linefeeds off, automatic protocol selection.
var initCommands = []string{"ATZ", "ATE0", "ATL0", "ATSP0"}

// Initialize runs the AT handshake that puts the interface into a known
// good state before the first query.
func (c *Connection) Initialize(ctx context.Context) error {
	for _, cmd := range initCommands {
		reply, err := c.Command(ctx, cmd)
		if err != nil {
			return errors.Wrapf(err, "sending %s", cmd)
		}
		c.logger.Debugf("%s: %s\n", cmd, reply)
	}
	return nil
}

// Command sends a raw command (typically AT) and returns the interface's
// textual reply with the echo and prompt stripped.
func (c *Connection) Command(ctx context.Context, cmd string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	raw, err := c.exchange(ctx, append([]byte(cmd), RequestTerminator))
	if err != nil {
		return "", err
	}

	var replies []string
	for _, line := range strings.FieldsFunc(string(raw), func(r rune) bool {
		return r == '\r' || r == '\n' || r == rune(ResponsePrompt)
	}) {
		line = strings.TrimSpace(line)
		if line == "" || line == cmd {
			continue
		}
		replies = append(replies, line)
	}
	return strings.Join(replies, " "), nil
}

// Query sends a single mode/PID request and returns the parsed response
// message. The caller owns the message and must release it.
func (c *Connection) Query(ctx context.Context, mode, pid byte) (*Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	raw, err := c.exchange(ctx, newRequest(mode, pid))
	if err != nil {
		return nil, err
	}

	return parseResponse(raw)
}

// QueryParameter performs one query for the given parameter and decodes its
// payload. The response message is released before returning on every path,
// success or failure.
func (c *Connection) QueryParameter(ctx context.Context, mode byte, p Parameter) (ParameterValue, error) {
	msg, err := c.Query(ctx, mode, p.Command)
	if err != nil {
		msg.Release()
		return ParameterValue{}, errors.Wrapf(err, "querying %s", p.Name)
	}
	defer msg.Release()

	b0, b1 := msg.PayloadBytes()
	return ParameterValue{
		Value: p.Decoder.Value(b0, b1),
		Unit:  p.Unit,
	}, nil
}

// exchange writes one request, reads until the prompt, and flushes any
// residual input so the next request starts from a clean buffer. The caller
// must hold c.mu.
func (c *Connection) exchange(ctx context.Context, req []byte) ([]byte, error) {
	logBytes(c.logger, req, "sending: ")

	n, err := c.port.Write(req)
	if err != nil {
		return nil, errors.Wrap(err, "writing request")
	}
	if n != len(req) {
		return nil, errors.Errorf("short write: %d of %d bytes", n, len(req))
	}

	raw, err := c.readUntilPrompt(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "reading response")
	}

	c.flush()
	return raw, nil
}

type readResult struct {
	data []byte
	err  error
}

// readUntilPrompt reads from the port until the interface's prompt is seen
// or the configured timeout elapses. On timeout or cancellation the
// in-flight read is abandoned; the reading goroutine notices the deadline
// and discards whatever it accumulated. Until that deadline passes the
// abandoned reader is still draining the port; c.mu does not cover it, so
// an exchange started inside that window can lose its opening bytes.
func (c *Connection) readUntilPrompt(ctx context.Context) ([]byte, error) {
	deadline := time.Now().Add(c.timeout)
	result := make(chan readResult, 1)

	go func(result chan<- readResult, deadline time.Time) {
		data := make([]byte, 0, 64)
		buf := make([]byte, 64)
		for {
			if time.Now().After(deadline) {
				result <- readResult{nil, ErrReadTimeout}
				return
			}

			count, err := c.port.Read(buf)
			if count > 0 {
				logBytes(c.logger, buf[:count], "read: ")
				data = append(data, buf[:count]...)
				if bytes.IndexByte(buf[:count], ResponsePrompt) >= 0 {
					result <- readResult{data, nil}
					return
				}
			}
			if err != nil {
				result <- readResult{data, err}
				return
			}
		}
	}(result, deadline)

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.NewTimer(c.timeout).C:
		return nil, ErrReadTimeout
	case r := <-result:
		if r.err != nil {
			return nil, errors.Wrap(r.err, "reading from port")
		}
		return r.data, nil
	}
}

// flush discards any bytes still queued on the port so the next request
// starts in a known state. Ports without buffer control are left as-is.
func (c *Connection) flush() {
	type inputResetter interface {
		ResetInputBuffer() error
	}
	if r, ok := c.port.(inputResetter); ok {
		if err := r.ResetInputBuffer(); err != nil {
			c.logger.Debugf("flushing input buffer: %v\n", err)
		}
	}
}

func (c *Connection) Close() error {
	c.logger.Debug("closing connection")

	if c.port != nil {
		return c.port.Close()
	}

	return nil
}

type Logger interface {
	Debug(message string)
	Debugf(message string, args ...interface{})
}

type nopLogger struct{}

func (l nopLogger) Debug(message string) {}

func (l nopLogger) Debugf(message string, args ...interface{}) {}

var NopLogger Logger = nopLogger{}

type defaultLogger struct {
	l *log.Logger
}

func (l *defaultLogger) Debug(message string) {
	l.l.Println(message)
}

func (l *defaultLogger) Debugf(message string, args ...interface{}) {
	l.l.Printf(message, args...)
}

var DefaultLogger = func(out io.Writer) Logger {
	return &defaultLogger{log.New(out, "ELM327 ", log.LstdFlags)}
}

func logBytes(l Logger, b []byte, prefix string) {
	s := prefix
	for _, bb := range b {
		s += fmt.Sprintf("0x%x ", bb)
	}
	l.Debug(s)
}
