package obd

import (
	"fmt"
	"io"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"
)

type fakeDevice struct {
	latency time.Duration

	mu     sync.Mutex
	out    []byte
	closed bool
}

// NewFakeDevice returns an io.ReadWriteCloser that behaves like a serial
// port with an ELM327 clone on the other end: AT commands answer OK, mode
// 01 queries for registered PIDs answer a plausible frame, and everything
// else answers the way a real interface would. Reads are delayed by the
// given latency.
func NewFakeDevice(latency time.Duration) io.ReadWriteCloser {
	return &fakeDevice{latency: latency}
}

func (d *fakeDevice) Write(p []byte) (int, error) {
	if d.isClosed() {
		return 0, io.ErrClosedPipe
	}

	cmd := strings.ToUpper(strings.TrimSpace(string(p)))
	switch {
	case strings.HasPrefix(cmd, "ATZ"):
		d.reply("ELM327 v1.5")
	case strings.HasPrefix(cmd, "AT"):
		d.reply("OK")
	default:
		d.replyToQuery(cmd)
	}
	return len(p), nil
}

func (d *fakeDevice) replyToQuery(cmd string) {
	fields := strings.Fields(cmd)
	if len(fields) != 2 {
		d.reply("?")
		return
	}

	mode, err := strconv.ParseUint(fields[0], 16, 8)
	if err != nil {
		d.reply("?")
		return
	}
	pid, err := strconv.ParseUint(fields[1], 16, 8)
	if err != nil {
		d.reply("?")
		return
	}

	param, ok := Parameters[byte(pid)]
	if byte(mode) != ModeCurrentData || !ok {
		d.reply("NO DATA")
		return
	}

	line := fmt.Sprintf("%02X %02X", 0x40|byte(mode), byte(pid))
	for i := 0; i < param.ResponseBytes; i++ {
		line += fmt.Sprintf(" %02X", byte(rand.Intn(20)+1))
	}
	d.reply(line)
}

func (d *fakeDevice) reply(s string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.out = append(d.out, []byte(s+"\r\r>")...)
}

func (d *fakeDevice) Read(p []byte) (int, error) {
	if d.latency > 0 {
		time.Sleep(d.latency)
	}
	if d.isClosed() {
		return 0, io.ErrClosedPipe
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.out) == 0 {
		// mimic a serial read timeout with no data
		time.Sleep(time.Millisecond)
		return 0, nil
	}

	n := copy(p, d.out)
	d.out = d.out[n:]
	return n, nil
}

func (d *fakeDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

func (d *fakeDevice) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}
