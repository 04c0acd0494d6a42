package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/pjones/elm327diag/obd"
)

// noDataPort answers every request with NO DATA, so the first query of a
// pass fails.
type noDataPort struct {
	buf bytes.Buffer
}

func (p *noDataPort) Read(b []byte) (int, error) {
	return p.buf.Read(b)
}

func (p *noDataPort) Write(b []byte) (int, error) {
	p.buf.WriteString("NO DATA\r\r>")
	return len(b), nil
}

func (p *noDataPort) Close() error { return nil }

func TestWriteReport(t *testing.T) {
	conn := obd.NewConnection(obd.NewFakeDevice(0), 0, nil)
	defer conn.Close()

	var out bytes.Buffer
	if err := writeReport(context.Background(), conn, &out); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	if len(lines) != len(obd.Parameters) {
		t.Fatalf("want %d report lines. got: %d.", len(obd.Parameters), len(lines))
	}

	if !strings.HasPrefix(lines[0], "Fuel System Status, ") {
		t.Fatalf("unexpected first line: %q", lines[0])
	}
	for _, line := range lines {
		if !strings.Contains(line, ", ") {
			t.Fatalf("line %q is not in '<name>, <value>' form", line)
		}
	}
}

func TestRunPassPrintsAbortNotice(t *testing.T) {
	conn := obd.NewConnection(&noDataPort{}, 0, nil)
	defer conn.Close()

	var out, status bytes.Buffer
	if err := runPass(context.Background(), conn, &out, &status); err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(status.String(), "report aborted:") {
		t.Fatalf("expected an abort notice. got: %q", status.String())
	}
	if out.Len() != 0 {
		t.Fatalf("aborted pass wrote report lines: %q", out.String())
	}
}

func TestRunPassQuiet(t *testing.T) {
	quiet = true
	defer func() { quiet = false }()

	conn := obd.NewConnection(&noDataPort{}, 0, nil)
	defer conn.Close()

	var out, status bytes.Buffer
	if err := runPass(context.Background(), conn, &out, &status); err != nil {
		t.Fatal(err)
	}

	if status.Len() != 0 {
		t.Fatalf("quiet pass produced status output: %q", status.String())
	}
}
