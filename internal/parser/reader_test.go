package parser

import (
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"
	"testing/iotest"
)

// collectingParser records every line it is given.
type collectingParser struct {
	lines []string
}

func (p *collectingParser) ParseLine(line string) {
	p.lines = append(p.lines, line)
}

func TestLineReader_Order(t *testing.T) {
	input := "one\ntwo\r\n\nthree"
	p := &collectingParser{}
	r := NewLineReader(strings.NewReader(input), p, nil)

	if err := r.Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := []string{"one", "two", "", "three"}
	if !reflect.DeepEqual(p.lines, want) {
		t.Errorf("lines = %q, want %q", p.lines, want)
	}

	stats := r.Stats()
	if stats.LinesRead != 4 {
		t.Errorf("LinesRead = %d, want 4", stats.LinesRead)
	}
	if stats.BytesRead != int64(len(input)) {
		t.Errorf("BytesRead = %d, want %d", stats.BytesRead, len(input))
	}
}

func TestLineReader_SkipsInvalidUTF8(t *testing.T) {
	input := "STATUS: DOWNLOADING_DATA\n\xff\xfe broken\nSTATUS: READY\n"
	p := &collectingParser{}
	skips := 0
	r := NewLineReader(strings.NewReader(input), p, func() { skips++ })

	if err := r.Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := []string{"STATUS: DOWNLOADING_DATA", "STATUS: READY"}
	if !reflect.DeepEqual(p.lines, want) {
		t.Errorf("lines = %q, want %q", p.lines, want)
	}
	if skips != 1 {
		t.Errorf("onSkip called %d times, want 1", skips)
	}
	if got := r.Stats().LinesSkipped; got != 1 {
		t.Errorf("LinesSkipped = %d, want 1", got)
	}
}

func TestLineReader_TruncatesLongLines(t *testing.T) {
	p := &collectingParser{}
	r := NewLineReader(strings.NewReader("abcdefghijklmnop\nSTATUS: READY\n"), p, nil)
	r.maxLine = 8

	if err := r.Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := []string{"abcdefgh", "STATUS: READY"}
	if len(p.lines) != 2 || p.lines[0] != want[0] {
		t.Errorf("lines = %q, want first %q", p.lines, want[0])
	}
	if got := r.Stats().LinesTruncated; got != 2 {
		// "STATUS: READY" is 13 bytes, also over the test limit.
		t.Errorf("LinesTruncated = %d, want 2", got)
	}
}

func TestLineReader_TruncateKeepsRunes(t *testing.T) {
	p := &collectingParser{}
	// "é" is two bytes; the limit falls inside it.
	r := NewLineReader(strings.NewReader("abcdefgé\n"), p, nil)
	r.maxLine = 8

	if err := r.Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(p.lines) != 1 || p.lines[0] != "abcdefg" {
		t.Errorf("lines = %q, want [abcdefg]", p.lines)
	}
}

func TestLineReader_LineLongerThanBuffer(t *testing.T) {
	long := strings.Repeat("x", 200*1024)
	p := &collectingParser{}
	r := NewLineReader(strings.NewReader(long+"\nSTATUS: READY\n"), p, nil)

	if err := r.Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(p.lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(p.lines))
	}
	if len(p.lines[0]) != MaxLineLength {
		t.Errorf("first line length = %d, want %d", len(p.lines[0]), MaxLineLength)
	}
	if p.lines[1] != "STATUS: READY" {
		t.Errorf("second line = %q", p.lines[1])
	}
}

func TestLineReader_TransportError(t *testing.T) {
	boom := errors.New("pipe broke")
	src := io.MultiReader(strings.NewReader("first\n"), iotest.ErrReader(boom))
	p := &collectingParser{}

	err := NewLineReader(src, p, nil).Run()
	if !errors.Is(err, boom) {
		t.Fatalf("Run() error = %v, want %v", err, boom)
	}
	if len(p.lines) != 1 || p.lines[0] != "first" {
		t.Errorf("lines = %q, want [first]", p.lines)
	}
}

func TestLineReader_EndToEnd(t *testing.T) {
	input := strings.Join([]string{
		"Starting server",
		"STATUS: DOWNLOADING_DATA",
		"STATUS: EXTRACTING_DATA",
		"STATUS: INITIALIZING_ENGINE",
		"STATUS: READY",
		"STATUS: READY",
	}, "\n") + "\n"

	sink := &recordingSink{}
	r := NewLineReader(strings.NewReader(input), NewStatusParser(discardLogger(), sink, nil), nil)
	if err := r.Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := []Status{Downloading, Extracting, InitializingEngine, Ready, Ready}
	if !reflect.DeepEqual(sink.statuses, want) {
		t.Errorf("statuses = %v, want %v", sink.statuses, want)
	}
}
