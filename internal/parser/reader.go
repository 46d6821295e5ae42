package parser

import (
	"bufio"
	"errors"
	"io"
	"sync/atomic"
	"unicode/utf8"
)

// MaxLineLength bounds a single line; longer lines are truncated.
const MaxLineLength = 64 * 1024

// ReaderStats is a snapshot of a LineReader's counters.
type ReaderStats struct {
	BytesRead      int64
	LinesRead      int64 // lines handed to the parser
	LinesSkipped   int64 // lines dropped because they were not valid UTF-8
	LinesTruncated int64
}

// LineReader reads lines from a pipe and hands each one to a parser
// before reading the next. Nothing is dropped except undecodable lines.
type LineReader struct {
	reader  io.Reader
	parser  LineParser
	maxLine int
	onSkip  func()

	bytesRead      atomic.Int64
	linesRead      atomic.Int64
	linesSkipped   atomic.Int64
	linesTruncated atomic.Int64
}

// NewLineReader creates a reader feeding parser. onSkip, if non-nil, is
// called for every skipped line.
func NewLineReader(r io.Reader, parser LineParser, onSkip func()) *LineReader {
	return &LineReader{
		reader:  r,
		parser:  parser,
		maxLine: MaxLineLength,
		onSkip:  onSkip,
	}
}

// Run reads until EOF or a transport error. EOF returns nil.
func (r *LineReader) Run() error {
	br := bufio.NewReaderSize(r.reader, 64*1024)

	for {
		line, truncated, err := r.readLine(br)
		if len(line) > 0 || err == nil {
			r.handle(line, truncated)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

func (r *LineReader) handle(line []byte, truncated bool) {
	if !utf8.Valid(line) {
		r.linesSkipped.Add(1)
		if r.onSkip != nil {
			r.onSkip()
		}
		return
	}
	if truncated {
		r.linesTruncated.Add(1)
	}
	r.linesRead.Add(1)
	r.parser.ParseLine(string(line))
}

// readLine returns one line without its terminator. Bytes beyond the
// limit are consumed and discarded.
func (r *LineReader) readLine(br *bufio.Reader) ([]byte, bool, error) {
	var (
		buf     []byte
		dropped bool
	)
	// Room for the limit plus "\r\n".
	limit := r.maxLine + 2

	for {
		chunk, err := br.ReadSlice('\n')
		r.bytesRead.Add(int64(len(chunk)))

		room := limit - len(buf)
		if len(chunk) > room {
			buf = append(buf, chunk[:room]...)
			dropped = true
		} else {
			buf = append(buf, chunk...)
		}

		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}

		if !dropped {
			buf = trimEOL(buf)
		}

		truncated := dropped
		if len(buf) > r.maxLine {
			cut := r.maxLine
			for cut > 0 && !utf8.RuneStart(buf[cut]) {
				cut--
			}
			buf = buf[:cut]
			truncated = true
		}
		return buf, truncated, err
	}
}

func trimEOL(b []byte) []byte {
	if n := len(b); n > 0 && b[n-1] == '\n' {
		b = b[:n-1]
	}
	if n := len(b); n > 0 && b[n-1] == '\r' {
		b = b[:n-1]
	}
	return b
}

// Stats returns a snapshot of the reader's counters.
func (r *LineReader) Stats() ReaderStats {
	return ReaderStats{
		BytesRead:      r.bytesRead.Load(),
		LinesRead:      r.linesRead.Load(),
		LinesSkipped:   r.linesSkipped.Load(),
		LinesTruncated: r.linesTruncated.Load(),
	}
}
