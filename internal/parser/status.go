// Package parser turns the worker's stdout into lifecycle statuses.
//
// The worker announces its progress by printing lines that contain a
// fixed marker anywhere in the line, for example:
//
//	[startup] STATUS: DOWNLOADING_DATA
//	STATUS: READY
//
// Every other line is logged and otherwise ignored.
package parser

import (
	"log/slog"
	"strings"
)

// Status is the lifecycle phase announced by a single stdout line.
type Status int

const (
	Unclassified Status = iota
	Downloading
	Extracting
	InitializingEngine
	Ready
)

// NumStatuses is the number of Status values, including Unclassified.
const NumStatuses = int(Ready) + 1

// String returns the status as a metric label.
func (s Status) String() string {
	switch s {
	case Unclassified:
		return "unclassified"
	case Downloading:
		return "downloading"
	case Extracting:
		return "extracting"
	case InitializingEngine:
		return "initializing_engine"
	case Ready:
		return "ready"
	default:
		return "unknown"
	}
}

// Markers are checked in this order; the first one contained in a line wins.
var markers = []struct {
	marker string
	status Status
}{
	{"STATUS: DOWNLOADING_DATA", Downloading},
	{"STATUS: EXTRACTING_DATA", Extracting},
	{"STATUS: INITIALIZING_ENGINE", InitializingEngine},
	{"STATUS: READY", Ready},
}

// Classify maps a line to a Status by substring containment.
// Matching is case-sensitive.
func Classify(line string) Status {
	for _, m := range markers {
		if strings.Contains(line, m.marker) {
			return m.status
		}
	}
	return Unclassified
}

// LineParser consumes one line at a time.
type LineParser interface {
	ParseLine(line string)
}

// StatusSink receives classified statuses in arrival order.
type StatusSink interface {
	HandleStatus(Status)
}

// StatusParser logs every worker line and forwards statuses to a sink.
// ParseLine runs on the reader goroutine; the sink is called synchronously.
type StatusParser struct {
	logger *slog.Logger
	sink   StatusSink
	onLine func(Status)
}

// NewStatusParser creates a parser. onLine, if non-nil, is called for
// every line (including unclassified ones) before the sink.
func NewStatusParser(logger *slog.Logger, sink StatusSink, onLine func(Status)) *StatusParser {
	return &StatusParser{
		logger: logger,
		sink:   sink,
		onLine: onLine,
	}
}

// ParseLine implements LineParser.
func (p *StatusParser) ParseLine(line string) {
	p.logger.Info("backend_line", "line", line)

	status := Classify(line)
	if p.onLine != nil {
		p.onLine(status)
	}
	if status == Unclassified || p.sink == nil {
		return
	}
	p.sink.HandleStatus(status)
}

var _ LineParser = (*StatusParser)(nil)
