package station

import (
	"fmt"
	"time"

	"github.com/sctest/station/internal/diag"
)

// EventKind identifies what changed.
type EventKind int

const (
	EventLink           EventKind = iota + 1 // companion connected or disconnected
	EventResult                              // a test result was recorded
	EventConfirmRequest                      // the companion asks the operator to judge a test
	EventBattery                             // battery info received
	EventReport                              // a report artifact was written (or failed)
)

func (k EventKind) String() string {
	switch k {
	case EventLink:
		return "link"
	case EventResult:
		return "result"
	case EventConfirmRequest:
		return "confirm"
	case EventBattery:
		return "battery"
	case EventReport:
		return "report"
	}
	return fmt.Sprintf("event(%d)", int(k))
}

// Event is an immutable notification published by the station loop for the
// presentation layer. Only the fields relevant to Kind are set.
type Event struct {
	Kind EventKind
	At   time.Time

	Link diag.State // EventLink
	Peer diag.Peer  // EventLink

	Label  string      // EventResult, EventConfirmRequest
	WireID string      // EventResult, EventConfirmRequest
	Result diag.Result // EventResult
	Manual bool        // EventResult: judged by the operator

	Battery diag.Battery // EventBattery

	Path    string // EventReport
	Entries int    // EventReport
	Err     error  // EventReport
}
