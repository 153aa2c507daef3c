package diag

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Decode errors. ErrNoStatus marks a TEST_ message without a recognized
// status suffix; it has no mapping and is dropped without a warning.
var (
	ErrUnknownMessage = errors.New("unknown message")
	ErrMalformed      = errors.New("malformed message")
	ErrNoStatus       = errors.New("test result without status suffix")
)

// Result is the outcome of one test.
type Result int

const (
	Untested Result = iota
	Pass
	Fail
)

// String returns the report wire token for r.
func (r Result) String() string {
	switch r {
	case Pass:
		return "OK"
	case Fail:
		return "KO"
	default:
		return "NON_TESTE"
	}
}

// ParseResult parses a report status token (OK, KO, NON_TESTE).
func ParseResult(s string) (Result, error) {
	switch strings.TrimSpace(s) {
	case "OK":
		return Pass, nil
	case "KO":
		return Fail, nil
	case "NON_TESTE":
		return Untested, nil
	}
	return Untested, fmt.Errorf("%w: status %q", ErrMalformed, s)
}

// Entry is one line of a report.
type Entry struct {
	Label  string
	Result Result
}

// Report is an ordered snapshot of test results.
type Report struct {
	Entries []Entry
	Skipped []string // payload entries dropped while parsing
}

// Battery is the companion's battery status.
type Battery struct {
	Level int    `json:"level"` // percent
	State string `json:"state"` // e.g. "charging"
}

// Kind identifies the shape of a decoded message.
type Kind int

const (
	KindResult  Kind = iota + 1 // TEST_<ID>_OK / TEST_<ID>_FAIL
	KindTrigger                 // TRIGGERED:<ID>
	KindReport                  // DIAGNOSTIC_RAPPORT:<entries>
	KindBattery                 // INFO_BATTERY:<level>|<state>
)

func (k Kind) String() string {
	switch k {
	case KindResult:
		return "result"
	case KindTrigger:
		return "trigger"
	case KindReport:
		return "report"
	case KindBattery:
		return "battery"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Message is a decoded inbound message. Only the fields of its Kind are set.
type Message struct {
	Kind    Kind
	WireID  string  // KindResult, KindTrigger
	Passed  bool    // KindResult
	Report  Report  // KindReport
	Battery Battery // KindBattery
}

// Decode parses one inbound message. Surrounding whitespace is ignored.
func Decode(raw string) (Message, error) {
	s := strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(s, PrefixResult):
		return decodeResult(s)
	case strings.HasPrefix(s, PrefixTrigger):
		id := strings.TrimSpace(strings.TrimPrefix(s, PrefixTrigger))
		if id == "" {
			return Message{}, fmt.Errorf("%w: %q", ErrMalformed, s)
		}
		return Message{Kind: KindTrigger, WireID: id}, nil
	case strings.HasPrefix(s, PrefixReport):
		rep, err := ParseReport(strings.TrimPrefix(s, PrefixReport))
		if err != nil {
			return Message{}, err
		}
		return Message{Kind: KindReport, Report: rep}, nil
	case strings.HasPrefix(s, PrefixBattery):
		b, err := parseBattery(strings.TrimPrefix(s, PrefixBattery))
		if err != nil {
			return Message{}, err
		}
		return Message{Kind: KindBattery, Battery: b}, nil
	}
	return Message{}, fmt.Errorf("%w: %q", ErrUnknownMessage, s)
}

func decodeResult(s string) (Message, error) {
	body := strings.TrimPrefix(s, PrefixResult)
	var (
		id     string
		passed bool
	)
	switch {
	case strings.HasSuffix(body, SuffixPass):
		id, passed = strings.TrimSuffix(body, SuffixPass), true
	case strings.HasSuffix(body, SuffixFail):
		id = strings.TrimSuffix(body, SuffixFail)
	default:
		return Message{}, fmt.Errorf("%w: %q", ErrNoStatus, s)
	}
	if id == "" {
		return Message{}, fmt.Errorf("%w: %q", ErrMalformed, s)
	}
	return Message{Kind: KindResult, WireID: id, Passed: passed}, nil
}

// ParseReport parses a report payload "<label>:<status>;...". Entries that
// cannot be parsed are listed in Skipped. A repeated label keeps its first
// position and takes the last status.
func ParseReport(payload string) (Report, error) {
	var rep Report
	index := make(map[string]int)
	for _, item := range strings.Split(payload, reportEntrySep) {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		i := strings.LastIndex(item, reportFieldSep)
		if i <= 0 {
			rep.Skipped = append(rep.Skipped, item)
			continue
		}
		label := strings.TrimSpace(item[:i])
		res, err := ParseResult(item[i+1:])
		if label == "" || err != nil {
			rep.Skipped = append(rep.Skipped, item)
			continue
		}
		if at, seen := index[label]; seen {
			rep.Entries[at].Result = res
			continue
		}
		index[label] = len(rep.Entries)
		rep.Entries = append(rep.Entries, Entry{Label: label, Result: res})
	}
	if len(rep.Entries) == 0 {
		return Report{}, fmt.Errorf("%w: report has no valid entry", ErrMalformed)
	}
	return rep, nil
}

func parseBattery(payload string) (Battery, error) {
	level, state, ok := strings.Cut(payload, batteryFieldSep)
	if !ok {
		return Battery{}, fmt.Errorf("%w: battery %q", ErrMalformed, payload)
	}
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(level), "%"))
	if err != nil || n < 0 || n > 100 {
		return Battery{}, fmt.Errorf("%w: battery level %q", ErrMalformed, level)
	}
	return Battery{Level: n, State: strings.TrimSpace(state)}, nil
}

// Encode renders m in its wire form.
func (m Message) Encode() string {
	switch m.Kind {
	case KindResult:
		if m.Passed {
			return PrefixResult + m.WireID + SuffixPass
		}
		return PrefixResult + m.WireID + SuffixFail
	case KindTrigger:
		return PrefixTrigger + m.WireID
	case KindReport:
		parts := make([]string, len(m.Report.Entries))
		for i, e := range m.Report.Entries {
			parts[i] = e.Label + reportFieldSep + e.Result.String()
		}
		return PrefixReport + strings.Join(parts, reportEntrySep)
	case KindBattery:
		return PrefixBattery + strconv.Itoa(m.Battery.Level) + batteryFieldSep + m.Battery.State
	}
	return ""
}

// EncodeCommand builds the desktop -> mobile command asking the companion
// to run a test: the bare wire identifier.
func EncodeCommand(wireID string) []byte {
	return []byte(wireID)
}

// SplitChunk splits one socket read into messages. A sender that does not
// terminate messages with a newline yields one message per chunk.
func SplitChunk(chunk []byte) []string {
	var out []string
	for _, line := range strings.Split(string(chunk), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
