package station

import (
	"log/slog"

	"github.com/sctest/station/internal/diag"
)

// Receiver is the standalone report receiver: it archives every
// DIAGNOSTIC_RAPPORT payload and ignores the other messages.
type Receiver struct {
	archive *Archive
	onSaved func(path string)
}

// NewReceiver creates a Receiver. onSaved, if non-nil, is called with the
// path of each archived report.
func NewReceiver(archive *Archive, onSaved func(path string)) *Receiver {
	return &Receiver{archive: archive, onSaved: onSaved}
}

// HandleMessage implements diag.Handler.
func (r *Receiver) HandleMessage(p diag.Peer, msg diag.Message) {
	if msg.Kind != diag.KindReport {
		slog.Debug("receiver ignoring message", "peer", p.Addr, "kind", msg.Kind.String())
		return
	}
	for _, item := range msg.Report.Skipped {
		slog.Warn("report entry skipped", "entry", item)
	}
	path, err := r.archive.Save(msg.Report)
	if err != nil {
		slog.Error("report rendering failed", "peer", p.Addr, "err", err)
		return
	}
	if r.onSaved != nil {
		r.onSaved(path)
	}
}

// HandleState implements diag.Handler.
func (r *Receiver) HandleState(s diag.State, p diag.Peer) {
	slog.Info("receiver link", "state", s.String(), "peer", p.Addr)
}
