package observability

import (
	"docchain/internal/platform/logger"
	"docchain/internal/staged"
	"docchain/pkg/domain"
)

// HookObserver reports staged-migration outcomes to a logger and a recorder.
type HookObserver struct {
	log *logger.Logger
	rec Recorder
}

var _ staged.Observer = (*HookObserver)(nil)

// NewHookObserver returns an observer; nil arguments fall back to no-ops.
func NewHookObserver(log *logger.Logger, rec Recorder) *HookObserver {
	if log == nil {
		log = logger.Nop()
	}
	if rec == nil {
		rec = NopRecorder{}
	}
	return &HookObserver{log: log, rec: rec}
}

// Classified counts every classification and warns on unrecognized documents.
func (o *HookObserver) Classified(collection string, c staged.Classification) {
	o.rec.Classification(collection, c.State)
	switch c.State {
	case domain.StateUnrecognized:
		o.log.Warn("document matches neither latest schema nor any migration variant",
			"collection", collection, "reason", c.Reason)
	case domain.StatePending:
		o.log.Debug("staged migration available",
			"collection", collection, "from", c.Staged.FromVersion, "to", c.Staged.ToVersion)
	}
}

// Rejected counts and logs a before-write rejection.
func (o *HookObserver) Rejected(collection, op string, err error) {
	o.rec.Rejection(collection, op)
	o.log.Info("write rejected", "collection", collection, "op", op, "error", err)
}
