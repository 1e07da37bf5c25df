package monitoring

import (
	"time"

	"github.com/rs/zerolog/log"
)

// FacilitatorCallLog is the supplemental diagnostic record for one verify or
// settle RPC: non-authoritative, never read by the pipeline, useful only
// for operators debugging a misbehaving facilitator.
type FacilitatorCallLog struct {
	RPC        string
	HTTPStatus int
	Duration   time.Duration
	Err        error
}

// LogFacilitatorCall records a FacilitatorCallLog entry. It never returns an
// error and never blocks the caller on anything slower than a log write —
// the pipeline's Verify/Settle timing must not depend on this succeeding.
func LogFacilitatorCall(entry FacilitatorCallLog) {
	ev := log.Info()
	if entry.Err != nil {
		ev = log.Warn()
	}
	ev.Str("rpc", entry.RPC).
		Int("http_status", entry.HTTPStatus).
		Dur("duration", entry.Duration).
		AnErr("error", entry.Err).
		Msg("facilitator call")
}
