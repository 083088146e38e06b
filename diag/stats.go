//go:build picoatxtdebug

package diag

import "sync/atomic"

// Stats counts protocol-level events since the last Reset. It only
// exists in debug builds (-tags picoatxtdebug), matching the
// debug-hooks idiom used for UART ISR counters elsewhere in the corpus.
type Stats struct {
	FramesOK     uint32
	FramesFailed uint32
	Resends      uint32
	Reinits      uint32
	Reports      uint32
}

var stats Stats

func RecordFrameOK()     { atomic.AddUint32(&stats.FramesOK, 1) }
func RecordFrameFailed() { atomic.AddUint32(&stats.FramesFailed, 1) }
func RecordResend()      { atomic.AddUint32(&stats.Resends, 1) }
func RecordReinit()      { atomic.AddUint32(&stats.Reinits, 1) }
func RecordReport()      { atomic.AddUint32(&stats.Reports, 1) }

// Snapshot returns a point-in-time copy of the counters.
func Snapshot() Stats {
	return Stats{
		FramesOK:     atomic.LoadUint32(&stats.FramesOK),
		FramesFailed: atomic.LoadUint32(&stats.FramesFailed),
		Resends:      atomic.LoadUint32(&stats.Resends),
		Reinits:      atomic.LoadUint32(&stats.Reinits),
		Reports:      atomic.LoadUint32(&stats.Reports),
	}
}

// Reset zeroes every counter.
func Reset() { stats = Stats{} }
