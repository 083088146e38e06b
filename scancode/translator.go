package scancode

import "github.com/drew-gpf/picoatxt"

// EventKind classifies what a Translator.Feed call produced.
type EventKind uint8

const (
	// EventNone means the byte was consumed internally (a prefix, a
	// break_next marker, or a none entry) with nothing to report.
	EventNone EventKind = iota
	// EventKey carries a resolved (usage, make/break) pair.
	EventKey
	// EventOverrun means the bitmap must be cleared entirely.
	EventOverrun
)

type Event struct {
	Kind  EventKind
	Usage picoatxt.Usage
	Make  bool
}

// Translator holds the per-connection scan-code decoding state described
// in spec.md §4.2: the table chosen once at init (by protocol) and the
// shift/is_break state mutated byte by byte.
type Translator struct {
	table   *scanTable
	shift   shiftState
	isBreak bool // AT only
}

// NewTranslator returns a Translator bound to the table for protocol.
func NewTranslator(p picoatxt.Protocol) *Translator {
	t := &atTable
	if p == picoatxt.ProtocolXT {
		t = &xtTable
	}
	return &Translator{table: t, shift: shiftNormal}
}

// Feed processes one dequeued scan-code byte and returns what it
// resolved to, per the dispatch table in spec.md §4.2.
func (t *Translator) Feed(b byte) Event {
	entry := t.table[t.shift][b]

	switch entry.kind {
	case entryOverrun:
		t.shift = shiftNormal
		t.isBreak = false
		return Event{Kind: EventOverrun}

	case entryBreakNext:
		t.isBreak = true
		return Event{Kind: EventNone}

	case entryExtended:
		t.shift = entry.next
		return Event{Kind: EventNone}

	case entryBreakCode:
		base := t.table[t.shift][b&0x7F]
		t.shift = shiftNormal
		t.isBreak = false
		return Event{Kind: EventKey, Usage: base.usage, Make: false}

	case entryUsage:
		ev := Event{Kind: EventKey, Usage: entry.usage, Make: !t.isBreak}
		t.shift = shiftNormal
		t.isBreak = false
		return ev

	default: // entryNone
		t.shift = shiftNormal
		t.isBreak = false
		return Event{Kind: EventNone}
	}
}
