package dasher

import "sort"

// PeriodMachine drives Period lifecycle transitions, per spec §4.2:
// idle → configuring → segmenting → draining → switching → [segmenting | terminal].
type PeriodMachine struct {
	current *Period
	next    *Period
}

// NewPeriodMachine creates a machine with an empty current period.
func NewPeriodMachine() *PeriodMachine {
	return &PeriodMachine{
		current: &Period{State: PeriodIdle},
	}
}

// Current returns the in-progress Period.
func (m *PeriodMachine) Current() *Period { return m.current }

// Next returns the Period accumulating streams for the next switch, or
// nil if none is pending.
func (m *PeriodMachine) Next() *Period { return m.next }

// RequestSwitch moves a Stream from the current Period to the next one,
// creating the next Period on first call, per spec §3.3.
func (m *PeriodMachine) RequestSwitch(s *Stream) {
	if m.next == nil {
		m.next = &Period{State: PeriodIdle}
	}
	m.removeFromCurrent(s)
	m.next.Streams = append(m.next.Streams, s)
}

func (m *PeriodMachine) removeFromCurrent(s *Stream) {
	streams := m.current.Streams
	for i, cs := range streams {
		if cs == s {
			m.current.Streams = append(streams[:i], streams[i+1:]...)
			return
		}
	}
}

// ReadyToSegment reports whether the current period has completed its
// first successful grouping and may transition configuring → segmenting.
func (m *PeriodMachine) ReadyToSegment() bool {
	return m.current.State == PeriodConfiguring && len(m.current.AdaptationSets) > 0
}

// AdvanceToSegmenting performs the configuring → segmenting transition.
func (m *PeriodMachine) AdvanceToSegmenting() {
	if m.current.State == PeriodConfiguring {
		m.current.State = PeriodSegmenting
	}
}

// AllStreamsDone reports whether every non-done-ignored stream in the
// current period has emitted EOS or hit its subdur budget.
func AllStreamsDone(p *Period) bool {
	for _, s := range p.Streams {
		if s.Done == DoneRunning {
			return false
		}
	}
	return true
}

// AdvanceToDraining performs the segmenting → draining transition when
// every stream in the current period is done (spec §4.2).
func (m *PeriodMachine) AdvanceToDraining() {
	if m.current.State == PeriodSegmenting && AllStreamsDone(m.current) {
		m.current.State = PeriodDraining
	}
}

// AdvanceToSwitching performs the draining → switching transition once
// pendingSegCallbacks reaches zero (spec §4.2).
func (m *PeriodMachine) AdvanceToSwitching(pendingSegCallbacks int) {
	if m.current.State == PeriodDraining && pendingSegCallbacks == 0 {
		m.current.State = PeriodSwitching
	}
}

// PromoteNext performs the switching → segmenting (or → terminal)
// transition, rebuilding grouping for the new current period.
//
// The next-period start is computed per spec §4.2: a positive explicit
// start wins (smallest such value); absent any, the most negative
// ordinal start is selected first (-2 before -1). Streams whose
// PeriodID differs from the selected one remain deferred into m.next.
func (m *PeriodMachine) PromoteNext() {
	if m.next == nil || len(m.next.Streams) == 0 {
		m.current.State = PeriodTerminal
		return
	}

	selectedID := selectPeriodID(m.next.Streams)

	promoted := &Period{State: PeriodConfiguring, ID: selectedID}
	var deferred []*Stream
	for _, s := range m.next.Streams {
		if s.PeriodID == selectedID || (s.PeriodID == "" && selectedID == "") {
			promoted.Streams = append(promoted.Streams, s)
		} else {
			deferred = append(deferred, s)
		}
	}

	promoted.Start, promoted.Duration = derivePeriodBounds(promoted.Streams)

	m.current = promoted
	if len(deferred) > 0 {
		m.next = &Period{State: PeriodIdle, Streams: deferred}
	} else {
		m.next = nil
	}
}

// selectPeriodID picks the PeriodID that should become current, per
// spec §4.2's anchor rule.
func selectPeriodID(streams []*Stream) string {
	type candidate struct {
		id    string
		start float64
		has   bool
	}
	var positives []candidate
	var ordinals []candidate
	seen := make(map[string]bool)

	for _, s := range streams {
		if seen[s.PeriodID] {
			continue
		}
		seen[s.PeriodID] = true
		if s.PeriodStart > 0 {
			positives = append(positives, candidate{s.PeriodID, s.PeriodStart, true})
		} else if s.PeriodStart < 0 {
			ordinals = append(ordinals, candidate{s.PeriodID, s.PeriodStart, true})
		} else {
			ordinals = append(ordinals, candidate{s.PeriodID, 0, false})
		}
	}

	if len(positives) > 0 {
		sort.Slice(positives, func(i, j int) bool { return positives[i].start < positives[j].start })
		return positives[0].id
	}
	if len(ordinals) > 0 {
		sort.Slice(ordinals, func(i, j int) bool { return ordinals[i].start < ordinals[j].start })
		return ordinals[0].id
	}
	return ""
}

// derivePeriodBounds computes Start/Duration for a newly promoted
// Period from its streams' PeriodStart/PeriodDur hints, per spec §4.2
// ("update_period_duration reconciliation", SPEC_FULL.md §12).
func derivePeriodBounds(streams []*Stream) (start, duration float64) {
	haveStart := false
	for _, s := range streams {
		if !haveStart || (s.PeriodStart > 0 && s.PeriodStart < start) {
			if s.PeriodStart != 0 {
				start = s.PeriodStart
				haveStart = true
			}
		}
		if s.PeriodDur > duration {
			duration = s.PeriodDur
		}
	}
	return start, duration
}

// TruncateAt sets the current period's Duration so it ends at
// truncateSeconds, used when a later explicit-start period truncates
// the current one (spec §4.2 scenario 4).
func (m *PeriodMachine) TruncateAt(truncateSeconds float64) {
	if truncateSeconds > m.current.Start {
		m.current.Duration = truncateSeconds - m.current.Start
	}
}
