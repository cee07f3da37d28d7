package dasher

// TimelineEntry is one `<S t="…" d="…" r="…">` entry of a
// SegmentTimeline, per spec §4.6.
type TimelineEntry struct {
	T int64  // start time, in the Representation's (or AS's shared) timescale
	D int64  // duration
	R int    // repeat count: this entry covers r+1 consecutive segments of duration D
}

// SegmentTimeline accumulates the entries describing every segment
// boundary emitted so far for a shared (Adaptation-Set-level) or
// per-Representation timeline, per spec §3.1/§4.6.
type SegmentTimeline struct {
	Entries []TimelineEntry
}

// Append records a new segment of duration d starting at time t,
// collapsing it into the previous entry's repeat count when the
// duration matches exactly and t continues the previous run without a
// gap (spec §4.6's "run-length compaction").
func (tl *SegmentTimeline) Append(t, d int64) {
	if n := len(tl.Entries); n > 0 {
		last := &tl.Entries[n-1]
		expectedT := last.T + last.D*int64(last.R+1)
		if last.D == d && expectedT == t {
			last.R++
			return
		}
	}
	tl.Entries = append(tl.Entries, TimelineEntry{T: t, D: d})
}

// LastEnd returns the time immediately after the final recorded
// segment, or 0 if the timeline is empty.
func (tl *SegmentTimeline) LastEnd() int64 {
	if n := len(tl.Entries); n > 0 {
		last := tl.Entries[n-1]
		return last.T + last.D*int64(last.R+1)
	}
	return 0
}

// Count returns the total number of segments represented.
func (tl *SegmentTimeline) Count() int {
	total := 0
	for _, e := range tl.Entries {
		total += e.R + 1
	}
	return total
}

// TruncateBefore drops whole entries (and splits a straddling entry)
// so that no segment starting before minT remains, per the
// TimeShiftBufferDepth eviction rule (spec §4.7).
func (tl *SegmentTimeline) TruncateBefore(minT int64) {
	kept := tl.Entries[:0]
	for _, e := range tl.Entries {
		segStart := e.T
		r := e.R
		for r >= 0 && segStart < minT {
			segStart += e.D
			r--
		}
		if r < 0 {
			continue
		}
		kept = append(kept, TimelineEntry{T: segStart, D: e.D, R: r})
	}
	tl.Entries = kept
}

// Reset clears the timeline, used when a Period switch starts a fresh
// Adaptation Set.
func (tl *SegmentTimeline) Reset() {
	tl.Entries = nil
}
