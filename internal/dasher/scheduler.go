package dasher

import (
	"context"
	"fmt"
	"time"
)

// Scheduler is the segment scheduler: the hot loop described in spec
// §4.5. It drives one cooperative PacketFetcher per stream, decides
// segment boundaries, and writes carried packets to the Representation's
// muxer connection.
type Scheduler struct {
	fetcher     PacketFetcher
	connections map[string]MuxerConnection
	warnings    []Warning
	opts        Options
}

// NewScheduler creates a Scheduler bound to fetcher, using opts for
// boundary and SAP policy.
func NewScheduler(fetcher PacketFetcher, opts Options) *Scheduler {
	return &Scheduler{
		fetcher:     fetcher,
		connections: make(map[string]MuxerConnection),
		opts:        opts,
	}
}

// AttachConnection registers the muxer connection a Representation
// should receive carried packets on, per the Resolver's decisions
// (spec §4.4).
func (sch *Scheduler) AttachConnection(repID string, conn MuxerConnection) {
	sch.connections[repID] = conn
}

// DetachConnection drops a Representation's connection, used on Period
// teardown (spec §5 "shared-resource policy").
func (sch *Scheduler) DetachConnection(repID string) {
	delete(sch.connections, repID)
}

// Warnings drains and returns every warning accumulated since the last
// call, per spec §7's non-fatal propagation model.
func (sch *Scheduler) Warnings() []Warning {
	out := sch.warnings
	sch.warnings = nil
	return out
}

func (sch *Scheduler) warn(kind WarningKind, repID, msg string) {
	sch.warnings = append(sch.warnings, Warning{Kind: kind, RepresentationID: repID, Message: msg})
}

// StepPeriod fetches at most one packet per running stream in p and
// advances each stream's state machine, per spec §4.5's "one packet at a
// time per stream" input model. It reports whether any stream made
// progress, so the caller (Engine) can distinguish a productive pass
// from one that should yield back to its host loop (spec §5's
// suspension points).
func (sch *Scheduler) StepPeriod(ctx context.Context, p *Period) (progressed bool, err error) {
	for _, s := range p.Streams {
		if s.Done != DoneRunning {
			continue
		}
		advanced, stepErr := sch.stepStream(ctx, p, s)
		if stepErr != nil {
			return progressed, stepErr
		}
		if advanced {
			progressed = true
		}
	}

	checkCrossRepTruncation(p, sch.opts)

	return progressed, nil
}

// stepStream implements the per-packet algorithm of spec §4.5, steps 2-10.
func (sch *Scheduler) stepStream(ctx context.Context, p *Period, s *Stream) (bool, error) {
	var pkt Packet
	var res FetchResult

	if s.Counters.HasPendingRemainder {
		// Replay the remainder of a split sample (spec §4.5 step 5), or
		// the packet that closed the previous segment, before fetching
		// anything new.
		pkt = s.Counters.PendingRemainder
		s.Counters.PendingRemainder = Packet{}
		s.Counters.HasPendingRemainder = false
		res = FetchPacket
	} else {
		var err error
		pkt, res, err = sch.fetcher.Fetch(ctx, s.ID)
		if err != nil {
			return false, newError(CodeIOError, "fetch packet for "+s.ID, err)
		}
	}

	switch res {
	case FetchNoPacket:
		return false, nil
	case FetchEOS:
		s.Done = DoneEOS
		if s.Counters.SegmentStarted {
			s.Counters.FirstCTSInNextSeg = s.Counters.LastCTS
			sch.flushSegment(p, s)
		}
		return true, nil
	}

	// Step 2: rep_init — drop until first SAP.
	if !s.Counters.RepInit {
		if pkt.SAP == 0 {
			return true, nil
		}
		s.Counters.RepInit = true
		s.Counters.FirstCTS = pkt.CTS
		s.Counters.FirstCTSInSeg = 0
		if s.Counters.NextSegStart == 0 {
			step := int64(s.DashDur * float64(s.Timescale))
			if step <= 0 {
				step = 1
			}
			s.Counters.NextSegStart = step
			s.Counters.AdjustedNextSegStart = step
		}
		sch.stampStartsWithSAP(p, s, pkt.SAP)
	}

	// Step 3: seek_to_pck, restored state.
	if s.Counters.SeekToPck > 0 && s.Counters.NbPck < s.Counters.SeekToPck {
		s.Counters.NbPck++
		return true, nil
	}

	// Step 4: translate to period-relative cts.
	relCTS := pkt.CTS - s.Counters.FirstCTS
	relDur := pkt.Duration

	// Step 5: split handling for splitable streams. The current packet
	// is truncated to end exactly on the boundary; the remainder is
	// stored on the stream and replayed as the first sample of the next
	// segment, tagged redundant (spec §4.5 step 5, testable property 6).
	var splitting bool
	var splitBoundary int64
	if s.Splitable && s.Counters.AdjustedNextSegStart > 0 &&
		relCTS < s.Counters.AdjustedNextSegStart && relCTS+relDur > s.Counters.AdjustedNextSegStart {
		splitBoundary = s.Counters.AdjustedNextSegStart
		firstDur := splitBoundary - relCTS
		remainderDur := relDur - firstDur

		s.Counters.PendingRemainder = Packet{
			StreamID: pkt.StreamID,
			CTS:      pkt.CTS + firstDur,
			DTS:      pkt.DTS + firstDur,
			Duration: remainderDur,
			SAP:      SAPRedundant,
			Data:     pkt.Data,
		}
		s.Counters.HasPendingRemainder = true

		relDur = firstDur
		pkt.Duration = firstDur
		splitting = true
	}

	// Step 6: mux wait — don't advance past a muxed base's last_cts.
	if s.MuxedBase != "" {
		if base := findStreamByRepID(p, s.MuxedBase); base != nil {
			if !base.Counters.SegDone && relCTS > base.Counters.LastCTS {
				return false, nil
			}
		}
	}

	// Step 7: forced end.
	if s.Counters.ForceRepEnd > 0 && relCTS >= s.Counters.ForceRepEnd {
		s.Done = DoneEOS
		if s.Counters.SegmentStarted {
			s.Counters.FirstCTSInNextSeg = relCTS
			sch.flushSegment(p, s)
		}
		return true, nil
	}

	// Step 8: boundary test. Skipped for a packet already truncated by
	// step 5: its relCTS sits strictly before the boundary by
	// construction, and the split below handles ending its segment.
	if !splitting && s.Counters.AdjustedNextSegStart > 0 && relCTS >= s.Counters.AdjustedNextSegStart {
		segmentOver := false
		switch {
		case !sch.opts.SAP:
			segmentOver = true
		case pkt.SAP > 0:
			segmentOver = true
			if s.MuxedBase == "" {
				s.Counters.AdjustedNextSegStart = relCTS
			}
			sch.trackSAPType(s, pkt.SAP)
		default:
			sch.warn(WarnInconsistentSAP, s.RepID, "segment boundary reached without a SAP")
			segmentOver = true
		}

		if segmentOver {
			s.Counters.SegDone = true
			s.Counters.FirstCTSInNextSeg = relCTS
			sch.flushSegment(p, s)
			// The boundary packet opens the next segment: replay it on
			// the next call.
			s.Counters.PendingRemainder = pkt
			s.Counters.HasPendingRemainder = true
			return true, nil
		}
	}

	// Step 9/10: emit the carried packet.
	segStart := !s.Counters.SegmentStarted
	if segStart {
		s.Counters.SegDone = false
	}
	s.Counters.SegmentStarted = true

	sch.stampOutputProperties(s, &pkt, segStart)

	if conn, ok := sch.connections[s.RepID]; ok {
		if writeErr := conn.WritePacket(ctx, pkt, segStart); writeErr != nil {
			return false, newError(CodeIOError, "write packet for "+s.RepID, writeErr)
		}
	}

	s.Counters.LastCTS = relCTS
	s.Counters.NbPck++
	s.Counters.CumulatedDur += relDur

	if splitting {
		s.Counters.SegDone = true
		s.Counters.FirstCTSInNextSeg = splitBoundary
		sch.flushSegment(p, s)
		return true, nil
	}

	if sch.opts.Subdur > 0 {
		subdurTicks := int64(sch.opts.Subdur.Seconds() * float64(s.Timescale))
		if subdurTicks > 0 && s.Counters.CumulatedDur >= subdurTicks {
			s.Done = DoneSubdurExceeded
		}
	}

	return true, nil
}

// stampOutputProperties implements spec §4.5 step 10 and the §6 output
// packet properties: FileNumber/FileName are written on the first
// packet of a new segment, SenderNTP is stamped or stripped per
// Options.NTP, and a Stream-level ForceTimescale (spec §3.2/§4.3's
// per-Representation bitstream-switching rescale) is applied to every
// carried timestamp before the packet leaves the scheduler.
func (sch *Scheduler) stampOutputProperties(s *Stream, pkt *Packet, segStart bool) {
	if s.ForceTimescale != 0 && s.ForceTimescale != s.Timescale {
		pkt.CTS = rescale(pkt.CTS, s.Timescale, s.ForceTimescale)
		pkt.DTS = rescale(pkt.DTS, s.Timescale, s.ForceTimescale)
		pkt.Duration = rescale(pkt.Duration, s.Timescale, s.ForceTimescale)
	}

	if segStart {
		pkt.FileNumber = s.Counters.SegNumber
		if !s.TemplateIsSet {
			pkt.FileName = fmt.Sprintf("%s_%d.m4s", s.RepID, s.Counters.SegNumber)
		}
	}

	switch sch.opts.NTP {
	case NTPRemove:
		pkt.SenderNTP = 0
	case NTPYes:
		if segStart {
			if sch.opts.ForTest {
				pkt.SenderNTP = 0
			} else {
				pkt.SenderNTP = ntp64(time.Now())
			}
		}
	case NTPKeep:
		// leave pkt.SenderNTP as carried from the input.
	}
}

// ntp64 converts t to a 64-bit NTP timestamp (32-bit seconds since the
// 1900 epoch in the high word, 32-bit fraction in the low word), per
// the era offset used throughout RTP/RTCP sender reports.
func ntp64(t time.Time) uint64 {
	const ntpEpochOffset = 2208988800 // seconds between 1900-01-01 and 1970-01-01
	secs := uint64(t.Unix()+ntpEpochOffset) << 32
	frac := uint64(float64(t.Nanosecond()) / 1e9 * (1 << 32))
	return secs | frac
}

// trackSAPType counts SAP-3 and SAP-4 boundary packets (spec §4.5 step
// 8) and warns WarnProfileDemoted once any SAP-4 or a second SAP-3 has
// been seen. The configured profile itself is not changed.
func (sch *Scheduler) trackSAPType(s *Stream, sap SAPType) {
	switch {
	case sap >= 4:
		s.Counters.NbSAP4++
	case sap == 3:
		s.Counters.NbSAP3++
	}
	if s.Counters.NbSAP4 > 0 || s.Counters.NbSAP3 > 1 {
		sch.warn(WarnProfileDemoted, s.RepID, "SAP-3/4 occurrence calls for the full profile")
	}
}

// stampStartsWithSAP sets the owning Adaptation Set's StartsWithSAP on
// the first SAP of its first-initialised member (spec §4.5 step 2),
// warning when a later member disagrees.
func (sch *Scheduler) stampStartsWithSAP(p *Period, s *Stream, sap SAPType) {
	idx := s.AdaptationSetIndex()
	if idx < 0 || idx >= len(p.AdaptationSets) {
		return
	}
	set := p.AdaptationSets[idx]
	if set.StartsWithSAP == 0 {
		set.StartsWithSAP = sap
	} else if set.StartsWithSAP != sap {
		sch.warn(WarnSAPTypeMismatch, s.RepID, "SAP type inconsistent with Adaptation Set's starts_with_sap")
	}
}

// flushSegment implements spec §4.6's timeline update and §4.5's
// "flush_segment semantics".
func (sch *Scheduler) flushSegment(p *Period, s *Stream) {
	duration := s.Counters.FirstCTSInNextSeg - s.Counters.FirstCTSInSeg
	segStart := s.Counters.FirstCTSInSeg

	tl := sch.timelineFor(p, s)
	if tl != nil {
		manifestTS := sch.manifestTimescale(p, s)
		tl.Append(rescale(segStart, s.Timescale, manifestTS), rescale(duration, s.Timescale, manifestTS))
	}

	if target := int64(s.DashDur * float64(s.Timescale)); target > 0 {
		if duration < target/2 {
			sch.warn(WarnSegmentDurationDrift, s.RepID, "segment duration below half the target")
		} else if duration > target+target/2 {
			sch.warn(WarnSegmentDurationDrift, s.RepID, "segment duration above 1.5x the target")
		}
	}

	if sch.opts.Align {
		sch.checkAlignment(p, s, duration)
	}

	step := int64(s.DashDur * float64(s.Timescale))
	if step <= 0 {
		step = 1
	}
	s.Counters.NextSegStart += step
	for s.Counters.NextSegStart <= s.Counters.AdjustedNextSegStart {
		s.Counters.NextSegStart += step
		if sch.opts.SkipSeg {
			s.Counters.SegNumber++
		}
	}
	s.Counters.AdjustedNextSegStart = s.Counters.NextSegStart
	s.Counters.SegNumber++

	s.Counters.FirstCTSInSeg = s.Counters.FirstCTSInNextSeg
	s.Counters.SegmentStarted = false
}

// timelineFor returns the shared Adaptation-Set timeline when alignment
// holds (only the owner Representation writes it), or the
// Representation's own timeline otherwise (spec §4.6).
func (sch *Scheduler) timelineFor(p *Period, s *Stream) *SegmentTimeline {
	asIdx := s.AdaptationSetIndex()
	if sch.opts.Align && asIdx >= 0 && asIdx < len(p.AdaptationSets) {
		set := p.AdaptationSets[asIdx]
		if owner := ownerOf(p, set); owner == nil || owner == s {
			return &set.Timeline
		}
		return nil
	}

	repIdx := s.RepresentationIndex()
	if repIdx >= 0 && repIdx < len(p.Representations) {
		return &p.Representations[repIdx].Timeline
	}
	return nil
}

// manifestTimescale returns the timescale that a Stream's recorded
// segment timeline entries must be expressed in (spec §4.6): the
// Stream's ForceTimescale when one is set; otherwise the owner
// Representation's timescale when the Adaptation Set's timeline is
// shared, so mixed-timescale members don't record inconsistent
// durations against one `<SegmentTimeline>`, or the Stream's own
// timescale otherwise.
func (sch *Scheduler) manifestTimescale(p *Period, s *Stream) uint32 {
	if s.ForceTimescale != 0 {
		return s.ForceTimescale
	}
	asIdx := s.AdaptationSetIndex()
	if sch.opts.Align && asIdx >= 0 && asIdx < len(p.AdaptationSets) {
		if owner := ownerOf(p, p.AdaptationSets[asIdx]); owner != nil {
			return owner.Timescale
		}
	}
	return s.Timescale
}

func ownerOf(p *Period, set *AdaptationSet) *Stream {
	if set.ownerStreamIndex < 0 || set.ownerStreamIndex >= len(p.Streams) {
		return nil
	}
	return p.Streams[set.ownerStreamIndex]
}

// checkAlignment implements the 1ms cross-representation alignment
// check of spec §4.5: a disagreeing duration demotes the profile,
// clears alignment, and deep-copies the shared timeline per
// Representation (spec §7 "Profile mismatch").
func (sch *Scheduler) checkAlignment(p *Period, s *Stream, duration int64) {
	asIdx := s.AdaptationSetIndex()
	if asIdx < 0 || asIdx >= len(p.AdaptationSets) {
		return
	}
	set := p.AdaptationSets[asIdx]
	target := int64(s.DashDur * float64(s.Timescale))
	toleranceTicks := int64(float64(s.Timescale) * 0.001)

	if target > 0 {
		diff := duration - target
		if diff < 0 {
			diff = -diff
		}
		if diff > toleranceTicks {
			sch.demoteAlignment(p, set)
			sch.warn(WarnAlignmentExceeded, s.RepID, "segment duration diverged from Adaptation Set target by more than 1ms")
		}
	}
}

// demoteAlignment clears an Adaptation Set's alignment flag and forks
// its shared timeline into each member Representation.
func (sch *Scheduler) demoteAlignment(p *Period, set *AdaptationSet) {
	if !set.Align {
		return
	}
	set.Align = false
	sch.warn(WarnProfileDemoted, "", "profile demoted to full due to alignment mismatch")

	for _, s := range p.Streams {
		if s.AdaptationSetIndex() != indexOfSet(p, set) {
			continue
		}
		repIdx := s.RepresentationIndex()
		if repIdx >= 0 && repIdx < len(p.Representations) {
			p.Representations[repIdx].Timeline.Entries = append(
				[]TimelineEntry(nil), set.Timeline.Entries...,
			)
		}
	}
}

func indexOfSet(p *Period, set *AdaptationSet) int {
	for i, candidate := range p.AdaptationSets {
		if candidate == set {
			return i
		}
	}
	return -1
}

// checkCrossRepTruncation implements spec §4.5's "Cross-representation
// truncation": if any Representation in an AS is done while others are
// not, and CheckDur is on, force the laggards to end at the finished
// Representation's boundary, rescaled to each laggard's timescale.
func checkCrossRepTruncation(p *Period, opts Options) {
	if !opts.CheckDur {
		return
	}

	for asIdx := range p.AdaptationSets {
		var finished *Stream
		var running []*Stream
		for _, s := range p.Streams {
			if s.AdaptationSetIndex() != asIdx {
				continue
			}
			if s.Done != DoneRunning {
				if finished == nil {
					finished = s
				}
			} else {
				running = append(running, s)
			}
		}
		if finished == nil || len(running) == 0 {
			continue
		}
		for _, s := range running {
			if s.Counters.ForceRepEnd > 0 {
				continue
			}
			s.Counters.ForceRepEnd = rescale(finished.Counters.FirstCTSInNextSeg, finished.Timescale, s.Timescale)
		}
	}
}

func rescale(value int64, fromTS, toTS uint32) int64 {
	if fromTS == 0 || fromTS == toTS {
		return value
	}
	return value * int64(toTS) / int64(fromTS)
}

func findStreamByRepID(p *Period, repID string) *Stream {
	for _, s := range p.Streams {
		if s.RepID == repID || s.ID == repID {
			return s
		}
	}
	return nil
}
