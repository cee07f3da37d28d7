package dasher

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedFetcher struct {
	packets map[string][]Packet
	pos     map[string]int
}

func newScriptedFetcher() *scriptedFetcher {
	return &scriptedFetcher{packets: make(map[string][]Packet), pos: make(map[string]int)}
}

func (f *scriptedFetcher) push(streamID string, pkts ...Packet) {
	f.packets[streamID] = append(f.packets[streamID], pkts...)
}

func (f *scriptedFetcher) Fetch(ctx context.Context, streamID string) (Packet, FetchResult, error) {
	pkts := f.packets[streamID]
	i := f.pos[streamID]
	if i >= len(pkts) {
		return Packet{}, FetchEOS, nil
	}
	f.pos[streamID] = i + 1
	return pkts[i], FetchPacket, nil
}

type recordingConn struct {
	writes []Packet
	starts []bool
}

func (c *recordingConn) WritePacket(ctx context.Context, pkt Packet, segmentStart bool) error {
	c.writes = append(c.writes, pkt)
	c.starts = append(c.starts, segmentStart)
	return nil
}
func (c *recordingConn) Events() <-chan SegmentSizeEvent { return nil }
func (c *recordingConn) Close(ctx context.Context) error { return nil }

func basicStream(repID string, timescale uint32, dashDur float64) *Stream {
	return &Stream{ID: repID, RepID: repID, Timescale: timescale, DashDur: dashDur, repIndex: -1, asIndex: -1}
}

func TestSchedulerDropsPacketsUntilFirstSAP(t *testing.T) {
	fetcher := newScriptedFetcher()
	fetcher.push("v1",
		Packet{CTS: 0, SAP: 0, Duration: 10},
		Packet{CTS: 10, SAP: 1, Duration: 10},
	)
	s := basicStream("v1", 100, 1)
	p := &Period{Streams: []*Stream{s}}
	sch := NewScheduler(fetcher, DefaultOptions())
	conn := &recordingConn{}
	sch.AttachConnection("v1", conn)

	_, err := sch.StepPeriod(context.Background(), p)
	require.NoError(t, err)
	assert.False(t, s.Counters.RepInit)
	assert.Empty(t, conn.writes)

	_, err = sch.StepPeriod(context.Background(), p)
	require.NoError(t, err)
	assert.True(t, s.Counters.RepInit)
	require.Len(t, conn.writes, 1)
	assert.True(t, conn.starts[0])
}

func TestSchedulerBoundaryTestClosesSegmentOnSAP(t *testing.T) {
	fetcher := newScriptedFetcher()
	fetcher.push("v1",
		Packet{CTS: 0, SAP: 1, Duration: 100},
		Packet{CTS: 100, SAP: 0, Duration: 100},
		Packet{CTS: 200, SAP: 1, Duration: 100}, // triggers boundary close
	)
	s := basicStream("v1", 100, 2) // 2s target -> 200 ticks
	p := &Period{Streams: []*Stream{s}}
	opts := DefaultOptions()
	sch := NewScheduler(fetcher, opts)
	conn := &recordingConn{}
	sch.AttachConnection("v1", conn)

	for i := 0; i < 3; i++ {
		_, err := sch.StepPeriod(context.Background(), p)
		require.NoError(t, err)
	}

	assert.Equal(t, uint32(1), s.Counters.SegNumber)
	assert.True(t, s.Counters.SegDone)
	require.Len(t, conn.writes, 2, "only the first two packets belong to the closed segment")
}

func TestSchedulerEOSFlushesOpenSegment(t *testing.T) {
	fetcher := newScriptedFetcher()
	fetcher.push("v1", Packet{CTS: 0, SAP: 1, Duration: 100})
	s := basicStream("v1", 100, 2)
	p := &Period{Streams: []*Stream{s}}
	sch := NewScheduler(fetcher, DefaultOptions())
	conn := &recordingConn{}
	sch.AttachConnection("v1", conn)

	_, err := sch.StepPeriod(context.Background(), p) // emits packet
	require.NoError(t, err)
	_, err = sch.StepPeriod(context.Background(), p) // EOS
	require.NoError(t, err)

	assert.Equal(t, DoneEOS, s.Done)
	assert.Equal(t, uint32(1), s.Counters.SegNumber)
}

func TestSchedulerMuxWaitBlocksUntilBaseCatchesUp(t *testing.T) {
	fetcher := newScriptedFetcher()
	fetcher.push("base", Packet{CTS: 0, SAP: 1, Duration: 50})
	fetcher.push("comp", Packet{CTS: 0, SAP: 1, Duration: 50}, Packet{CTS: 50, SAP: 1, Duration: 50})

	base := basicStream("base", 100, 10)
	comp := basicStream("comp", 100, 10)
	comp.MuxedBase = "base"
	p := &Period{Streams: []*Stream{base, comp}}
	sch := NewScheduler(fetcher, DefaultOptions())
	sch.AttachConnection("base", &recordingConn{})
	compConn := &recordingConn{}
	sch.AttachConnection("comp", compConn)

	_, err := sch.StepPeriod(context.Background(), p)
	require.NoError(t, err)
	require.Len(t, compConn.writes, 1, "comp may emit its first packet since base has already reached cts=0")

	_, err = sch.StepPeriod(context.Background(), p)
	require.NoError(t, err)
	assert.Len(t, compConn.writes, 1, "comp must wait for base to advance past cts=50 before emitting its second packet")
}

func TestSchedulerSubdurExceeded(t *testing.T) {
	fetcher := newScriptedFetcher()
	fetcher.push("v1", Packet{CTS: 0, SAP: 1, Duration: 1000})
	s := basicStream("v1", 100, 2)
	p := &Period{Streams: []*Stream{s}}
	opts := DefaultOptions()
	opts.Subdur = 5 * time.Second
	sch := NewScheduler(fetcher, opts)
	sch.AttachConnection("v1", &recordingConn{})

	_, err := sch.StepPeriod(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, DoneSubdurExceeded, s.Done)
}

func TestCheckCrossRepTruncationSetsForceRepEndOnLaggards(t *testing.T) {
	finished := basicStream("v1", 100, 2)
	finished.Done = DoneEOS
	finished.Counters.FirstCTSInNextSeg = 500
	laggard := basicStream("v2", 50, 2)
	laggard.asIndex = 0
	finished.asIndex = 0

	p := &Period{
		Streams:        []*Stream{finished, laggard},
		AdaptationSets: []*AdaptationSet{{}},
	}

	checkCrossRepTruncation(p, Options{CheckDur: true})

	assert.Equal(t, int64(250), laggard.Counters.ForceRepEnd, "250 ticks at timescale 50 == 500 ticks at timescale 100")
}

func TestRescale(t *testing.T) {
	assert.Equal(t, int64(250), rescale(500, 100, 50))
	assert.Equal(t, int64(500), rescale(500, 0, 50))
}

func TestSchedulerSplitReplaysRemainderAsRedundant(t *testing.T) {
	fetcher := newScriptedFetcher()
	fetcher.push("txt",
		Packet{CTS: 0, SAP: 1, Duration: 100},
		Packet{CTS: 100, SAP: 1, Duration: 100}, // straddles the 180-tick boundary
		Packet{CTS: 200, SAP: 0, Duration: 100},
	)
	s := basicStream("txt", 100, 1.8) // dash_dur 1.8s at timescale 100 -> 180 ticks
	s.Splitable = true
	p := &Period{Streams: []*Stream{s}}
	sch := NewScheduler(fetcher, DefaultOptions())
	conn := &recordingConn{}
	sch.AttachConnection("txt", conn)

	for i := 0; i < 4; i++ {
		_, err := sch.StepPeriod(context.Background(), p)
		require.NoError(t, err)
	}

	require.Len(t, conn.writes, 4, "straddling sample splits into two carried packets")

	first, second := conn.writes[1], conn.writes[2]
	assert.Equal(t, int64(80), first.Duration, "first half ends exactly on the boundary")
	assert.Equal(t, SAPType(1), first.SAP, "first half keeps its original SAP")
	assert.Equal(t, int64(20), second.Duration, "remainder carries the rest of the original duration")
	assert.Equal(t, SAPRedundant, second.SAP, "remainder is tagged redundant, not the first half")
	assert.True(t, conn.starts[2], "remainder opens the next segment")
	assert.Equal(t, int64(100), first.Duration+second.Duration, "split durations sum to the original duration")
}

func TestSchedulerStampsForceTimescaleOnEmit(t *testing.T) {
	fetcher := newScriptedFetcher()
	fetcher.push("v2", Packet{CTS: 300, DTS: 300, SAP: 1, Duration: 300})
	s := basicStream("v2", 30000, 2)
	s.ForceTimescale = 90000
	p := &Period{Streams: []*Stream{s}}
	sch := NewScheduler(fetcher, DefaultOptions())
	conn := &recordingConn{}
	sch.AttachConnection("v2", conn)

	_, err := sch.StepPeriod(context.Background(), p)
	require.NoError(t, err)

	require.Len(t, conn.writes, 1)
	assert.Equal(t, int64(900), conn.writes[0].CTS, "rescaled from 30000 to 90000")
	assert.Equal(t, int64(900), conn.writes[0].Duration)
}

func TestSchedulerStampsFileNumberOnSegmentStart(t *testing.T) {
	fetcher := newScriptedFetcher()
	fetcher.push("v1", Packet{CTS: 0, SAP: 1, Duration: 100})
	s := basicStream("v1", 100, 2)
	p := &Period{Streams: []*Stream{s}}
	sch := NewScheduler(fetcher, DefaultOptions())
	conn := &recordingConn{}
	sch.AttachConnection("v1", conn)

	_, err := sch.StepPeriod(context.Background(), p)
	require.NoError(t, err)

	require.Len(t, conn.writes, 1)
	assert.Equal(t, s.Counters.SegNumber, conn.writes[0].FileNumber)
}

func TestSchedulerNTPModes(t *testing.T) {
	for _, mode := range []NTPMode{NTPRemove, NTPYes, NTPKeep} {
		fetcher := newScriptedFetcher()
		fetcher.push("v1", Packet{CTS: 0, SAP: 1, Duration: 100, SenderNTP: 123})
		s := basicStream("v1", 100, 2)
		p := &Period{Streams: []*Stream{s}}
		opts := DefaultOptions()
		opts.NTP = mode
		opts.ForTest = true
		sch := NewScheduler(fetcher, opts)
		conn := &recordingConn{}
		sch.AttachConnection("v1", conn)

		_, err := sch.StepPeriod(context.Background(), p)
		require.NoError(t, err)
		require.Len(t, conn.writes, 1)

		switch mode {
		case NTPRemove:
			assert.Equal(t, uint64(0), conn.writes[0].SenderNTP)
		case NTPYes:
			assert.Equal(t, uint64(0), conn.writes[0].SenderNTP, "ForTest suppresses the wall-clock stamp")
		case NTPKeep:
			assert.Equal(t, uint64(123), conn.writes[0].SenderNTP, "carried through unchanged")
		}
	}
}

func TestManifestTimescalePrefersOwnerOverMember(t *testing.T) {
	owner := basicStream("owner", 48000, 2)
	member := basicStream("member", 90000, 2)
	owner.asIndex, member.asIndex = 0, 0
	p := &Period{
		Streams:        []*Stream{owner, member},
		AdaptationSets: []*AdaptationSet{{ownerStreamIndex: 0}},
	}
	sch := NewScheduler(newScriptedFetcher(), DefaultOptions())

	assert.Equal(t, uint32(48000), sch.manifestTimescale(p, owner))
	assert.Equal(t, uint32(48000), sch.manifestTimescale(p, member),
		"a shared-timeline member rescales onto the owner's declared timescale, not its own")
}

func TestFlushSegmentRescalesIntoSharedTimeline(t *testing.T) {
	fetcher := newScriptedFetcher()
	fetcher.push("owner",
		Packet{CTS: 0, SAP: 1, Duration: 48000},
		Packet{CTS: 48000, SAP: 1, Duration: 48000}, // reaches the 1s boundary, closing the segment
	)
	owner := basicStream("owner", 48000, 1)
	p := &Period{
		Streams:        []*Stream{owner},
		AdaptationSets: []*AdaptationSet{{ownerStreamIndex: 0}},
	}
	owner.asIndex = 0

	sch := NewScheduler(fetcher, DefaultOptions())
	sch.AttachConnection("owner", &recordingConn{})

	for i := 0; i < 2; i++ {
		_, err := sch.StepPeriod(context.Background(), p)
		require.NoError(t, err)
	}

	require.Len(t, p.AdaptationSets[0].Timeline.Entries, 1)
	assert.Equal(t, int64(0), p.AdaptationSets[0].Timeline.Entries[0].T)
	assert.Equal(t, int64(48000), p.AdaptationSets[0].Timeline.Entries[0].D)
}
