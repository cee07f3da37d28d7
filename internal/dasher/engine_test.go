package dasher

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, fetcher PacketFetcher) *Engine {
	t.Helper()
	exp := &fakeExpander{usesSource: map[string]bool{}}
	op := &fakeOpener{}
	ser := &fakeSerializer{out: []byte("<MPD/>")}
	opts := DefaultOptions()
	opts.ForTest = true
	return NewEngine(opts, fetcher, exp, op, ser)
}

func TestEngineConfigureStreamAddsToCurrentPeriod(t *testing.T) {
	e := newTestEngine(t, newScriptedFetcher())

	res := e.ConfigureStream("v1", StreamProps{Type: StreamTypeVideo, CodecID: "avc", Width: 1920, Height: 1080, Timescale: 100})

	assert.Equal(t, ConfigureOK, res)
	assert.Equal(t, PeriodConfiguring, e.periods.Current().State)
	assert.Len(t, e.periods.Current().Streams, 1)
}

func TestEngineProcessAdvancesThroughConfiguring(t *testing.T) {
	fetcher := newScriptedFetcher()
	e := newTestEngine(t, fetcher)
	e.ConfigureStream("v1", StreamProps{Type: StreamTypeVideo, CodecID: "avc", Width: 1920, Height: 1080, Timescale: 100})

	result, err := e.Process(context.Background())
	require.NoError(t, err)

	assert.True(t, result.Progressed)
	assert.Equal(t, PeriodSegmenting, e.periods.Current().State)
}

func TestEngineProcessSegmentsAndDrainsOnEOS(t *testing.T) {
	fetcher := newScriptedFetcher()
	fetcher.push("v1", Packet{CTS: 0, SAP: 1, Duration: 100})

	e := newTestEngine(t, fetcher)
	e.ConfigureStream("v1", StreamProps{Type: StreamTypeVideo, CodecID: "avc", Width: 1920, Height: 1080, Timescale: 100, PeriodStart: 0})
	current := e.periods.Current()
	current.Streams[0].DashDur = 10

	_, err := e.Process(context.Background()) // configuring -> segmenting
	require.NoError(t, err)

	_, err = e.Process(context.Background()) // emits the packet
	require.NoError(t, err)

	_, err = e.Process(context.Background()) // fetch returns EOS; every stream is done, so segmenting -> draining
	require.NoError(t, err)
	assert.Equal(t, DoneEOS, current.Streams[0].Done)
	assert.Equal(t, PeriodDraining, current.State)

	result, err := e.Process(context.Background()) // draining -> switching
	require.NoError(t, err)
	assert.Equal(t, PeriodSwitching, current.State)
	assert.True(t, result.Progressed)
}

func TestEngineProcessIdleIsNoop(t *testing.T) {
	e := newTestEngine(t, newScriptedFetcher())
	result, err := e.Process(context.Background())
	require.NoError(t, err)
	assert.False(t, result.Progressed)
	assert.False(t, result.Done)
}

func TestEnginePublishManifestDelegatesToSerializer(t *testing.T) {
	e := newTestEngine(t, newScriptedFetcher())
	out, err := e.PublishManifest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("<MPD/>"), out)
}
