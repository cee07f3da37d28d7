package dasher

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueFetcherFIFOOrder(t *testing.T) {
	q := NewQueueFetcher()
	q.Push("v1", Packet{CTS: 0})
	q.Push("v1", Packet{CTS: 10})

	pkt, res, err := q.Fetch(context.Background(), "v1")
	require.NoError(t, err)
	assert.Equal(t, FetchPacket, res)
	assert.Equal(t, int64(0), pkt.CTS)

	pkt, res, err = q.Fetch(context.Background(), "v1")
	require.NoError(t, err)
	assert.Equal(t, int64(10), pkt.CTS)
}

func TestQueueFetcherNoPacketWhenEmptyAndOpen(t *testing.T) {
	q := NewQueueFetcher()
	_, res, err := q.Fetch(context.Background(), "v1")
	require.NoError(t, err)
	assert.Equal(t, FetchNoPacket, res)
}

func TestQueueFetcherEOSAfterClose(t *testing.T) {
	q := NewQueueFetcher()
	q.Push("v1", Packet{CTS: 0})
	q.CloseStream("v1")

	_, res, err := q.Fetch(context.Background(), "v1")
	require.NoError(t, err)
	assert.Equal(t, FetchPacket, res, "queued packets drain before EOS is reported")

	_, res, err = q.Fetch(context.Background(), "v1")
	require.NoError(t, err)
	assert.Equal(t, FetchEOS, res)
}

func TestQueueFetcherPending(t *testing.T) {
	q := NewQueueFetcher()
	assert.Equal(t, 0, q.Pending("v1"))
	q.Push("v1", Packet{})
	assert.Equal(t, 1, q.Pending("v1"))
}
