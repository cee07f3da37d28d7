package dasher

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSerializer struct {
	out []byte
	err error
}

func (f *fakeSerializer) Serialize(ctx context.Context, p *Presentation) ([]byte, error) {
	return f.out, f.err
}

func TestProfileURNLive(t *testing.T) {
	urn := ProfileURN(ProfileLive, false)
	assert.Equal(t, "urn:mpeg:dash:profile:live:2011", urn)
}

func TestNamespacesOmitsUnusedDeclarations(t *testing.T) {
	assert.Empty(t, Namespaces(false, false))
	ns := Namespaces(true, true)
	assert.Len(t, ns, 2)
}

func TestBuildPresentationStaticProfileIsStaticType(t *testing.T) {
	pr := &Presentation{Periods: []*Period{{Duration: 10}, {Duration: 5}}}
	opts := DefaultOptions()
	opts.Profile = ProfileOnDemand

	BuildPresentation(pr, opts, false, false, false, time.Now())

	assert.Equal(t, "static", pr.Type)
	assert.Equal(t, 15*time.Second, pr.Duration)
}

func TestBuildPresentationDynamicSetsAvailabilityStart(t *testing.T) {
	pr := &Presentation{}
	opts := DefaultOptions() // live profile -> dynamic

	BuildPresentation(pr, opts, false, false, false, time.Now())

	assert.Equal(t, "dynamic", pr.Type)
	assert.False(t, pr.AvailabilityStartTime.IsZero())
}

func TestBuildPresentationForTestSkipsWallClock(t *testing.T) {
	pr := &Presentation{}
	opts := DefaultOptions()
	opts.ForTest = true

	BuildPresentation(pr, opts, false, false, false, time.Now())

	assert.True(t, pr.AvailabilityStartTime.IsZero())
}

func TestEmitterPublishWrapsSerializerError(t *testing.T) {
	e := NewEmitter(&fakeSerializer{err: assertErr})
	_, err := e.Publish(context.Background(), &Presentation{})
	require.Error(t, err)
}

func TestEmitterPublishReturnsBytes(t *testing.T) {
	e := NewEmitter(&fakeSerializer{out: []byte("<MPD/>")})
	out, err := e.Publish(context.Background(), &Presentation{})
	require.NoError(t, err)
	assert.Equal(t, []byte("<MPD/>"), out)
}

var assertErr = &Error{Code: CodeIOError, Msg: "boom"}
