package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandNumberWithPadding(t *testing.T) {
	e := NewExpander()
	out, err := e.Expand("seg_$Number%05d$.m4s", TemplateVars{Number: 42})
	require.NoError(t, err)
	assert.Equal(t, "seg_00042.m4s", out)
}

func TestExpandNumberWithoutPadding(t *testing.T) {
	e := NewExpander()
	out, err := e.Expand("seg_$Number$.m4s", TemplateVars{Number: 7})
	require.NoError(t, err)
	assert.Equal(t, "seg_7.m4s", out)
}

func TestExpandRepresentationIDAndBandwidth(t *testing.T) {
	e := NewExpander()
	out, err := e.Expand("$RepresentationID$/$Bandwidth$/init.mp4", TemplateVars{RepresentationID: "v1", Bandwidth: 500000})
	require.NoError(t, err)
	assert.Equal(t, "v1/500000/init.mp4", out)
}

func TestExpandTimeToken(t *testing.T) {
	e := NewExpander()
	out, err := e.Expand("seg_$Time$.m4s", TemplateVars{Time: 123456})
	require.NoError(t, err)
	assert.Equal(t, "seg_123456.m4s", out)
}

func TestExpandExtensionTokens(t *testing.T) {
	e := NewExpander()
	out, err := e.Expand("$Path=/var/segments$/$Init=init.mp4$", TemplateVars{})
	require.NoError(t, err)
	assert.Equal(t, "/var/segments/init.mp4", out)
}

func TestExpandSourceTokensRequireSourceURL(t *testing.T) {
	e := NewExpander()
	_, err := e.Expand("$File$.ts", TemplateVars{})
	assert.Error(t, err)

	out, err := e.Expand("$File$", TemplateVars{SourceURL: "/media/cam1/stream.ts"})
	require.NoError(t, err)
	assert.Equal(t, "stream.ts", out)
}

func TestUsesSourceURL(t *testing.T) {
	e := NewExpander()
	assert.True(t, e.UsesSourceURL("$FSRC$/seg.m4s"))
	assert.False(t, e.UsesSourceURL("$RepresentationID$/seg.m4s"))
}

func TestEscapedDollarSign(t *testing.T) {
	e := NewExpander()
	out, err := e.Expand("literal$$sign", TemplateVars{})
	require.NoError(t, err)
	assert.Equal(t, "literal$sign", out)
}

func TestDescribe(t *testing.T) {
	e := NewExpander()
	out := e.Describe(TemplateVars{RepresentationID: "v1", Number: 1000, Bandwidth: 2000000})
	assert.Contains(t, out, "v1")
}
