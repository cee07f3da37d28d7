package dasher

import "context"

// Packet is one elementary-stream access unit delivered to the engine by
// a PacketFetcher. It carries only what the scheduler needs to make a
// boundary decision and hand bytes to a muxer connection; decoding the
// payload is explicitly out of scope (spec §1).
type Packet struct {
	StreamID string
	CTS      int64 // composition timestamp, in the stream's Timescale
	DTS      int64
	Duration int64
	SAP      SAPType
	Data     []byte
	KeyFrame bool

	// FileNumber and FileName are output properties stamped by the
	// scheduler on the first carried packet of a new segment (spec §6).
	// FileName is left empty in template-addressed mode, where the
	// muxer derives the name from its $Number$/$Time$ template instead.
	FileNumber uint32
	FileName   string

	// SenderNTP is the optional sender-side NTP64 timestamp stamped (or
	// stripped) on segment-start packets per Options.NTP (spec §4.5
	// step 10, §6). Zero means absent.
	SenderNTP uint64
}

// FetchResult communicates back-pressure from a PacketFetcher without
// blocking, per spec §5's "no-packet"/"eos" suspension points.
type FetchResult int

// Fetch results.
const (
	FetchPacket FetchResult = iota
	FetchNoPacket
	FetchEOS
)

// PacketFetcher is the cooperative per-stream packet source the
// scheduler drives. Implementations must never block; if no packet is
// immediately available they return FetchNoPacket so the engine can
// move on to the next stream and yield control to its host loop.
type PacketFetcher interface {
	// Fetch returns the next packet for streamID, or a FetchResult
	// indicating no packet is ready or the stream has ended.
	Fetch(ctx context.Context, streamID string) (Packet, FetchResult, error)
}

// ManifestSerializer turns a Presentation tree into the bytes the
// downstream output consumes, per spec §4.7/§6. Implemented by
// pkg/mpd.Encoder.
type ManifestSerializer interface {
	Serialize(ctx context.Context, p *Presentation) ([]byte, error)
}

// SegmentSizeEvent is the upstream event emitted by a muxer after each
// produced file, per spec §6.
type SegmentSizeEvent struct {
	RepresentationID string
	IsInit           bool
	MediaRangeStart  int64
	MediaRangeEnd    int64
	IdxRangeStart    int64
	IdxRangeEnd      int64
}

// MuxerConnection is one open downstream connection for a
// Representation (or a muxed component sharing its base's connection),
// per spec §4.4/§5's "shared-resource policy".
type MuxerConnection interface {
	// WritePacket hands one packet's bytes to the muxer, with fragment
	// boundary hints set by the scheduler (segmentStart marks the first
	// packet of a new segment).
	WritePacket(ctx context.Context, pkt Packet, segmentStart bool) error

	// Events returns a channel of SegmentSizeEvent notifications the
	// engine drains to populate SegmentBase.indexRange and
	// SegmentList.SegmentURL ranges (spec §6).
	Events() <-chan SegmentSizeEvent

	// Close releases the connection, flushing any buffered fragment.
	Close(ctx context.Context) error
}

// MuxerOpenOptions carries the connection string flags spec §4.4
// describes: frag, subs_sidx, xps_inband, noinit, no_frags_def.
type MuxerOpenOptions struct {
	InitSegmentPath string
	SegmentTemplate string // unexpanded $Number$/$Time$ pattern for media segment naming
	StartNumber     uint32
	Timescale       uint32
	Width, Height   int
	Fragmented      bool
	SingleSegment   bool // subs_sidx=0
	InbandParams    string // "all" | "no"
	NoInit          bool   // restored representation; don't re-emit init
	NoFragsDefault  bool
}

// MuxerOpener opens one MuxerConnection per Representation (or returns
// the existing connection for a muxed component's base), per spec §4.4.
type MuxerOpener interface {
	Open(ctx context.Context, repID string, opts MuxerOpenOptions) (MuxerConnection, error)
}

// CodecStringer builds the RFC 6381 codec string for a Representation
// from decoder-config bytes, per spec §1/§6 (codec-parameter extraction
// is an external collaborator).
type CodecStringer interface {
	CodecString(codecID string, decoderConfig []byte) (string, error)
}

// TemplateExpander resolves the template tokens enumerated in spec §6
// ($Number$, $Time$, $Bandwidth$, $RepresentationID$, $Init=…$,
// $Index=…$, $Path=…$, $Segment=…$, $File$, $FSRC$, $SourcePath$,
// $FURL$, $URL$) to a concrete string.
type TemplateExpander interface {
	Expand(template string, vars TemplateVars) (string, error)
	// UsesSourceURL reports whether template contains a token that
	// requires a per-source substitution ($File$, $FSRC$, …), forcing
	// per-Representation rather than per-AdaptationSet templates
	// (spec §4.4, SPEC_FULL.md §12).
	UsesSourceURL(template string) bool
}

// TemplateVars carries the substitution values available when expanding
// a segment or init-segment template.
type TemplateVars struct {
	RepresentationID string
	Number           uint32
	Bandwidth        uint32
	Time             int64
	SourceURL        string
}
