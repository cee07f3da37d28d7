// Package dasher implements the segmentation control engine: the part of
// an adaptive-streaming pipeline that decides when a new segment begins,
// which streams share an Adaptation Set, and what flows to the downstream
// muxer and manifest serializer. It does not decode, transcode, or mux
// media bytes; those are external collaborators reached through the
// narrow interfaces in external.go.
package dasher

import "time"

// StreamType classifies the kind of elementary stream a Stream carries.
type StreamType string

// Stream type constants, per the input contract in spec §6.
const (
	StreamTypeVideo            StreamType = "video"
	StreamTypeAudio            StreamType = "audio"
	StreamTypeText             StreamType = "text"
	StreamTypeMetadata         StreamType = "metadata"
	StreamTypeScene            StreamType = "scene"
	StreamTypeObjectDescriptor StreamType = "object-descriptor"
	StreamTypeFile             StreamType = "file"
)

// DoneState records why a Stream stopped producing samples.
type DoneState int

// Done state values.
const (
	DoneRunning DoneState = iota
	DoneEOS
	DoneSubdurExceeded
)

func (d DoneState) String() string {
	switch d {
	case DoneRunning:
		return "running"
	case DoneEOS:
		return "eos"
	case DoneSubdurExceeded:
		return "subdur-exceeded"
	default:
		return "unknown"
	}
}

// SwitchMode controls how bitstream switching is evaluated for an
// Adaptation Set, mirroring GPAC's DASHER_BS_SWITCH_* enum.
type SwitchMode int

// Switch mode values.
const (
	SwitchDefault SwitchMode = iota
	SwitchOff
	SwitchOn
	SwitchInband
	SwitchForce
	SwitchMulti
)

// Profile names a DASH conformance profile string emitted verbatim into
// the manifest's profiles attribute.
type Profile int

// Profile values, per spec §4.7 and the HbbTV-1.5 supplement in
// SPEC_FULL.md §12.
const (
	ProfileLive Profile = iota
	ProfileOnDemand
	ProfileMain
	ProfileHbbTV15
	ProfileAVC264Live
	ProfileAVC264OnDemand
	ProfileFull
)

// String returns the DASH profile URN suffix used in the manifest.
func (p Profile) String() string {
	switch p {
	case ProfileLive:
		return "live"
	case ProfileOnDemand:
		return "onDemand"
	case ProfileMain:
		return "main"
	case ProfileHbbTV15:
		return "HbbTV-1.5"
	case ProfileAVC264Live:
		return "DASH-AVC-264 live"
	case ProfileAVC264OnDemand:
		return "DASH-AVC-264 onDemand"
	case ProfileFull:
		return "full"
	default:
		return "full"
	}
}

// SAPType is a Stream Access Point classification, per ISO/IEC 23009-1
// Annex I. SAPType 0 means "not a SAP".
type SAPType int

// SAPRedundant marks a sample that carries no SAP of its own but was
// replayed as the first sample of a segment by the split-handling path
// (spec §4.5 step 5: the remainder of a straddling sample "is tagged
// redundant", distinct from a genuine SAP and from "not a SAP").
const SAPRedundant SAPType = -1

// SegmentShape names which of the three mutually-exclusive segment
// addressing modes a Representation uses.
type SegmentShape int

// Segment shape values.
const (
	ShapeSegmentTemplate SegmentShape = iota
	ShapeSegmentList
	ShapeSegmentBase
)

// NTPMode controls whether a sender-side NTP timestamp is stamped on the
// first packet of a new segment.
type NTPMode int

// NTP mode values, mirroring GPAC's DASHER_NTP_* enum.
const (
	NTPRemove NTPMode = iota
	NTPYes
	NTPKeep
)

// SRD is a Spatial Relationship Descriptor (x, y, width, height in an
// arbitrary integer grid, per MPEG-DASH SRD).
type SRD struct {
	X, Y, W, H int
}

// Descriptor is a pre-parsed DASH descriptor value: either well-formed
// XML fragment text or the original malformed string, per SPEC_FULL.md
// §9's tagged-variant replacement for the open-ended property bag.
type Descriptor struct {
	XML       string
	Malformed string
}

// IsMalformed reports whether this descriptor failed to parse as XML.
func (d Descriptor) IsMalformed() bool {
	return d.Malformed != ""
}

// StreamCounters holds the per-Stream runtime counters from spec §3.1.
// They are mutated by the scheduler (scheduler.go) and seeded by Restore
// (persistence.go).
type StreamCounters struct {
	FirstCTS               int64
	LastCTS                int64
	NbPck                  uint32
	CumulatedDur           int64
	SegNumber              uint32
	NextSegStart           int64
	AdjustedNextSegStart   int64
	FirstCTSInSeg          int64
	FirstCTSInNextSeg      int64
	EstFirstCTSInNextSeg   int64
	MaxPeriodDur           int64
	ForceRepEnd            int64
	SegmentStarted         bool
	SegDone                bool
	RepInit                bool
	SeekToPck              uint32
	NbSAP3                 uint32
	NbSAP4                 uint32

	// PendingRemainder holds the second half of a split sample (spec
	// §4.5 step 5), replayed as the next call's input in place of a
	// fresh Fetch once HasPendingRemainder is set.
	PendingRemainder    Packet
	HasPendingRemainder bool
}

// Stream is one input media track, per spec §3.1. It refers to its
// Representation and AdaptationSet by index, never by pointer ownership:
// Period owns Streams, a Stream's Representation is owned by the Stream,
// and the AdaptationSet owns a list of Representations (SPEC_FULL.md §3 /
// spec §9's arena-of-streams model).
type Stream struct {
	// Identity
	ID        string
	CodecID   string
	Type      StreamType
	Timescale uint32
	Bitrate   uint32
	Language  string
	DepID     string
	PidID     uint32

	// ForceTimescale is nonzero when bitstream switching forced this
	// Representation to rescale its carried timestamps onto a common
	// reference timescale shared with the rest of its Adaptation Set
	// (spec §3.2/§4.3: the flag is per-Representation, since only the
	// members whose native timescale differs from the reference need
	// rescaling).
	ForceTimescale uint32

	// Decoder configuration fingerprints (for period-switch detection)
	DecoderConfigCRC    uint32
	EnhConfigCRC        uint32
	InbandParams        bool // true for AVC/SVC/MVC/HEVC/LHVC admitting inband param sets

	// Geometry / audio properties
	SARNum, SARDen int
	FPSNum, FPSDen int
	Width, Height  int
	SampleRate     uint32
	Channels       uint32
	ChannelLayout  uint32
	Interlaced     bool
	SRD            SRD
	ViewID         uint32

	// Roles and descriptors
	Roles          []string
	PeriodDesc     []Descriptor
	ASDesc         []Descriptor // as-conditional-desc: must match for same-AS grouping
	ASAnyDesc      []Descriptor // as-any-desc: attached regardless of grouping
	RepDesc        []Descriptor
	BaseURL        string

	// Source and templating
	SourceURL       string
	Template        string
	TemplateIsSet   bool
	Xlink           string
	RepID           string
	StartNumber     uint32

	// Period placement
	PeriodID    string
	PeriodStart float64 // explicit start in seconds; negative = ordinal placement
	PeriodDur   float64

	// Segmentation
	DashDur float64 // target segment duration in seconds

	// Splitting (text/metadata/scene/object-descriptor)
	Splitable bool

	// Muxed composition: non-empty MuxedBase means this Stream rides on
	// another Stream's Representation instead of owning its own.
	MuxedBase string

	// Scalable layering: streams whose DepID points at this Stream's RepID
	// must appear in ComplementaryReps once grouped.
	ComplementaryReps []string

	Done DoneState

	Counters StreamCounters

	// indices, set once the Stream is attached to a Period/Representation/AS
	repIndex int
	asIndex  int
}

// RepresentationIndex returns the index of this Stream's Representation
// within the owning Period's representation arena, or -1 if unattached.
func (s *Stream) RepresentationIndex() int { return s.repIndex }

// AdaptationSetIndex returns the index of this Stream's AdaptationSet
// within the owning Period's AS arena, or -1 if unattached.
func (s *Stream) AdaptationSetIndex() int { return s.asIndex }

// Representation is the exposed deliverable described in spec §3.1.
type Representation struct {
	ID          string
	Bandwidth   uint32
	CodecString string // RFC 6381
	MimeType    string

	Width, Height  int
	SARNum, SARDen int
	FPSNum, FPSDen int
	SampleRate     uint32
	Channels       uint32

	InitSegment   string
	SegTemplate   string
	Shape         SegmentShape

	ComplementaryReps []string
	MultiPID          bool
	ContentComponents []ContentComponent

	// Timeline holds this Representation's own segment timeline when it
	// is not sharing its Adaptation Set's timeline (spec §4.6: "the
	// timeline is attached AS-level when alignment holds ... and
	// Representation-level otherwise").
	Timeline SegmentTimeline

	// owning stream index within the Period's stream arena
	baseStreamIndex int

	Removed bool // not set by Restore, which skips unmatched states
}

// ContentComponent tags one elementary component of a muxed
// Representation, per SPEC_FULL.md §12 (dasher_set_content_components).
type ContentComponent struct {
	ID            string
	ContentType   StreamType
	Language      string
}

// AdaptationSet groups interchangeable Representations, per spec §3.1.
type AdaptationSet struct {
	ID                 string
	MaxWidth, MaxHeight int
	Align              bool
	BitstreamSwitching bool
	Language           string
	Roles              []string
	CondDesc           []Descriptor
	AnyDesc            []Descriptor
	StartsWithSAP      SAPType

	// owner is the index, within the Period's stream arena, of the Stream
	// nominated to drive shared-timeline writes and template resolution.
	ownerStreamIndex int

	repIndices []int

	// Shared segment timeline, populated by timeline.go when Align holds.
	Timeline SegmentTimeline
}

// PeriodState is the Period State Machine state, per spec §4.2.
type PeriodState int

// Period states.
const (
	PeriodIdle PeriodState = iota
	PeriodConfiguring
	PeriodSegmenting
	PeriodDraining
	PeriodSwitching
	PeriodTerminal
)

func (p PeriodState) String() string {
	switch p {
	case PeriodIdle:
		return "idle"
	case PeriodConfiguring:
		return "configuring"
	case PeriodSegmenting:
		return "segmenting"
	case PeriodDraining:
		return "draining"
	case PeriodSwitching:
		return "switching"
	case PeriodTerminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// Period is a contiguous time interval with a fixed set of Adaptation
// Sets, per spec §3.1.
type Period struct {
	ID       string
	Start    float64
	Duration float64
	Xlink    string

	State PeriodState

	Streams         []*Stream
	Representations []*Representation
	AdaptationSets  []*AdaptationSet
}

// Presentation is the ordered sequence of Periods plus global
// attributes, per spec §3.1.
type Presentation struct {
	Profile               Profile
	ProfileExtensions     []string
	Type                  string // "static" | "dynamic"
	MinBufferTime         time.Duration
	MinimumUpdatePeriod   time.Duration
	TimeShiftBufferDepth  time.Duration
	AvailabilityStartTime time.Time
	Duration              time.Duration

	Title, Source, Info, Copyright string
	Locations                      []string
	BaseURLs                       []string

	Periods []*Period

	CurrentPeriod *Period
	NextPeriod    *Period
}
