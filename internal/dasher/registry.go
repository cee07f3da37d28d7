package dasher

// ConfigureResult is returned by Registry.Configure, per spec §4.1.
type ConfigureResult int

// Configure results.
const (
	ConfigureOK ConfigureResult = iota
	ConfigureUnsupported
	ConfigurePeriodSwitch
)

// StreamProps carries the subset of a Stream's fields a caller may
// update via Registry.Configure — the "input per-stream properties"
// contract of spec §6.
type StreamProps struct {
	Type       StreamType
	CodecID    string
	Timescale  uint32
	Width      int
	Height     int
	SARNum     int
	SARDen     int
	FPSNum     int
	FPSDen     int
	SampleRate uint32
	Channels   uint32
	ChannelLayout uint32
	ID         string
	DepID      string
	SourceURL  string
	Template   string
	Language   string
	Interlaced bool
	Roles      []string
	ASDesc     []Descriptor
	ASAnyDesc  []Descriptor
	RepDesc    []Descriptor
	PeriodDesc []Descriptor
	PeriodID   string

	DecoderConfigCRC uint32
	EnhConfigCRC     uint32
	InbandParams     bool

	PeriodStart float64
	PeriodDur   float64
	Xlink       string
}

// Registry is the Stream Descriptor Registry (spec §2.1/§4.1): it owns
// per-stream state and decides when a property change must trigger a
// period-switch request.
type Registry struct {
	streams map[string]*Stream
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{streams: make(map[string]*Stream)}
}

// Get returns the Stream for id, or nil if not yet configured.
func (r *Registry) Get(id string) *Stream {
	return r.streams[id]
}

// All returns every Stream currently tracked, across all periods.
func (r *Registry) All() []*Stream {
	out := make([]*Stream, 0, len(r.streams))
	for _, s := range r.streams {
		out = append(out, s)
	}
	return out
}

// Remove drops a Stream from the registry (teardown, per spec §3.3).
func (r *Registry) Remove(id string) {
	delete(r.streams, id)
}

// Configure applies props to the Stream identified by id, creating it on
// first configure, and reports whether the update requires a
// period-switch, per the field list in spec §4.1. switchMode is the
// Adaptation Set's configured bitstream-switching mode: a decoder-config
// CRC change only skips the period-switch when the codec admits inband
// parameter sets AND switchMode is not SwitchOff (spec §4.1).
func (r *Registry) Configure(id string, props StreamProps, switchMode SwitchMode) ConfigureResult {
	s, existed := r.streams[id]
	if !existed {
		s = &Stream{ID: id, repIndex: -1, asIndex: -1}
		r.streams[id] = s
	}

	if props.Type == StreamTypeFile && props.Xlink == "" && props.PeriodStart == 0 && props.PeriodDur == 0 {
		s.Done = DoneEOS
		applyProps(s, props)
		return ConfigureOK
	}

	if !existed {
		applyProps(s, props)
		return ConfigureOK
	}

	switchNeeded := fieldChanged(s, props)

	if props.DecoderConfigCRC != 0 && s.DecoderConfigCRC != 0 && props.DecoderConfigCRC != s.DecoderConfigCRC {
		inbandSuppresses := props.InbandParams && switchMode != SwitchOff
		if !inbandSuppresses {
			switchNeeded = true
		}
	}

	applyProps(s, props)

	if switchNeeded {
		return ConfigurePeriodSwitch
	}
	return ConfigureOK
}

// fieldChanged implements the "changed from an already-set non-zero
// value" rule of spec §4.1.
func fieldChanged(s *Stream, p StreamProps) bool {
	changed := func(oldNonZero bool, same bool) bool {
		return oldNonZero && !same
	}

	if changed(s.Type != "", s.Type == p.Type) && p.Type != "" {
		return true
	}
	if changed(s.CodecID != "", s.CodecID == p.CodecID) && p.CodecID != "" {
		return true
	}
	if changed(s.Timescale != 0, s.Timescale == p.Timescale) && p.Timescale != 0 {
		return true
	}
	if changed(s.Width != 0 || s.Height != 0, s.Width == p.Width && s.Height == p.Height) {
		return true
	}
	if changed(s.SARNum != 0, s.SARNum == p.SARNum && s.SARDen == p.SARDen) {
		return true
	}
	if changed(s.FPSNum != 0, s.FPSNum == p.FPSNum && s.FPSDen == p.FPSDen) {
		return true
	}
	if changed(s.SampleRate != 0, s.SampleRate == p.SampleRate) && p.SampleRate != 0 {
		return true
	}
	if changed(s.Channels != 0 || s.ChannelLayout != 0, s.Channels == p.Channels && s.ChannelLayout == p.ChannelLayout) {
		return true
	}
	if changed(s.ID != "", s.ID == p.ID) && p.ID != "" {
		return true
	}
	if changed(s.DepID != "", s.DepID == p.DepID) && p.DepID != "" {
		return true
	}
	if changed(s.SourceURL != "", s.SourceURL == p.SourceURL) && p.SourceURL != "" {
		return true
	}
	if changed(s.Template != "", s.Template == p.Template) && p.Template != "" {
		return true
	}
	if changed(s.Language != "", s.Language == p.Language) && p.Language != "" {
		return true
	}
	if changed(s.Interlaced, s.Interlaced == p.Interlaced) {
		return true
	}
	if changed(len(s.Roles) != 0, sameStrings(s.Roles, p.Roles)) {
		return true
	}
	if changed(len(s.ASDesc) != 0, sameDescriptors(s.ASDesc, p.ASDesc)) {
		return true
	}
	if changed(len(s.ASAnyDesc) != 0, sameDescriptors(s.ASAnyDesc, p.ASAnyDesc)) {
		return true
	}
	if changed(len(s.RepDesc) != 0, sameDescriptors(s.RepDesc, p.RepDesc)) {
		return true
	}
	if changed(len(s.PeriodDesc) != 0, sameDescriptors(s.PeriodDesc, p.PeriodDesc)) {
		return true
	}
	if changed(s.PeriodID != "", s.PeriodID == p.PeriodID) && p.PeriodID != "" {
		return true
	}
	return false
}

func applyProps(s *Stream, p StreamProps) {
	if p.Type != "" {
		s.Type = p.Type
	}
	if p.CodecID != "" {
		s.CodecID = p.CodecID
	}
	if p.Timescale != 0 {
		s.Timescale = p.Timescale
	}
	s.Width, s.Height = p.Width, p.Height
	s.SARNum, s.SARDen = p.SARNum, p.SARDen
	s.FPSNum, s.FPSDen = p.FPSNum, p.FPSDen
	if p.SampleRate != 0 {
		s.SampleRate = p.SampleRate
	}
	s.Channels, s.ChannelLayout = p.Channels, p.ChannelLayout
	if p.ID != "" {
		s.RepID = p.ID
	}
	if p.DepID != "" {
		s.DepID = p.DepID
	}
	if p.SourceURL != "" {
		s.SourceURL = p.SourceURL
	}
	if p.Template != "" {
		s.Template = p.Template
		s.TemplateIsSet = true
	}
	if p.Language != "" {
		s.Language = p.Language
	}
	s.Interlaced = p.Interlaced
	if len(p.Roles) > 0 {
		s.Roles = p.Roles
	}
	if len(p.ASDesc) > 0 {
		s.ASDesc = p.ASDesc
	}
	if len(p.ASAnyDesc) > 0 {
		s.ASAnyDesc = p.ASAnyDesc
	}
	if len(p.RepDesc) > 0 {
		s.RepDesc = p.RepDesc
	}
	if len(p.PeriodDesc) > 0 {
		s.PeriodDesc = p.PeriodDesc
	}
	if p.PeriodID != "" {
		s.PeriodID = p.PeriodID
	}
	if p.DecoderConfigCRC != 0 {
		s.DecoderConfigCRC = p.DecoderConfigCRC
	}
	if p.EnhConfigCRC != 0 {
		s.EnhConfigCRC = p.EnhConfigCRC
	}
	s.InbandParams = p.InbandParams
	s.PeriodStart = p.PeriodStart
	s.PeriodDur = p.PeriodDur
	s.Xlink = p.Xlink
}

func sameStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func sameDescriptors(a, b []Descriptor) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
