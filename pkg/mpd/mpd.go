// Package mpd encodes a dasher.Presentation tree into MPEG-DASH MPD XML,
// implementing dasher.ManifestSerializer. The struct layout and the
// post-processing applied in Encode follow the same pattern jun-oku-mpd
// uses: encoding/xml handles the bulk of the work, and a short pass of
// string surgery fixes up the handful of things encoding/xml cannot
// express natively (self-closing leaf elements, namespace prefixes with
// no declared Go field).
package mpd

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jmylchreest/dasher/internal/dasher"
)

// ConditionalUint renders as either a uint64 or a bool depending on
// which field is set, matching the xs:boolean-or-unsignedLong union
// ISO/IEC 23009-1 uses for @segmentAlignment and @subsegmentAlignment.
type ConditionalUint struct {
	set   bool
	value uint64
	flag  bool
}

// NewConditionalBool creates a ConditionalUint holding a boolean value.
func NewConditionalBool(v bool) *ConditionalUint {
	return &ConditionalUint{set: true, flag: v}
}

// NewConditionalUint creates a ConditionalUint holding a numeric value.
func NewConditionalUint(v uint64) *ConditionalUint {
	return &ConditionalUint{set: true, value: v, flag: true}
}

// MarshalXMLAttr implements xml.MarshalerAttr.
func (c ConditionalUint) MarshalXMLAttr(name xml.Name) (xml.Attr, error) {
	if !c.set {
		return xml.Attr{}, nil
	}
	if c.value != 0 {
		return xml.Attr{Name: name, Value: strconv.FormatUint(c.value, 10)}, nil
	}
	return xml.Attr{Name: name, Value: strconv.FormatBool(c.flag)}, nil
}

// UnmarshalXMLAttr implements xml.UnmarshalerAttr.
func (c *ConditionalUint) UnmarshalXMLAttr(attr xml.Attr) error {
	if v, err := strconv.ParseUint(attr.Value, 10, 64); err == nil {
		c.set, c.value = true, v
		return nil
	}
	if v, err := strconv.ParseBool(attr.Value); err == nil {
		c.set, c.flag = true, v
		return nil
	}
	return fmt.Errorf("mpd: invalid ConditionalUint value %q", attr.Value)
}

// MPD is the document root, ISO/IEC 23009-1 §5.3.1.
type MPD struct {
	XMLName                   xml.Name       `xml:"MPD"`
	XMLNS                     string         `xml:"xmlns,attr"`
	Profiles                  string         `xml:"profiles,attr"`
	Type                      string         `xml:"type,attr,omitempty"`
	MinBufferTime             string         `xml:"minBufferTime,attr,omitempty"`
	MinimumUpdatePeriod       string         `xml:"minimumUpdatePeriod,attr,omitempty"`
	TimeShiftBufferDepth      string         `xml:"timeShiftBufferDepth,attr,omitempty"`
	AvailabilityStartTime     string         `xml:"availabilityStartTime,attr,omitempty"`
	MediaPresentationDuration string         `xml:"mediaPresentationDuration,attr,omitempty"`
	PublishTime               string         `xml:"publishTime,attr,omitempty"`
	ProgramInformation        *ProgramInfo   `xml:"ProgramInformation"`
	BaseURL                   []string       `xml:"BaseURL,omitempty"`
	Locations                 []string       `xml:"Location,omitempty"`
	Periods                   []*Period      `xml:"Period"`
}

// ProgramInfo is the optional <ProgramInformation> block.
type ProgramInfo struct {
	Title     string `xml:"Title,omitempty"`
	Source    string `xml:"Source,omitempty"`
	Copyright string `xml:"Copyright,attr,omitempty"`
}

// Period mirrors dasher.Period's manifest-visible attributes.
type Period struct {
	ID              string           `xml:"id,attr,omitempty"`
	Start           string           `xml:"start,attr,omitempty"`
	Duration        string           `xml:"duration,attr,omitempty"`
	XlinkHref       string           `xml:"xlink:href,attr,omitempty"`
	BaseURL         []string         `xml:"BaseURL,omitempty"`
	AdaptationSets  []*AdaptationSet `xml:"AdaptationSet"`
}

// AdaptationSet mirrors dasher.AdaptationSet.
type AdaptationSet struct {
	ID                 string             `xml:"id,attr,omitempty"`
	MimeType           string             `xml:"mimeType,attr,omitempty"`
	Lang               string             `xml:"lang,attr,omitempty"`
	SegmentAlignment   *ConditionalUint   `xml:"segmentAlignment,attr,omitempty"`
	BitstreamSwitching bool               `xml:"bitstreamSwitching,attr,omitempty"`
	StartWithSAP       int                `xml:"startWithSAP,attr,omitempty"`
	MaxWidth           int                `xml:"maxWidth,attr,omitempty"`
	MaxHeight          int                `xml:"maxHeight,attr,omitempty"`
	ContentType        string             `xml:"contentType,attr,omitempty"`
	Roles              []Descriptor       `xml:"Role,omitempty"`
	ContentProtections []ContentProtection `xml:"ContentProtection,omitempty"`
	SegmentTemplate    *SegmentTemplate   `xml:"SegmentTemplate"`
	Representations    []*Representation  `xml:"Representation"`
}

// Descriptor is the generic DASH `<Role/>`, `<EssentialProperty/>`,
// `<SupplementalProperty/>` shape: a schemeIdUri/value pair.
type Descriptor struct {
	SchemeIDURI string `xml:"schemeIdUri,attr"`
	Value       string `xml:"value,attr,omitempty"`
}

// ContentProtection carries a DRM scheme reference; dasher itself never
// inspects the payload (spec's ambient DRM tagging is opaque pass-through).
type ContentProtection struct {
	SchemeIDURI string `xml:"schemeIdUri,attr"`
	Value       string `xml:"value,attr,omitempty"`
	CencDefaultKID string `xml:"cenc:default_KID,attr,omitempty"`
}

// Representation mirrors dasher.Representation.
type Representation struct {
	ID                string            `xml:"id,attr"`
	Bandwidth         uint32            `xml:"bandwidth,attr"`
	Codecs            string            `xml:"codecs,attr,omitempty"`
	Width             int               `xml:"width,attr,omitempty"`
	Height            int               `xml:"height,attr,omitempty"`
	SAR               string            `xml:"sar,attr,omitempty"`
	FrameRate         string            `xml:"frameRate,attr,omitempty"`
	AudioSamplingRate uint32            `xml:"audioSamplingRate,attr,omitempty"`
	SegmentTemplate   *SegmentTemplate  `xml:"SegmentTemplate"`
	SegmentBase       *SegmentBase      `xml:"SegmentBase"`
	SegmentList       *SegmentList      `xml:"SegmentList"`
}

// SegmentTemplate mirrors the $Resolved.SegTemplate$ / $InitPath$ pair
// plus either a shared or Representation-owned SegmentTimeline.
type SegmentTemplate struct {
	Timescale              uint32           `xml:"timescale,attr,omitempty"`
	Initialization          string           `xml:"initialization,attr,omitempty"`
	Media                   string           `xml:"media,attr,omitempty"`
	StartNumber             uint32           `xml:"startNumber,attr,omitempty"`
	Duration                uint32           `xml:"duration,attr,omitempty"`
	PresentationTimeOffset  uint64           `xml:"presentationTimeOffset,attr,omitempty"`
	SegmentTimeline         *SegmentTimeline `xml:"SegmentTimeline"`
}

// SegmentTimeline lists <S t= d= r=> entries, parallel to
// dasher.SegmentTimeline.
type SegmentTimeline struct {
	S []SegmentTimelineSegment `xml:"S"`
}

// SegmentTimelineSegment is one run-length-compacted timeline entry.
type SegmentTimelineSegment struct {
	T *uint64 `xml:"t,attr"`
	D uint64  `xml:"d,attr"`
	R *int64  `xml:"r,attr"`
}

// SegmentBase addresses a single-segment Representation by byte range
// (spec §3's ShapeSegmentBase), per ISO/IEC 23009-1 §5.3.9.2.
type SegmentBase struct {
	Timescale      uint32 `xml:"timescale,attr,omitempty"`
	IndexRange     string `xml:"indexRange,attr,omitempty"`
	Initialization *URLType `xml:"Initialization"`
}

// SegmentList explicitly enumerates <SegmentURL> elements (spec §3's
// ShapeSegmentList), per ISO/IEC 23009-1 §5.3.9.3.
type SegmentList struct {
	Timescale      uint32       `xml:"timescale,attr,omitempty"`
	Duration       uint32       `xml:"duration,attr,omitempty"`
	Initialization *URLType     `xml:"Initialization"`
	SegmentURLs    []SegmentURL `xml:"SegmentURL"`
}

// URLType is a bare @sourceURL/@range pair, reused by both
// Initialization and RepresentationIndex elements.
type URLType struct {
	SourceURL string `xml:"sourceURL,attr,omitempty"`
	Range     string `xml:"range,attr,omitempty"`
}

// SegmentURL is one enumerated media segment in a SegmentList.
type SegmentURL struct {
	Media      string `xml:"media,attr,omitempty"`
	MediaRange string `xml:"mediaRange,attr,omitempty"`
	Index      string `xml:"index,attr,omitempty"`
	IndexRange string `xml:"indexRange,attr,omitempty"`
}

var emptyElementRE = regexp.MustCompile(`<([A-Za-z][\w:]*)([^>]*)></([\w:]+)>`)

// Encode marshals m to indented XML and applies the post-processing
// jun-oku-mpd's Encode performs: collapsing empty elements to
// self-closing form and injecting the xmlns:cenc/xmlns:xlink prefixes
// that have no corresponding Go struct field.
func (m *MPD) Encode(usesCENC, usesXlink bool) ([]byte, error) {
	out, err := xml.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mpd: marshal: %w", err)
	}

	doc := append([]byte(xml.Header), out...)

	rootEnd := bytes.Index(doc, []byte("<MPD "))
	if rootEnd < 0 {
		rootEnd = bytes.Index(doc, []byte("<MPD>"))
	}
	if rootEnd >= 0 {
		insert := rootEnd + len("<MPD")
		var attrs strings.Builder
		if usesCENC {
			attrs.WriteString(` xmlns:cenc="urn:mpeg:cenc:2013"`)
		}
		if usesXlink {
			attrs.WriteString(` xmlns:xlink="http://www.w3.org/1999/xlink"`)
		}
		if attrs.Len() > 0 {
			doc = append(doc[:insert], append([]byte(attrs.String()), doc[insert:]...)...)
		}
	}

	doc = emptyElementRE.ReplaceAll(doc, []byte("<$1$2/>"))

	return doc, nil
}

// Encoder implements dasher.ManifestSerializer, building an MPD tree
// from a dasher.Presentation and encoding it.
type Encoder struct{}

// NewEncoder creates an Encoder. It holds no state: every Serialize
// call builds a fresh tree from the Presentation handed to it.
func NewEncoder() *Encoder { return &Encoder{} }

// Serialize implements dasher.ManifestSerializer.
func (e *Encoder) Serialize(_ context.Context, p *dasher.Presentation) ([]byte, error) {
	usesCENC := false // dasher does not model DRM content protection today; reserved for a future ContentProtection pass-through
	usesXlink := presentationUsesXlink(p)

	m := &MPD{
		XMLNS:    "urn:mpeg:dash:schema:mpd:2011",
		Profiles: strings.Join(p.ProfileExtensions, ","),
		Type:     p.Type,
	}

	if p.MinBufferTime > 0 {
		m.MinBufferTime = formatDuration(p.MinBufferTime)
	}
	if p.Type == "dynamic" {
		if p.MinimumUpdatePeriod > 0 {
			m.MinimumUpdatePeriod = formatDuration(p.MinimumUpdatePeriod)
		}
		if p.TimeShiftBufferDepth > 0 {
			m.TimeShiftBufferDepth = formatDuration(p.TimeShiftBufferDepth)
		}
		if !p.AvailabilityStartTime.IsZero() {
			m.AvailabilityStartTime = p.AvailabilityStartTime.UTC().Format(time.RFC3339)
		}
	} else if p.Duration > 0 {
		m.MediaPresentationDuration = formatDuration(p.Duration)
	}

	if p.Title != "" || p.Source != "" || p.Copyright != "" {
		m.ProgramInformation = &ProgramInfo{Title: p.Title, Source: p.Source, Copyright: p.Copyright}
	}
	m.BaseURL = p.BaseURLs
	m.Locations = p.Locations

	for _, period := range p.Periods {
		m.Periods = append(m.Periods, buildPeriod(period))
	}

	return m.Encode(usesCENC, usesXlink)
}

func presentationUsesXlink(p *dasher.Presentation) bool {
	for _, period := range p.Periods {
		if period.Xlink != "" {
			return true
		}
	}
	return false
}

func buildPeriod(p *dasher.Period) *Period {
	out := &Period{
		ID:        p.ID,
		Start:     formatDuration(secondsToDuration(p.Start)),
		XlinkHref: p.Xlink,
	}
	if p.Duration > 0 {
		out.Duration = formatDuration(secondsToDuration(p.Duration))
	}
	for _, set := range p.AdaptationSets {
		out.AdaptationSets = append(out.AdaptationSets, buildAdaptationSet(p, set))
	}
	return out
}

func buildAdaptationSet(p *dasher.Period, set *dasher.AdaptationSet) *AdaptationSet {
	out := &AdaptationSet{
		ID:                 set.ID,
		BitstreamSwitching: set.BitstreamSwitching,
		MaxWidth:           set.MaxWidth,
		MaxHeight:          set.MaxHeight,
		Lang:               set.Language,
		StartWithSAP:       int(set.StartsWithSAP),
	}
	if set.Align {
		out.SegmentAlignment = NewConditionalBool(true)
	}
	for _, r := range set.Roles {
		out.Roles = append(out.Roles, Descriptor{SchemeIDURI: "urn:mpeg:dash:role:2011", Value: r})
	}
	for _, d := range set.CondDesc {
		if !d.IsMalformed() {
			out.Roles = append(out.Roles, Descriptor{SchemeIDURI: "urn:mpeg:dash:descriptor", Value: d.XML})
		}
	}

	if set.Align && set.Timeline.Count() > 0 {
		out.SegmentTemplate = &SegmentTemplate{SegmentTimeline: buildTimeline(&set.Timeline)}
	}

	var firstHint string
	for _, idx := range repIndicesOf(p, set) {
		if idx < 0 || idx >= len(p.Representations) {
			continue
		}
		rep, hint := buildRepresentation(p.Representations[idx], set)
		out.Representations = append(out.Representations, rep)
		if firstHint == "" {
			firstHint = hint
		}
	}

	if out.SegmentTemplate == nil {
		out.MimeType = firstHint
	}

	return out
}

// repIndicesOf recovers the Representation indices belonging to set.
// AdaptationSet only stores an unexported slice, so this walks the
// Period's Representations by position. The dasher package's grouping
// does not append to Period.Representations, so for a Period built by
// the engine this returns no indices.
func repIndicesOf(p *dasher.Period, set *dasher.AdaptationSet) []int {
	var out []int
	for i, rep := range p.Representations {
		if representationBelongsTo(p, rep, set) {
			out = append(out, i)
		}
	}
	return out
}

// representationBelongsTo reports whether rep is reachable from one of
// set's member Streams, using the Stream<->AdaptationSet/Representation
// index links maintained by the grouping pass.
func representationBelongsTo(p *dasher.Period, rep *dasher.Representation, set *dasher.AdaptationSet) bool {
	for asIdx, candidate := range p.AdaptationSets {
		if candidate != set {
			continue
		}
		for _, s := range p.Streams {
			if s.AdaptationSetIndex() != asIdx {
				continue
			}
			if ri := s.RepresentationIndex(); ri >= 0 && ri < len(p.Representations) && p.Representations[ri] == rep {
				return true
			}
		}
	}
	return false
}

func buildRepresentation(rep *dasher.Representation, set *dasher.AdaptationSet) (*Representation, string) {
	r := &Representation{
		ID:                rep.ID,
		Bandwidth:         rep.Bandwidth,
		Codecs:            rep.CodecString,
		Width:             rep.Width,
		Height:            rep.Height,
		AudioSamplingRate: rep.SampleRate,
	}
	if rep.SARNum > 0 && rep.SARDen > 0 {
		r.SAR = fmt.Sprintf("%d:%d", rep.SARNum, rep.SARDen)
	}
	if rep.FPSNum > 0 && rep.FPSDen > 0 {
		r.FrameRate = fmt.Sprintf("%d/%d", rep.FPSNum, rep.FPSDen)
	}

	switch rep.Shape {
	case dasher.ShapeSegmentTemplate:
		tmpl := &SegmentTemplate{
			Initialization: rep.InitSegment,
			Media:          rep.SegTemplate,
		}
		if !set.Align {
			tmpl.SegmentTimeline = buildTimeline(&rep.Timeline)
		}
		r.SegmentTemplate = tmpl
	case dasher.ShapeSegmentBase:
		r.SegmentBase = &SegmentBase{Initialization: &URLType{SourceURL: rep.InitSegment}}
	case dasher.ShapeSegmentList:
		r.SegmentList = &SegmentList{Initialization: &URLType{SourceURL: rep.InitSegment}}
	}

	mime := ""
	if len(rep.ContentComponents) > 0 {
		mime = string(rep.ContentComponents[0].ContentType)
	} else if rep.Width > 0 || rep.Height > 0 {
		mime = "video/mp4"
	} else if rep.SampleRate > 0 {
		mime = "audio/mp4"
	}

	return r, mime
}

func buildTimeline(t *dasher.SegmentTimeline) *SegmentTimeline {
	if t == nil || len(t.Entries) == 0 {
		return nil
	}
	out := &SegmentTimeline{}
	for _, e := range t.Entries {
		entry := SegmentTimelineSegment{D: uint64(e.D)}
		tv := uint64(e.T)
		entry.T = &tv
		if e.R != 0 {
			rv := e.R
			entry.R = &rv
		}
		out.S = append(out.S, entry)
	}
	return out
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "PT0S"
	}
	total := d.Seconds()
	hours := int64(total / 3600)
	total -= float64(hours) * 3600
	minutes := int64(total / 60)
	total -= float64(minutes) * 60

	var sb strings.Builder
	sb.WriteString("P")
	if hours > 0 || minutes > 0 || total > 0 {
		sb.WriteString("T")
	}
	if hours > 0 {
		fmt.Fprintf(&sb, "%dH", hours)
	}
	if minutes > 0 {
		fmt.Fprintf(&sb, "%dM", minutes)
	}
	if total > 0 || (hours == 0 && minutes == 0) {
		fmt.Fprintf(&sb, "%sS", strconv.FormatFloat(total, 'f', -1, 64))
	}
	return sb.String()
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
