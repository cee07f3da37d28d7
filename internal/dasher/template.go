package dasher

import (
	"context"
	"fmt"
	"strings"
)

// Resolver materialises the segment-addressing shape for each
// Representation in a Period and opens the downstream muxer connections,
// per spec §4.4.
type Resolver struct {
	expander TemplateExpander
	opener   MuxerOpener
}

// NewResolver creates a Resolver over the given collaborators.
func NewResolver(expander TemplateExpander, opener MuxerOpener) *Resolver {
	return &Resolver{expander: expander, opener: opener}
}

// Resolved is the per-Representation outcome of template resolution.
type Resolved struct {
	RepresentationID string
	InitPath         string
	SegTemplate      string
	Shape            SegmentShape
	Connection       MuxerConnection
}

// ResolvePeriod decides, for every Representation owned by p, whether an
// Adaptation-Set-level template can serve the whole set or whether
// per-Representation templates are required, then opens one muxer
// connection per base stream (spec §4.4).
func (r *Resolver) ResolvePeriod(ctx context.Context, p *Period, opts Options) ([]Resolved, error) {
	var out []Resolved

	for _, set := range p.AdaptationSets {
		members := membersOfSet(p, set)
		if len(members) == 0 {
			continue
		}

		shared := r.sharedTemplate(members)

		for _, s := range members {
			if s.MuxedBase != "" {
				continue // rides on its base's connection; no template of its own
			}

			shape := segmentShapeFor(opts)
			tmpl := s.Template
			if shared != "" {
				tmpl = shared
			}

			initPath, err := r.expander.Expand("$Init=init.mp4$", TemplateVars{RepresentationID: s.RepID})
			if err != nil {
				return nil, newError(CodeBadParam, fmt.Sprintf("expand init template for %s", s.RepID), err)
			}
			initPath = s.RepID + "/" + initPath

			openOpts := MuxerOpenOptions{
				InitSegmentPath: initPath,
				SegmentTemplate: tmpl,
				StartNumber:     s.StartNumber,
				Timescale:       s.Timescale,
				Width:           s.Width,
				Height:          s.Height,
				Fragmented:      shape == ShapeSegmentTemplate,
				SingleSegment:   shape == ShapeSegmentBase,
				InbandParams:    inbandParamsFlag(s, opts),
				NoInit:          s.Counters.RepInit,
				NoFragsDefault:  opts.Profile == ProfileHbbTV15,
			}

			conn, err := r.opener.Open(ctx, s.RepID, openOpts)
			if err != nil {
				return nil, newError(CodeSetupFailed, fmt.Sprintf("open muxer connection for %s", s.RepID), err)
			}

			out = append(out, Resolved{
				RepresentationID: s.RepID,
				InitPath:         initPath,
				SegTemplate:      tmpl,
				Shape:            shape,
				Connection:       conn,
			})
		}
	}

	return out, nil
}

// sharedTemplate returns a single AS-level template string when every
// member can use it, or "" when per-Representation templates are
// required (spec §4.4).
func (r *Resolver) sharedTemplate(members []*Stream) string {
	if len(members) == 0 {
		return ""
	}

	first := members[0].Template
	if first == "" {
		return ""
	}

	for _, s := range members {
		if s.Template != first {
			return ""
		}
		if r.expander.UsesSourceURL(s.Template) {
			return ""
		}
	}

	multi := len(members) > 1
	if multi && !strings.Contains(first, "$Bandwidth$") && !strings.Contains(first, "$RepresentationID$") {
		return ""
	}

	return first
}

// segmentShapeFor maps the configured profile to an addressing shape:
// the on-demand profiles (ProfileOnDemand, ProfileAVC264OnDemand) get
// SegmentBase and every other profile gets SegmentTemplate. SegmentList
// is never selected here.
func segmentShapeFor(opts Options) SegmentShape {
	switch opts.Profile {
	case ProfileOnDemand, ProfileAVC264OnDemand:
		return ShapeSegmentBase
	default:
		return ShapeSegmentTemplate
	}
}

// inbandParamsFlag renders the xps_inband connection flag per spec §4.4.
func inbandParamsFlag(s *Stream, opts Options) string {
	if s.InbandParams && opts.SwitchMode != SwitchOff {
		return "all"
	}
	return "no"
}

func membersOfSet(p *Period, set *AdaptationSet) []*Stream {
	idx := -1
	for i, candidate := range p.AdaptationSets {
		if candidate == set {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	var out []*Stream
	for _, s := range p.Streams {
		if s.AdaptationSetIndex() == idx {
			out = append(out, s)
		}
	}
	return out
}
