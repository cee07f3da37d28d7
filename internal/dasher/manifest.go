package dasher

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Emitter assembles the top-level Presentation object and delegates
// byte serialization to an external ManifestSerializer, per spec §4.7.
type Emitter struct {
	serializer ManifestSerializer
}

// NewEmitter creates an Emitter over serializer.
func NewEmitter(serializer ManifestSerializer) *Emitter {
	return &Emitter{serializer: serializer}
}

// ProfileURN returns "urn:mpeg:dash:profile:<name>:2011" for pr. When
// mpegTS is true and pr is ProfileLive, the DVB-DASH and HbbTV live
// profile URNs are appended. No mp2t-simple or mp2t-main URN is
// produced.
func ProfileURN(pr Profile, mpegTS bool) string {
	const base = "urn:mpeg:dash:profile:"
	suffix := pr.String()
	urn := base + suffix + ":2011"
	if mpegTS {
		if pr == ProfileLive {
			urn += ",urn:dvb:dash:profile:dvb-dash:2014,urn:hbbtv:dash:profile:isoff-live:2012"
		}
	}
	return urn
}

// Namespaces returns the extra xmlns declarations required given
// whether CENC protection or xlink references appear anywhere in the
// Presentation (spec §4.7).
func Namespaces(usesCENC, usesXlink bool) []string {
	var ns []string
	if usesCENC {
		ns = append(ns, `xmlns:cenc="urn:mpeg:cenc:2013"`)
	}
	if usesXlink {
		ns = append(ns, `xmlns:xlink="http://www.w3.org/1999/xlink"`)
	}
	return ns
}

// BuildPresentation assembles pr's top-level attributes from the
// current Period set and options, per spec §4.7. It does not mutate
// pr.Periods; callers populate that slice separately as Periods are
// promoted by the PeriodMachine.
func BuildPresentation(pr *Presentation, opts Options, mpegTS bool, usesCENC, usesXlink bool, now time.Time) {
	pr.Profile = opts.Profile

	if pr.Type == "" {
		if opts.Profile == ProfileOnDemand || opts.Profile == ProfileAVC264OnDemand {
			pr.Type = "static"
		} else {
			pr.Type = "dynamic"
		}
	}

	if pr.Type == "dynamic" && pr.AvailabilityStartTime.IsZero() && !opts.ForTest {
		pr.AvailabilityStartTime = now.UTC()
	}

	if pr.MinBufferTime == 0 {
		pr.MinBufferTime = 2 * time.Second
	}

	var duration time.Duration
	for _, p := range pr.Periods {
		duration += time.Duration(p.Duration * float64(time.Second))
	}
	if pr.Type == "static" {
		pr.Duration = duration
	}

	ns := Namespaces(usesCENC, usesXlink)
	urn := ProfileURN(opts.Profile, mpegTS)
	ext := append([]string{urn}, ns...)
	pr.ProfileExtensions = ext
}

// Publish serializes pr via the external ManifestSerializer, per
// spec §4.7's "writes a UTF-8 byte stream consumed by a downstream
// output pid." Called after first SAP of every stream, on every
// Period switch, and on explicit request (spec §5 "Ordering
// guarantees").
func (e *Emitter) Publish(ctx context.Context, pr *Presentation) ([]byte, error) {
	out, err := e.serializer.Serialize(ctx, pr)
	if err != nil {
		return nil, newError(CodeIOError, "serialize manifest", err)
	}
	return out, nil
}

// ProgramInfo renders the title/source/info/copyright block as a
// single descriptive string, used by CLI diagnostics (not part of the
// serialized manifest itself, which owns its own XML rendering).
func ProgramInfo(pr *Presentation) string {
	var parts []string
	for _, field := range []string{pr.Title, pr.Source, pr.Info, pr.Copyright} {
		if field != "" {
			parts = append(parts, field)
		}
	}
	return strings.Join(parts, " | ")
}

// DescribePeriods renders a short human-readable summary of the
// Presentation's current period layout, useful in log lines emitted
// around manifest publication.
func DescribePeriods(pr *Presentation) string {
	var sb strings.Builder
	for i, p := range pr.Periods {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s[start=%.3fs dur=%.3fs %s]", p.ID, p.Start, p.Duration, p.State)
	}
	return sb.String()
}
