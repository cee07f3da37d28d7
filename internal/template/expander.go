// Package template expands the DASH segment-template tokens enumerated
// in spec §6 into concrete path strings, implementing
// dasher.TemplateExpander.
package template

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Expander expands $Number$, $Time$, $Bandwidth$, $RepresentationID$,
// and the dasher-specific extensions $Init=…$, $Index=…$, $Path=…$,
// $Segment=…$, plus the source-dependent tokens $File$, $FSRC$,
// $SourcePath$, $FURL$, $URL$.
type Expander struct {
	printer *message.Printer
}

// NewExpander creates an Expander. The printer is used only by Describe
// to render thousands separators; DASH's own zero-padding
// (`$Number%0Nd$`) is handled independently of locale.
func NewExpander() *Expander {
	return &Expander{printer: message.NewPrinter(language.English)}
}

var numberToken = regexp.MustCompile(`\$Number(%0(\d+)d)?\$`)
var extensionToken = regexp.MustCompile(`\$(Init|Index|Path|Segment)=([^$]*)\$`)

// Expand substitutes every recognized token in tmpl using vars, per
// spec §6's template-token table.
func (e *Expander) Expand(tmpl string, vars TemplateVars) (string, error) {
	out := tmpl

	out = numberToken.ReplaceAllStringFunc(out, func(match string) string {
		sub := numberToken.FindStringSubmatch(match)
		if sub[2] != "" {
			width, err := strconv.Atoi(sub[2])
			if err == nil {
				return fmt.Sprintf("%0*d", width, vars.Number)
			}
		}
		return strconv.FormatUint(uint64(vars.Number), 10)
	})

	out = strings.ReplaceAll(out, "$RepresentationID$", vars.RepresentationID)
	out = strings.ReplaceAll(out, "$Bandwidth$", strconv.FormatUint(uint64(vars.Bandwidth), 10))
	out = strings.ReplaceAll(out, "$Time$", strconv.FormatInt(vars.Time, 10))

	out = extensionToken.ReplaceAllStringFunc(out, func(match string) string {
		sub := extensionToken.FindStringSubmatch(match)
		kind, value := sub[1], sub[2]
		switch kind {
		case "Init":
			return value
		case "Index":
			return value
		case "Path":
			return value
		case "Segment":
			return value
		default:
			return match
		}
	})

	if strings.Contains(out, "$File$") || strings.Contains(out, "$FSRC$") ||
		strings.Contains(out, "$SourcePath$") || strings.Contains(out, "$FURL$") || strings.Contains(out, "$URL$") {
		if vars.SourceURL == "" {
			return "", fmt.Errorf("template: %q requires a source URL but none was provided", tmpl)
		}
		out = strings.ReplaceAll(out, "$File$", baseName(vars.SourceURL))
		out = strings.ReplaceAll(out, "$FSRC$", vars.SourceURL)
		out = strings.ReplaceAll(out, "$SourcePath$", vars.SourceURL)
		out = strings.ReplaceAll(out, "$FURL$", vars.SourceURL)
		out = strings.ReplaceAll(out, "$URL$", vars.SourceURL)
	}

	out = strings.ReplaceAll(out, "$$", "$")

	return out, nil
}

// UsesSourceURL reports whether tmpl contains a token that requires a
// per-source substitution, forcing per-Representation rather than
// per-AdaptationSet templates (spec §4.4).
func (e *Expander) UsesSourceURL(tmpl string) bool {
	for _, token := range []string{"$File$", "$FSRC$", "$SourcePath$", "$FURL$", "$URL$"} {
		if strings.Contains(tmpl, token) {
			return true
		}
	}
	return false
}

// TemplateVars mirrors dasher.TemplateVars so this package has no
// import-cycle dependency on internal/dasher; the CLI wiring layer
// adapts between the two.
type TemplateVars struct {
	RepresentationID string
	Number           uint32
	Bandwidth        uint32
	Time             int64
	SourceURL        string
}

// Describe renders a locale-formatted diagnostic line for vars, with
// thousands separators in the segment, bandwidth and time counters. The
// CLI does not call it.
func (e *Expander) Describe(vars TemplateVars) string {
	return e.printer.Sprintf("representation=%s segment=%d bandwidth=%d time=%d", vars.RepresentationID, vars.Number, vars.Bandwidth, vars.Time)
}

func baseName(sourceURL string) string {
	idx := strings.LastIndexAny(sourceURL, "/\\")
	if idx < 0 {
		return sourceURL
	}
	return sourceURL[idx+1:]
}
