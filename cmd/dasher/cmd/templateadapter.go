package cmd

import (
	"github.com/jmylchreest/dasher/internal/dasher"
	"github.com/jmylchreest/dasher/internal/template"
)

// templateExpander adapts *template.Expander to dasher.TemplateExpander.
// The two packages deliberately don't share a TemplateVars type —
// internal/template can't import internal/dasher without a cycle — so
// this CLI-layer shim is the one place the conversion happens, per
// SPEC_FULL.md §10.3/§10.4.
type templateExpander struct {
	inner *template.Expander
}

func newTemplateExpander() *templateExpander {
	return &templateExpander{inner: template.NewExpander()}
}

func (t *templateExpander) Expand(tmpl string, vars dasher.TemplateVars) (string, error) {
	return t.inner.Expand(tmpl, template.TemplateVars{
		RepresentationID: vars.RepresentationID,
		Number:           vars.Number,
		Bandwidth:        vars.Bandwidth,
		Time:             vars.Time,
		SourceURL:        vars.SourceURL,
	})
}

func (t *templateExpander) UsesSourceURL(tmpl string) bool {
	return t.inner.UsesSourceURL(tmpl)
}
