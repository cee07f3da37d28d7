package dasher

import "time"

// Options configures an Engine. internal/config.DasherConfig is loaded
// from YAML/env/flags and translated into Options by the CLI layer
// (cmd/dasher/cmd/run.go); the engine itself has no knowledge of Viper.
type Options struct {
	Profile    Profile
	SwitchMode SwitchMode

	// Align, when true, requires every Representation in an Adaptation
	// Set to emit the same segment count within 1ms tolerance (spec §3.2).
	Align bool

	// SAP, when false, disables the "segment over" check at SAP
	// boundaries (spec §4.5 step 8).
	SAP bool

	// NoSAR disables pixel-aspect-ratio comparison in same-AS grouping
	// (spec §4.3).
	NoSAR bool

	// MixCodecs allows audio/other streams with differing codec
	// strings into the same Adaptation Set (spec §4.3).
	MixCodecs bool

	// SkipSeg opts into the non-compliant seg_number advancement across
	// empty would-be segments (spec §4.5 "flush_segment semantics";
	// Open Question in spec §9: "keep it behind an opt-in flag").
	SkipSeg bool

	// CheckDur enables cross-representation truncation of laggard
	// streams once one Representation in the AS finishes (spec §4.5
	// "Cross-representation truncation").
	CheckDur bool

	// Subdur, if nonzero, bounds how much cumulated duration any base
	// stream may produce before being marked DoneSubdurExceeded
	// (spec §5 "Cancellation").
	Subdur time.Duration

	// NTP controls sender-NTP timestamp stamping on segment-start
	// packets (spec §6).
	NTP NTPMode

	// DashDur is the default target segment duration when a Stream does
	// not specify its own.
	DashDur time.Duration

	// HbbTVCompat governs the Open-Question resolution for the
	// HbbTV-1.5 profile (SPEC_FULL.md §12): when true and Profile is
	// ProfileHbbTV15, NewEngine forces CheckMainRole on and SwitchMode to
	// SwitchMulti; the profile keeps live-style SegmentTemplate
	// addressing. Leaving this false opts out.
	HbbTVCompat bool

	// CheckMainRole is carried on Options (and forced on by HbbTVCompat),
	// but grouping does not read it: "main" is always treated as the
	// implicit default role (spec §4.3).
	CheckMainRole bool

	// ForTest disables wall-clock-derived fields (availability start
	// time, NTP) so golden-output tests are deterministic.
	ForTest bool

	// StateFilePath, when non-empty, is read at startup (restore path,
	// spec §4.2) and written at every Period start/end (spec §4.8).
	StateFilePath string
}

// DefaultOptions returns the engine defaults used when a host does not
// override them; conservative, DASH-compliant defaults (SAP on,
// SkipSeg off) per spec §9's "non-compliant; keep behind opt-in".
func DefaultOptions() Options {
	return Options{
		Profile:    ProfileLive,
		SwitchMode: SwitchDefault,
		Align:      true,
		SAP:        true,
		CheckDur:   true,
		DashDur:    2 * time.Second,
	}
}
