package dasher

import (
	"context"
	"encoding/json"
	"os"
)

// RepresentationState is the per-Representation "dasher-context"
// persisted across restarts, per spec §4.8.
type RepresentationState struct {
	ID             string  `json:"id"`
	Done           DoneState `json:"done"`
	InitSeg        string  `json:"init_seg"`
	SourceURL      string  `json:"src_url"`
	TemplateSeg    string  `json:"template_seg"`
	PidID          uint32  `json:"pid_id"`
	MuxedCompID    string  `json:"muxed_comp_id,omitempty"`
	PeriodStart    float64 `json:"period_start"`
	PeriodDuration float64 `json:"period_duration"`
	PeriodID       string  `json:"period_id"`
	MultiPIDs      bool    `json:"multi_pids"`
	DashDur        float64 `json:"dash_dur"`
	OwnsSet        bool    `json:"owns_set"`
	LastPckIdx     uint32  `json:"last_pck_idx"`
	SegNumber      uint32  `json:"seg_number"`
	NextSegStart   int64   `json:"next_seg_start"`
	FirstCTS       int64   `json:"first_cts"`
}

// SnapshotDoc is the serialized form written to the state file: a
// snapshot identifier plus every live Representation's context (spec
// §4.8 — "state is stored as a serialized presentation carrying a
// per-Representation dasher-context").
type SnapshotDoc struct {
	SnapshotID      string                 `json:"snapshot_id"`
	Representations []RepresentationState  `json:"representations"`
}

// Snapshot builds a SnapshotDoc from the current Period's Streams and
// Representations, to be written at Period start and Period end
// (spec §4.8).
func Snapshot(p *Period) SnapshotDoc {
	doc := SnapshotDoc{SnapshotID: NewSnapshotID()}
	for _, s := range p.Streams {
		state := RepresentationState{
			ID:             s.RepID,
			Done:           s.Done,
			InitSeg:        "", // left empty: Stream carries no init segment path
			SourceURL:      s.SourceURL,
			TemplateSeg:    s.Template,
			PidID:          s.PidID,
			MuxedCompID:    s.MuxedBase,
			PeriodStart:    s.PeriodStart,
			PeriodDuration: s.PeriodDur,
			PeriodID:       s.PeriodID,
			DashDur:        s.DashDur,
			LastPckIdx:     s.Counters.NbPck,
			SegNumber:      s.Counters.SegNumber,
			NextSegStart:   s.Counters.NextSegStart,
			FirstCTS:       s.Counters.FirstCTS,
		}
		doc.Representations = append(doc.Representations, state)
	}
	return doc
}

// Restore applies a SnapshotDoc's per-Representation state back onto
// the matching Streams of p by RepID (spec §4.2 "restore path"). A state
// whose ID matches no Stream is skipped; no Representation is marked
// Removed.
func Restore(p *Period, doc SnapshotDoc) {
	byID := make(map[string]*Stream, len(p.Streams))
	for _, s := range p.Streams {
		byID[s.RepID] = s
	}

	for _, state := range doc.Representations {
		s, ok := byID[state.ID]
		if !ok {
			continue
		}
		s.Done = state.Done
		s.SourceURL = state.SourceURL
		s.Template = state.TemplateSeg
		s.PidID = state.PidID
		s.MuxedBase = state.MuxedCompID
		s.PeriodStart = state.PeriodStart
		s.PeriodDur = state.PeriodDuration
		s.PeriodID = state.PeriodID
		s.DashDur = state.DashDur
		s.Counters.SeekToPck = state.LastPckIdx
		s.Counters.SegNumber = state.SegNumber
		s.Counters.NextSegStart = state.NextSegStart
		s.Counters.AdjustedNextSegStart = state.NextSegStart
		s.Counters.FirstCTS = state.FirstCTS
		s.Counters.RepInit = state.FirstCTS != 0 || state.LastPckIdx > 0
	}
}

// StateStore persists and loads SnapshotDoc values to/from a local
// file path, per Options.StateFilePath (spec §4.8). It is a thin JSON
// codec; an operator wanting remote state storage swaps it for their
// own implementation behind the same two methods.
type StateStore struct {
	path string
}

// NewStateStore creates a StateStore rooted at path.
func NewStateStore(path string) *StateStore {
	return &StateStore{path: path}
}

// Save writes doc to the store's path as JSON.
func (st *StateStore) Save(ctx context.Context, doc SnapshotDoc) error {
	if st.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return newError(CodeIOError, "marshal state snapshot", err)
	}
	if err := os.WriteFile(st.path, data, 0o644); err != nil {
		return newError(CodeIOError, "write state file", err)
	}
	return nil
}

// Load reads and parses a previously-saved SnapshotDoc, surfaced as
// url-error per spec §7's "State-file parse failure" category.
func (st *StateStore) Load(ctx context.Context) (SnapshotDoc, error) {
	if st.path == "" {
		return SnapshotDoc{}, nil
	}
	data, err := os.ReadFile(st.path)
	if err != nil {
		if os.IsNotExist(err) {
			return SnapshotDoc{}, nil
		}
		return SnapshotDoc{}, newError(CodeURLError, "read state file", err)
	}
	var doc SnapshotDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return SnapshotDoc{}, newError(CodeURLError, "parse state file", err)
	}
	return doc, nil
}
