package dasher

import (
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// NewRepresentationID synthesizes a Representation ID when the input
// stream configuration omits a rep-id, per spec §6's "rep-id" contract
// field being optional.
func NewRepresentationID() string {
	return uuid.NewString()
}

// NewPeriodID synthesizes a Period ID when streams do not carry one.
func NewPeriodID() string {
	return uuid.NewString()
}

// NewSnapshotID generates a sortable, monotonic identifier for a
// persistence snapshot (SPEC_FULL.md §10.3/§11), so successive restore
// points can be ordered without reparsing timestamps.
func NewSnapshotID() string {
	return ulid.Make().String()
}
