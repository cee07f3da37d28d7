package muxer

import (
	"fmt"
	"os"

	mp4 "github.com/abema/go-mp4"
)

// InitSegmentInfo is the subset of a stored init segment's moov this
// package needs to validate before resuming a Representation with
// NoInit=true (spec §4.8's restore path: "the stored init segment must
// still describe the live stream's track before `no_init` is honored").
type InitSegmentInfo struct {
	Timescale uint32
	TrackID   uint32
}

// InspectInitSegment reads path's moov/mvhd/trak/tkhd boxes with go-mp4,
// the one place this package reads rather than authors ISO-BMFF boxes.
// The dasher package's Restore (persistence.go) does not call it; a
// restored Representation's init segment is not checked against disk.
func InspectInitSegment(path string) (InitSegmentInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return InitSegmentInfo{}, fmt.Errorf("muxer: open init segment %s: %w", path, err)
	}
	defer f.Close()

	var info InitSegmentInfo

	if boxes, extractErr := mp4.ExtractBoxWithPayload(f, nil, mp4.BoxPath{mp4.BoxTypeMoov(), mp4.BoxTypeMvhd()}); extractErr == nil && len(boxes) > 0 {
		if mvhd, ok := boxes[0].Payload.(*mp4.Mvhd); ok {
			info.Timescale = mvhd.Timescale
		}
	}

	if boxes, extractErr := mp4.ExtractBoxWithPayload(f, nil, mp4.BoxPath{mp4.BoxTypeMoov(), mp4.BoxTypeTrak(), mp4.BoxTypeTkhd()}); extractErr == nil && len(boxes) > 0 {
		if tkhd, ok := boxes[0].Payload.(*mp4.Tkhd); ok {
			info.TrackID = tkhd.TrackID
		}
	}

	if info.Timescale == 0 {
		return info, fmt.Errorf("muxer: %s: no mvhd box found", path)
	}

	return info, nil
}
