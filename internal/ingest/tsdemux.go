// Package ingest provides file-based front-ends that turn a recorded
// elementary stream or MPEG-TS capture into dasher.Packets, feeding a
// dasher.QueueFetcher the way a live reframer would feed the engine in
// production (spec.md §1's scheduler/PacketFetcher boundary; SPEC_FULL.md
// §11 scopes MPEG-TS demultiplexing to this package).
package ingest

import (
	"fmt"
	"io"
	"os"

	"github.com/asticode/go-astits"

	"github.com/jmylchreest/dasher/internal/dasher"
)

// streamIDForPID names the synthetic stream ID a TS PID is fed to the
// engine under, mirroring a reframer-then-dasher chaining where each
// demuxed PID becomes one dasher.Packet source.
func streamIDForPID(pid uint16) string {
	return fmt.Sprintf("pid%d", pid)
}

// PMTStream describes one elementary stream discovered in the TS's PMT,
// returned by FeedTSFile so the caller can ConfigureStream before
// packets start arriving.
type PMTStream struct {
	StreamID  string
	PID       uint16
	Video     bool
	Audio     bool
	CodecHint string
}

// FeedTSFile demultiplexes the MPEG-TS file at path and pushes every
// PES payload into fetcher as a dasher.Packet, keyed by the PID's
// synthetic stream ID. It demuxes eagerly to completion rather than
// streaming live, matching run.go's "file-based PacketFetcher for
// local testing" role (SPEC_FULL.md §10.4) — a live deployment would
// instead drive astits.Demuxer incrementally from a socket.
func FeedTSFile(path string, fetcher *dasher.QueueFetcher) ([]PMTStream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ingest: open %s: %w", path, err)
	}
	defer f.Close()

	dmx := astits.NewDemuxer(nil, f)

	var streams []PMTStream
	known := make(map[uint16]bool)

	for {
		data, err := dmx.NextData()
		if err != nil {
			if err == astits.ErrNoMorePackets || err == io.EOF {
				break
			}
			return streams, fmt.Errorf("ingest: demux %s: %w", path, err)
		}

		if data.PMT != nil {
			for _, es := range data.PMT.ElementaryStreams {
				if known[es.ElementaryPID] {
					continue
				}
				known[es.ElementaryPID] = true
				streams = append(streams, classifyStream(es))
			}
			continue
		}

		if data.PES == nil {
			continue
		}

		streamID := streamIDForPID(data.PID)
		pkt := dasher.Packet{
			StreamID: streamID,
			Data:     data.PES.Data,
		}
		if h := data.PES.Header.OptionalHeader; h != nil {
			if h.PTS != nil {
				pkt.CTS = h.PTS.Base
			}
			if h.DTS != nil {
				pkt.DTS = h.DTS.Base
			} else if h.PTS != nil {
				pkt.DTS = h.PTS.Base
			}
		}
		fetcher.Push(streamID, pkt)
	}

	for _, s := range streams {
		fetcher.CloseStream(s.StreamID)
	}

	return streams, nil
}

func classifyStream(es *astits.PMTElementaryStream) PMTStream {
	s := PMTStream{StreamID: streamIDForPID(es.ElementaryPID), PID: es.ElementaryPID}
	switch es.StreamType {
	case astits.StreamTypeH264Video, astits.StreamTypeH265Video, astits.StreamTypeMPEG2Video:
		s.Video = true
		s.CodecHint = "avc1"
	case astits.StreamTypeAACAudio, astits.StreamTypeAC3Audio, astits.StreamTypeMPEG1Audio:
		s.Audio = true
		s.CodecHint = "mp4a"
	}
	return s
}
