package muxer

import (
	"context"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"sync"

	"github.com/jmylchreest/dasher/internal/dasher"
	"github.com/jmylchreest/dasher/internal/template"
)

// Opener implements dasher.MuxerOpener, writing each Representation's
// init and media segments as files under baseDir/<repID>/.
type Opener struct {
	baseDir  string
	expander *template.Expander
}

// NewOpener creates an Opener rooted at baseDir.
func NewOpener(baseDir string) *Opener {
	return &Opener{baseDir: baseDir, expander: template.NewExpander()}
}

// Open implements dasher.MuxerOpener.
func (o *Opener) Open(_ context.Context, repID string, opts dasher.MuxerOpenOptions) (dasher.MuxerConnection, error) {
	dir := filepath.Join(o.baseDir, repID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("muxer: create representation directory: %w", err)
	}

	c := &Connection{
		repID:    repID,
		dir:      dir,
		opts:     opts,
		expander: o.expander,
		trackID:  trackIDFor(repID),
		events:   make(chan dasher.SegmentSizeEvent, 16),
		seqNum:   1,
		number:   opts.StartNumber,
	}
	if c.opts.Timescale == 0 {
		c.opts.Timescale = 90000
	}
	if c.number == 0 {
		c.number = 1
	}

	if !opts.NoInit {
		if err := c.writeInitSegment(); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// trackIDFor derives a stable, nonzero track ID from a Representation
// ID so restarts reopen the same numeric identity (spec §4.8's
// persistence layer keys state by RepID, not by a runtime counter).
func trackIDFor(repID string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(repID))
	v := h.Sum32()
	if v == 0 {
		return 1
	}
	return v
}

// Connection is one open downstream fMP4 connection for a
// Representation, implementing dasher.MuxerConnection.
type Connection struct {
	mu sync.Mutex

	repID    string
	dir      string
	opts     dasher.MuxerOpenOptions
	expander *template.Expander
	trackID  uint32

	seqNum uint32
	number uint32

	// fileNumber/fileName are captured from the first packet's output
	// properties (spec §6) at the start of a fragment and take
	// precedence over the connection's own auto-incrementing number
	// when the scheduler has stamped one (spec §4.5 step 10).
	fileNumber uint32
	fileName   string

	pending        []fragmentSample
	baseDecodeTime uint64
	segmentBytes   int64
	initBytes      int64

	events chan dasher.SegmentSizeEvent
	closed bool
}

func (c *Connection) writeInitSegment() error {
	data := buildInitSegment(InitSegmentParams{
		TrackID:   c.trackID,
		Timescale: c.opts.Timescale,
		Width:     c.opts.Width,
		Height:    c.opts.Height,
		Video:     c.opts.Width > 0 || c.opts.Height > 0,
	})

	path := filepath.Join(c.dir, filepath.Base(c.opts.InitSegmentPath))
	if path == c.dir || filepath.Base(c.opts.InitSegmentPath) == "" {
		path = filepath.Join(c.dir, "init.mp4")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("muxer: write init segment for %s: %w", c.repID, err)
	}
	c.initBytes = int64(len(data))

	c.emit(dasher.SegmentSizeEvent{
		RepresentationID: c.repID,
		IsInit:           true,
		MediaRangeEnd:    c.initBytes - 1,
	})

	return nil
}

// WritePacket implements dasher.MuxerConnection. When segmentStart is
// true and a fragment is already pending, the pending fragment is
// flushed to disk before pkt starts accumulating into the next one.
func (c *Connection) WritePacket(_ context.Context, pkt dasher.Packet, segmentStart bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("muxer: write to closed connection %s", c.repID)
	}

	if segmentStart && len(c.pending) > 0 {
		if err := c.flushLocked(); err != nil {
			return err
		}
	}

	if len(c.pending) == 0 {
		c.baseDecodeTime = uint64(pkt.DTS)
		c.fileNumber = pkt.FileNumber
		c.fileName = pkt.FileName
	}

	c.pending = append(c.pending, fragmentSample{
		Duration: uint32(pkt.Duration),
		Size:     uint32(len(pkt.Data)),
		Keyframe: pkt.KeyFrame || pkt.SAP != 0,
		Data:     pkt.Data,
	})

	return nil
}

// flushLocked writes the accumulated samples as one moof+mdat fragment
// file and emits its byte range. Caller must hold c.mu.
func (c *Connection) flushLocked() error {
	data := buildFragment(c.trackID, c.seqNum, c.baseDecodeTime, c.pending)

	// The scheduler's stamped FileNumber wins when present, since it
	// tracks seg_number's non-1:1 advancement under SkipSeg; a
	// connection fed raw (e.g. by a test) falls back to its own count.
	number := c.fileNumber
	if number == 0 {
		number = c.number
	}

	name := c.fileName
	if name == "" {
		var err error
		name, err = c.expander.Expand(c.opts.SegmentTemplate, template.TemplateVars{
			RepresentationID: c.repID,
			Number:           number,
			Time:             int64(c.baseDecodeTime),
		})
		if err != nil {
			name = fmt.Sprintf("seg_%d.m4s", number)
		}
	}

	path := filepath.Join(c.dir, filepath.Base(name))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("muxer: write fragment for %s: %w", c.repID, err)
	}

	start := c.segmentBytes
	c.segmentBytes += int64(len(data))

	c.emit(dasher.SegmentSizeEvent{
		RepresentationID: c.repID,
		MediaRangeStart:  start,
		MediaRangeEnd:    c.segmentBytes - 1,
	})

	c.seqNum++
	c.number++
	c.pending = nil

	return nil
}

func (c *Connection) emit(ev dasher.SegmentSizeEvent) {
	select {
	case c.events <- ev:
	default:
		// Slow consumer: drop rather than block the segmentation hot
		// loop, matching spec §5's "must never block" contract for
		// collaborators driven from Process.
	}
}

// Events implements dasher.MuxerConnection.
func (c *Connection) Events() <-chan dasher.SegmentSizeEvent { return c.events }

// Close implements dasher.MuxerConnection, flushing any buffered
// fragment before releasing the connection.
func (c *Connection) Close(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	if len(c.pending) > 0 {
		if err := c.flushLocked(); err != nil {
			return err
		}
	}
	c.closed = true
	close(c.events)
	return nil
}
