// Package muxer implements the downstream fMP4/CMAF connections the
// segmentation engine drives: one connection per Representation,
// writing init segments and moof+mdat media fragments to disk and
// reporting byte ranges back to the engine as SegmentSizeEvents.
//
// It authors the same box vocabulary the relay package's CMAFMuxer
// parses (ftyp/moov/moof/mdat/mfhd/tfhd/tfdt/trun), but in the opposite
// direction: here we are the writer, not the reader.
package muxer

import (
	"bytes"
	"encoding/binary"
)

// Box type strings, mirroring the relay package's BoxTypeXXX constants.
const (
	boxFTYP = "ftyp"
	boxMOOV = "moov"
	boxMVHD = "mvhd"
	boxTRAK = "trak"
	boxTKHD = "tkhd"
	boxMDIA = "mdia"
	boxMDHD = "mdhd"
	boxMVEX = "mvex"
	boxTREX = "trex"
	boxMOOF = "moof"
	boxMFHD = "mfhd"
	boxTRAF = "traf"
	boxTFHD = "tfhd"
	boxTFDT = "tfdt"
	boxTRUN = "trun"
	boxMDAT = "mdat"
)

// writeBox wraps payload in a standard 32-bit-size box header and
// writes it to buf.
func writeBox(buf *bytes.Buffer, boxType string, payload []byte) {
	var size [4]byte
	binary.BigEndian.PutUint32(size[:], uint32(8+len(payload)))
	buf.Write(size[:])
	buf.WriteString(boxType)
	buf.Write(payload)
}

// fullBoxHeader returns the version+flags prefix fullbox payloads start
// with (ISO/IEC 14496-12 §4.2).
func fullBoxHeader(version uint8, flags uint32) []byte {
	h := make([]byte, 4)
	h[0] = version
	h[1] = byte(flags >> 16)
	h[2] = byte(flags >> 8)
	h[3] = byte(flags)
	return h
}

func u32(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

func u64(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func i32(v int32) []byte { return u32(uint32(v)) }
