package muxer

import "bytes"

// sampleFlagsNonSync marks a trun sample as not a sync sample (ISO/IEC
// 14496-12 §8.8.3.1): bit 16 is sample_is_difference_sample.
const sampleFlagsNonSync = 0x00010000

// fragmentSample is one access unit going into a moof+mdat fragment.
type fragmentSample struct {
	Duration uint32
	Size     uint32
	Keyframe bool
	Data     []byte
}

// buildFragment authors one moof+mdat pair for sequenceNumber, mirroring
// the box layout relay.CMAFMuxer.extractTiming/extractSequenceNumber
// parse back out of a stream produced by an upstream packager.
func buildFragment(trackID, sequenceNumber uint32, baseDecodeTime uint64, samples []fragmentSample) []byte {
	var moof bytes.Buffer
	writeBox(&moof, boxMFHD, buildMFHD(sequenceNumber))

	var traf bytes.Buffer
	writeBox(&traf, boxTFHD, buildTFHD(trackID))
	writeBox(&traf, boxTFDT, buildTFDT(baseDecodeTime))

	// data_offset in trun is relative to the start of moof; it is
	// patched below once moof's total size (and therefore mdat's
	// sample-data start) is known.
	trunPayload, dataOffsetFieldPos := buildTRUN(samples)
	traf.Write(trunBoxWithHeader(trunPayload))
	_ = dataOffsetFieldPos

	writeBox(&moof, boxTRAF, traf.Bytes())

	moofBox := new(bytes.Buffer)
	writeBox(moofBox, boxMOOF, moof.Bytes())

	var mdatPayload bytes.Buffer
	for _, s := range samples {
		mdatPayload.Write(s.Data)
	}

	dataOffset := int32(moofBox.Len() + 8) // moof box + mdat box header
	patchTRUNDataOffset(moofBox.Bytes(), dataOffset)

	var out bytes.Buffer
	out.Write(moofBox.Bytes())
	writeBox(&out, boxMDAT, mdatPayload.Bytes())

	return out.Bytes()
}

func buildMFHD(sequenceNumber uint32) []byte {
	var b bytes.Buffer
	b.Write(fullBoxHeader(0, 0))
	b.Write(u32(sequenceNumber))
	return b.Bytes()
}

// tfhd flags: default-base-is-moof (0x020000).
const tfhdFlagsDefaultBaseIsMoof = 0x020000

func buildTFHD(trackID uint32) []byte {
	var b bytes.Buffer
	b.Write(fullBoxHeader(0, tfhdFlagsDefaultBaseIsMoof))
	b.Write(u32(trackID))
	return b.Bytes()
}

func buildTFDT(baseDecodeTime uint64) []byte {
	var b bytes.Buffer
	b.Write(fullBoxHeader(1, 0)) // version 1: 64-bit baseMediaDecodeTime
	b.Write(u64(baseDecodeTime))
	return b.Bytes()
}

// trun flags: data-offset-present | sample-duration-present |
// sample-size-present | sample-flags-present.
const trunFlags = 0x000001 | 0x000100 | 0x000200 | 0x000400

func buildTRUN(samples []fragmentSample) (payload []byte, dataOffsetPos int) {
	var b bytes.Buffer
	b.Write(fullBoxHeader(0, trunFlags))
	b.Write(u32(uint32(len(samples))))
	dataOffsetPos = b.Len()
	b.Write(i32(0)) // data_offset, patched by patchTRUNDataOffset

	for i, s := range samples {
		b.Write(u32(s.Duration))
		b.Write(u32(s.Size))
		flags := uint32(sampleFlagsNonSync)
		if s.Keyframe || i == 0 {
			flags = 0
		}
		b.Write(u32(flags))
	}

	return b.Bytes(), dataOffsetPos
}

func trunBoxWithHeader(payload []byte) []byte {
	var b bytes.Buffer
	writeBox(&b, boxTRUN, payload)
	return b.Bytes()
}

// patchTRUNDataOffset overwrites the data_offset field inside an
// already-serialized moof box in place. It scans for the trun box the
// same way relay.extractSequenceNumber scans for mfhd, since neither
// direction tracks byte offsets across nested box boundaries by
// reference.
func patchTRUNDataOffset(moofBox []byte, dataOffset int32) {
	idx := indexOfBoxType(moofBox, boxTRUN)
	if idx < 0 {
		return
	}
	// trun payload begins 8 bytes after the box start (size+type);
	// version+flags(4) + sample_count(4) precede data_offset.
	pos := idx + 8 + 4 + 4
	if pos+4 > len(moofBox) {
		return
	}
	copy(moofBox[pos:pos+4], i32(dataOffset))
}

// indexOfBoxType returns the byte offset of the first box of the given
// type found anywhere within data, searching recursively through
// container boxes moof/traf the way relay's peekBoxHeader walks moov.
func indexOfBoxType(data []byte, boxType string) int {
	for offset := 0; offset+8 <= len(data); {
		size := be32(data[offset : offset+4])
		t := string(data[offset+4 : offset+8])
		if size < 8 || offset+int(size) > len(data) {
			return -1
		}
		if t == boxType {
			return offset
		}
		if t == boxMOOF || t == boxTRAF {
			if found := indexOfBoxType(data[offset+8:offset+int(size)], boxType); found >= 0 {
				return offset + 8 + found
			}
		}
		offset += int(size)
	}
	return -1
}

func be32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
