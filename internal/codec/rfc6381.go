package codec

import (
	"fmt"

	"github.com/bluenviron/mediacommon/v2/pkg/codecs/h264"
	"github.com/bluenviron/mediacommon/v2/pkg/codecs/h265"
)

// Stringer builds RFC 6381 codec-parameter strings from a codec name
// and its decoder-configuration bytes. It implements
// dasher.CodecStringer, the narrow interface the segmentation engine
// uses to fill Representation.CodecString without importing a
// concrete media-parsing package itself (spec §1/§6).
type Stringer struct{}

// NewStringer creates a Stringer. It holds no state; codec parsing is
// pure per call.
func NewStringer() *Stringer { return &Stringer{} }

// CodecString implements dasher.CodecStringer. decoderConfig carries
// the codec's raw parameter-set bytes: one SPS NAL unit for H.264/H.265,
// or the AudioSpecificConfig for AAC. Codecs that need no
// parameterization (AC-3, E-AC-3, MP3, Opus) return a fixed string.
func (s *Stringer) CodecString(codecID string, decoderConfig []byte) (string, error) {
	c, ok := ParseVideo(codecID)
	if ok {
		return videoCodecString(c, decoderConfig)
	}
	a, ok := ParseAudio(codecID)
	if ok {
		return audioCodecString(a, decoderConfig)
	}
	return "", fmt.Errorf("rfc6381: unknown codec id %q", codecID)
}

func videoCodecString(v Video, sps []byte) (string, error) {
	switch v {
	case VideoH264:
		return avc1String(sps)
	case VideoH265:
		return hvc1String(sps)
	default:
		// Other video codecs (VP8/VP9/AV1/legacy) carry no
		// profile/level refinement we parse; the bare codec name is
		// the best available RFC 6381 string without a dedicated
		// bitstream parser in mediacommon for them.
		return v.String(), nil
	}
}

func audioCodecString(a Audio, config []byte) (string, error) {
	switch a {
	case AudioAAC:
		return aacMP4AString(config)
	case AudioAC3:
		return "ac-3", nil
	case AudioEAC3:
		return "ec-3", nil
	default:
		return a.String(), nil
	}
}

// avc1String renders "avc1.PPCCLL" per RFC 6381 §3.3: two hex digits
// each of profile_idc, the constraint-flags byte, and level_idc.
func avc1String(sps []byte) (string, error) {
	var parsed h264.SPS
	if err := parsed.Unmarshal(sps); err != nil {
		return "", fmt.Errorf("rfc6381: parse H.264 SPS: %w", err)
	}

	var constraints uint8
	if parsed.ConstraintSet0Flag {
		constraints |= 1 << 7
	}
	if parsed.ConstraintSet1Flag {
		constraints |= 1 << 6
	}
	if parsed.ConstraintSet2Flag {
		constraints |= 1 << 5
	}
	if parsed.ConstraintSet3Flag {
		constraints |= 1 << 4
	}
	if parsed.ConstraintSet4Flag {
		constraints |= 1 << 3
	}
	if parsed.ConstraintSet5Flag {
		constraints |= 1 << 2
	}

	return fmt.Sprintf("avc1.%02x%02x%02x", parsed.ProfileIdc, constraints, parsed.LevelIdc), nil
}

// hvc1String renders an RFC 6381 HEVC codec string: general profile
// space/idc, compatibility flags, tier/level, and constraint
// indicator bytes, per ISO/IEC 14496-15 Annex E.
func hvc1String(sps []byte) (string, error) {
	var parsed h265.SPS
	if err := parsed.Unmarshal(sps); err != nil {
		return "", fmt.Errorf("rfc6381: parse H.265 SPS: %w", err)
	}

	ptl := parsed.ProfileTierLevel

	var spaceLetter string
	switch ptl.GeneralProfileSpace {
	case 1:
		spaceLetter = "A"
	case 2:
		spaceLetter = "B"
	case 3:
		spaceLetter = "C"
	default:
		spaceLetter = ""
	}

	var compat uint32
	for i, set := range ptl.GeneralProfileCompatibilityFlag {
		if set {
			compat |= 1 << uint(i)
		}
	}

	tierLetter := "L"
	if ptl.GeneralTierFlag {
		tierLetter = "H"
	}

	return fmt.Sprintf("hvc1.%s%d.%x.%s%d.%02x",
		spaceLetter, ptl.GeneralProfileIdc,
		reverseBits32(compat),
		tierLetter, ptl.GeneralLevelIdc,
		ptl.GeneralConstraintIndicatorFlags>>40,
	), nil
}

// reverseBits32 mirrors the bit order RFC 6381 expects for the
// compatibility-flags field (MSB of byte 0 is flag 0).
func reverseBits32(v uint32) uint32 {
	var r uint32
	for i := 0; i < 32; i++ {
		r = (r << 1) | (v & 1)
		v >>= 1
	}
	return r
}

// aacMP4AString renders "mp4a.40.<objectTypeIndication>" from an
// AudioSpecificConfig's 5-bit object type (RFC 6381 §3.1, MPEG-4 Audio
// Object Types).
func aacMP4AString(asc []byte) (string, error) {
	if len(asc) < 2 {
		return "mp4a.40.2", nil // AAC-LC default when no config is available
	}
	objType := asc[0] >> 3
	return fmt.Sprintf("mp4a.40.%d", objType), nil
}
