package h264decoder

import (
	"bytes"
	"fmt"

	"github.com/Eyevinn/mp4ff/avc"

	"github.com/user/vidsurface/pkg/ports"
)

var startCode = []byte{0, 0, 0, 1}

// HasStartCode reports whether data begins with a 3- or 4-byte Annex-B
// start code.
func HasStartCode(data []byte) bool {
	return bytes.HasPrefix(data, startCode) || bytes.HasPrefix(data, startCode[1:])
}

// ParseAccessUnit splits an Annex-B payload into NAL units (without start
// codes) and checks that every unit is well formed.
func ParseAccessUnit(payload []byte) ([][]byte, error) {
	if !HasStartCode(payload) {
		return nil, fmt.Errorf("%w: no Annex-B start code", ports.ErrMalformedPayload)
	}
	var nalus [][]byte
	for _, n := range avc.ExtractNalusFromByteStream(payload) {
		if len(n) == 0 {
			continue
		}
		if n[0]&0x80 != 0 {
			return nil, fmt.Errorf("%w: forbidden_zero_bit set in %s", ports.ErrMalformedPayload, avc.GetNaluType(n[0]))
		}
		nalus = append(nalus, n)
	}
	if len(nalus) == 0 {
		return nil, fmt.Errorf("%w: no NAL units", ports.ErrMalformedPayload)
	}
	return nalus, nil
}

// IsVCL reports whether t carries coded picture data.
func IsVCL(t avc.NaluType) bool {
	return t >= avc.NALU_NON_IDR && t <= avc.NALU_IDR
}

// SplitAccessUnits cuts an Annex-B elementary stream into access units,
// one coded picture each. Parameter sets, SEI and access unit delimiters
// are kept with the picture that follows them.
func SplitAccessUnits(stream []byte) [][]byte {
	var (
		out [][]byte
		cur []byte
		vcl bool
	)
	for _, n := range avc.ExtractNalusFromByteStream(stream) {
		if len(n) == 0 {
			continue
		}
		t := avc.GetNaluType(n[0])
		if vcl && startsAccessUnit(t, n) {
			out = append(out, cur)
			cur, vcl = nil, false
		}
		cur = AppendNALU(cur, n)
		if IsVCL(t) {
			vcl = true
		}
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}

// startsAccessUnit reports whether n opens a new access unit once the
// current one already holds a picture.
func startsAccessUnit(t avc.NaluType, n []byte) bool {
	switch {
	case t == avc.NALU_AUD, t == avc.NALU_SPS, t == avc.NALU_PPS, t == avc.NALU_SEI:
		return true
	case IsVCL(t):
		// first_mb_in_slice is ue(v); a leading 1 bit means 0, a new picture.
		return len(n) > 1 && n[1]&0x80 != 0
	}
	return false
}

// AppendNALU appends n to dst with a 4-byte start code.
func AppendNALU(dst, n []byte) []byte {
	dst = append(dst, startCode...)
	return append(dst, n...)
}
