// Package h264sps is a diagnostic decoder for H.264 sequence parameter
// sets: it parses just enough of a SPS NALU to report the coded
// picture width and height, for cross-checking against configured
// dimensions. It never rewrites or re-encodes the SPS bytes.
package h264sps

import (
	"bytes"
	"errors"

	"github.com/icza/bitio"
)

// NALUType is the low 5 bits of a NALU's first byte.
type NALUType uint8

// NALU types relevant to parameter set parsing.
const (
	NALUTypeSPS NALUType = 7
	NALUTypePPS NALUType = 8
)

// Errors returned by Parse.
var (
	ErrBufferTooShort = errors.New("h264sps: buffer too short")
	ErrWrongType      = errors.New("h264sps: not a SPS NALU")
)

// FrameCropping is the frame_cropping part of a SPS, present only when
// frame_cropping_flag is set.
type FrameCropping struct {
	LeftOffset   uint32
	RightOffset  uint32
	TopOffset    uint32
	BottomOffset uint32
}

// SPS holds the fields needed to compute coded picture dimensions,
// plus the two profile/level bytes callers typically also want.
type SPS struct {
	ProfileIdc uint8
	LevelIdc   uint8

	PicWidthInMbsMinus1  uint32
	PicHeightInMbsMinus1 uint32
	FrameMbsOnlyFlag     bool

	FrameCropping *FrameCropping
}

// Width returns the coded picture width in pixels.
func (s SPS) Width() int {
	w := int((s.PicWidthInMbsMinus1 + 1) * 16)
	if s.FrameCropping != nil {
		w -= int((s.FrameCropping.LeftOffset + s.FrameCropping.RightOffset) * 2)
	}
	return w
}

// Height returns the coded picture height in pixels.
func (s SPS) Height() int {
	f := uint32(0)
	if s.FrameMbsOnlyFlag {
		f = 1
	}
	h := int((2 - f) * (s.PicHeightInMbsMinus1 + 1) * 16)
	if s.FrameCropping != nil {
		h -= int((s.FrameCropping.TopOffset + s.FrameCropping.BottomOffset) * 2)
	}
	return h
}

// removeEmulationPrevention strips emulation prevention three bytes
// (0x00 0x00 0x03 -> 0x00 0x00) from a NALU payload.
func removeEmulationPrevention(buf []byte) []byte {
	out := make([]byte, 0, len(buf))
	zeros := 0
	for _, b := range buf {
		if zeros >= 2 && b == 0x03 {
			zeros = 0
			continue
		}
		if b == 0x00 {
			zeros++
		} else {
			zeros = 0
		}
		out = append(out, b)
	}
	return out
}

// Parse decodes a SPS NALU (with its 1-byte header still attached) far
// enough to fill in width/height; it stops right after frame_cropping
// and never touches VUI/HRD parameters, since nothing downstream needs
// them.
func Parse(buf []byte) (SPS, error) {
	var s SPS

	buf = removeEmulationPrevention(buf)
	if len(buf) < 4 {
		return s, ErrBufferTooShort
	}

	if NALUType(buf[0]&0x1F) != NALUTypeSPS {
		return s, ErrWrongType
	}

	s.ProfileIdc = buf[1]
	s.LevelIdc = buf[3]

	br := bitio.NewReader(bytes.NewReader(buf[4:]))

	if _, err := readGolombUnsigned(br); err != nil { // seq_parameter_set_id
		return s, err
	}

	if err := skipProfileIdcFields(br, s.ProfileIdc); err != nil {
		return s, err
	}

	if _, err := readGolombUnsigned(br); err != nil { // log2_max_frame_num_minus4
		return s, err
	}

	picOrderCntType, err := readGolombUnsigned(br)
	if err != nil {
		return s, err
	}
	if err := skipPicOrderCntFields(br, picOrderCntType); err != nil {
		return s, err
	}

	if _, err := readGolombUnsigned(br); err != nil { // max_num_ref_frames
		return s, err
	}
	if _, err := readFlag(br); err != nil { // gaps_in_frame_num_value_allowed_flag
		return s, err
	}

	s.PicWidthInMbsMinus1, err = readGolombUnsigned(br)
	if err != nil {
		return s, err
	}
	s.PicHeightInMbsMinus1, err = readGolombUnsigned(br)
	if err != nil {
		return s, err
	}
	s.FrameMbsOnlyFlag, err = readFlag(br)
	if err != nil {
		return s, err
	}
	if !s.FrameMbsOnlyFlag {
		if _, err := readFlag(br); err != nil { // mb_adaptive_frame_field_flag
			return s, err
		}
	}
	if _, err := readFlag(br); err != nil { // direct_8x8_inference_flag
		return s, err
	}

	frameCroppingFlag, err := readFlag(br)
	if err != nil {
		return s, err
	}
	if frameCroppingFlag {
		fc := &FrameCropping{}
		if fc.LeftOffset, err = readGolombUnsigned(br); err != nil {
			return s, err
		}
		if fc.RightOffset, err = readGolombUnsigned(br); err != nil {
			return s, err
		}
		if fc.TopOffset, err = readGolombUnsigned(br); err != nil {
			return s, err
		}
		if fc.BottomOffset, err = readGolombUnsigned(br); err != nil {
			return s, err
		}
		s.FrameCropping = fc
	}

	return s, nil
}

func skipProfileIdcFields(br *bitio.Reader, profileIdc uint8) error {
	switch profileIdc {
	case 100, 110, 122, 244, 44, 83, 86, 118, 128, 138, 139, 134, 135:
	default:
		return nil
	}

	chromaFormatIdc, err := readGolombUnsigned(br)
	if err != nil {
		return err
	}
	if chromaFormatIdc == 3 {
		if _, err := readFlag(br); err != nil { // separate_colour_plane_flag
			return err
		}
	}
	if _, err := readGolombUnsigned(br); err != nil { // bit_depth_luma_minus8
		return err
	}
	if _, err := readGolombUnsigned(br); err != nil { // bit_depth_chroma_minus8
		return err
	}
	if _, err := readFlag(br); err != nil { // qpprime_y_zero_transform_bypass_flag
		return err
	}

	seqScalingMatrixPresentFlag, err := readFlag(br)
	if err != nil {
		return err
	}
	if seqScalingMatrixPresentFlag {
		lim := 8
		if chromaFormatIdc == 3 {
			lim = 12
		}
		for i := 0; i < lim; i++ {
			present, err := readFlag(br)
			if err != nil {
				return err
			}
			if !present {
				continue
			}
			size := 16
			if i >= 6 {
				size = 64
			}
			if err := skipScalingList(br, size); err != nil {
				return err
			}
		}
	}
	return nil
}

func skipPicOrderCntFields(br *bitio.Reader, picOrderCntType uint32) error {
	switch picOrderCntType {
	case 0:
		if _, err := readGolombUnsigned(br); err != nil { // log2_max_pic_order_cnt_lsb_minus4
			return err
		}
	case 1:
		if _, err := readFlag(br); err != nil { // delta_pic_order_always_zero_flag
			return err
		}
		if _, err := readGolombSigned(br); err != nil { // offset_for_non_ref_pic
			return err
		}
		if _, err := readGolombSigned(br); err != nil { // offset_for_top_to_bottom_field
			return err
		}
		n, err := readGolombUnsigned(br)
		if err != nil {
			return err
		}
		for i := uint32(0); i < n; i++ {
			if _, err := readGolombSigned(br); err != nil { // offset_for_ref_frame[i]
				return err
			}
		}
	}
	return nil
}

func skipScalingList(br *bitio.Reader, size int) error {
	lastScale, nextScale := int32(8), int32(8)
	for j := 0; j < size; j++ {
		if nextScale == 0 {
			continue
		}
		deltaScale, err := readGolombSigned(br)
		if err != nil {
			return err
		}
		nextScale = (lastScale + deltaScale + 256) % 256
		if nextScale != 0 {
			lastScale = nextScale
		}
	}
	return nil
}

func readGolombUnsigned(br *bitio.Reader) (uint32, error) {
	leadingZeroBits := uint32(0)
	for {
		b, err := br.ReadBits(1)
		if err != nil {
			return 0, err
		}
		if b != 0 {
			break
		}
		leadingZeroBits++
	}

	codeNum := uint32(0)
	for n := leadingZeroBits; n > 0; n-- {
		b, err := br.ReadBits(1)
		if err != nil {
			return 0, err
		}
		codeNum |= uint32(b) << (n - 1)
	}

	return (1 << leadingZeroBits) - 1 + codeNum, nil
}

func readGolombSigned(br *bitio.Reader) (int32, error) {
	v, err := readGolombUnsigned(br)
	if err != nil {
		return 0, err
	}
	vi := int32(v)
	if (vi & 0x01) != 0 {
		return (vi + 1) / 2, nil
	}
	return -vi / 2, nil
}

func readFlag(br *bitio.Reader) (bool, error) {
	tmp, err := br.ReadBits(1)
	if err != nil {
		return false, err
	}
	return tmp == 1, nil
}
