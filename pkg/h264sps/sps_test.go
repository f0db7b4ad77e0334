package h264sps

import (
	"bytes"
	"testing"

	"github.com/icza/bitio"
	"github.com/stretchr/testify/require"
)

// buildSPS hand-encodes a minimal baseline-profile SPS (profile_idc 66,
// no chroma_format_idc fields, pic_order_cnt_type 0, no VUI) with the
// given width/height in macroblocks, so the expected pixel dimensions
// are known by construction rather than borrowed from an opaque blob.
func buildSPS(t *testing.T, widthMbsMinus1, heightMbsMinus1 uint32, frameMbsOnly bool) []byte {
	t.Helper()

	var buf bytes.Buffer
	bw := bitio.NewWriter(&buf)

	writeGolombUnsigned(t, bw, 0) // seq_parameter_set_id
	// profile_idc == 66: no chroma_format_idc/bit_depth/scaling fields.
	writeGolombUnsigned(t, bw, 4) // log2_max_frame_num_minus4
	writeGolombUnsigned(t, bw, 0) // pic_order_cnt_type
	writeGolombUnsigned(t, bw, 4) // log2_max_pic_order_cnt_lsb_minus4
	writeGolombUnsigned(t, bw, 1) // max_num_ref_frames
	require.NoError(t, bw.WriteBits(0, 1)) // gaps_in_frame_num_value_allowed_flag
	writeGolombUnsigned(t, bw, widthMbsMinus1)
	writeGolombUnsigned(t, bw, heightMbsMinus1)
	if frameMbsOnly {
		require.NoError(t, bw.WriteBits(1, 1)) // frame_mbs_only_flag
	} else {
		require.NoError(t, bw.WriteBits(0, 1))
		require.NoError(t, bw.WriteBits(0, 1)) // mb_adaptive_frame_field_flag
	}
	require.NoError(t, bw.WriteBits(0, 1)) // direct_8x8_inference_flag
	require.NoError(t, bw.WriteBits(0, 1)) // frame_cropping_flag
	require.NoError(t, bw.WriteBits(0, 1)) // vui_parameters_present_flag
	require.NoError(t, bw.Close())

	rbsp := buf.Bytes()
	header := []byte{0x67, 66, 0x00, 30} // forbidden=0, nal_ref_idc=3, type=7; profile=66; level=30
	return append(header, rbsp...)
}

func writeGolombUnsigned(t *testing.T, bw *bitio.Writer, v uint32) {
	t.Helper()
	codeNum := v + 1
	nBits := 0
	for tmp := codeNum; tmp > 1; tmp >>= 1 {
		nBits++
	}
	for i := 0; i < nBits; i++ {
		require.NoError(t, bw.WriteBits(0, 1))
	}
	require.NoError(t, bw.WriteBits(uint64(codeNum), uint8(nBits+1)))
}

func TestParseComputesWidthAndHeight(t *testing.T) {
	sps := buildSPS(t, 39, 29, true) // (39+1)*16=640, (29+1)*16=480
	s, err := Parse(sps)
	require.NoError(t, err)
	require.Equal(t, 640, s.Width())
	require.Equal(t, 480, s.Height())
	require.Equal(t, uint8(66), s.ProfileIdc)
	require.Equal(t, uint8(30), s.LevelIdc)
}

func TestParseInterlacedDoublesHeight(t *testing.T) {
	sps := buildSPS(t, 39, 29, false) // field pictures: height factor (2-0)=2
	s, err := Parse(sps)
	require.NoError(t, err)
	require.Equal(t, 640, s.Width())
	require.Equal(t, 960, s.Height())
}

func TestParseRejectsNonSPS(t *testing.T) {
	pps := []byte{0x68, 0xce, 0x3c, 0x80}
	_, err := Parse(pps)
	require.ErrorIs(t, err, ErrWrongType)
}

func TestParseRejectsShortBuffer(t *testing.T) {
	_, err := Parse([]byte{0x67, 0x00})
	require.ErrorIs(t, err, ErrBufferTooShort)
}

func TestRemoveEmulationPrevention(t *testing.T) {
	in := []byte{0x00, 0x00, 0x03, 0x01, 0x00, 0x00, 0x03, 0x02}
	out := removeEmulationPrevention(in)
	require.Equal(t, []byte{0x00, 0x00, 0x01, 0x00, 0x00, 0x02}, out)
}
