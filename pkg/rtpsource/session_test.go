package rtpsource

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/pion/rtp/v2"
	"github.com/stretchr/testify/require"
)

// queueReader hands back one queued packet per Read call, then blocks
// until closed, so it behaves like a net.PacketConn that has run out
// of datagrams rather than hit EOF.
type queueReader struct {
	packets chan []byte
	closed  chan struct{}
}

func newQueueReader(packets ...[]byte) *queueReader {
	ch := make(chan []byte, len(packets)+1)
	for _, p := range packets {
		ch <- p
	}
	return &queueReader{packets: ch, closed: make(chan struct{})}
}

func (r *queueReader) Read(p []byte) (int, error) {
	select {
	case pkt := <-r.packets:
		return copy(p, pkt), nil
	case <-r.closed:
		return 0, io.EOF
	}
}

func (r *queueReader) close() {
	close(r.closed)
}

type fakeSink struct {
	videoSamples [][]byte
	videoPTS     []int64
	keyframes    []bool
	audioSamples [][]byte
	audioPTS     []int64
	sps, pps     []byte
}

func (f *fakeSink) WriteVideo(data []byte, pts int64, isKeyframe bool) error {
	f.videoSamples = append(f.videoSamples, append([]byte(nil), data...))
	f.videoPTS = append(f.videoPTS, pts)
	f.keyframes = append(f.keyframes, isKeyframe)
	return nil
}

func (f *fakeSink) WriteAudio(data []byte, pts int64) error {
	f.audioSamples = append(f.audioSamples, append([]byte(nil), data...))
	f.audioPTS = append(f.audioPTS, pts)
	return nil
}

func (f *fakeSink) SetVideoCodecConfig(sps, pps []byte) error {
	f.sps = append([]byte(nil), sps...)
	f.pps = append([]byte(nil), pps...)
	return nil
}

func rtpPacket(t *testing.T, seq uint16, ts uint32, marker bool, payload []byte) []byte {
	t.Helper()
	pkt := rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    96,
			SequenceNumber: seq,
			Timestamp:      ts,
			SSRC:           1234,
			Marker:         marker,
		},
		Payload: payload,
	}
	buf, err := pkt.Marshal()
	require.NoError(t, err)
	return buf
}

func stapAPayload(nalus ...[]byte) []byte {
	payload := []byte{byte(naluTypeSTAPA)}
	for _, n := range nalus {
		var sizeField [2]byte
		binary.BigEndian.PutUint16(sizeField[:], uint16(len(n)))
		payload = append(payload, sizeField[:]...)
		payload = append(payload, n...)
	}
	return payload
}

// TestSessionIngestsSTAPAThenSingleNALAndAAC is a reduced scenario G
// (no FU-A packets, and a fake sink in place of a Recorder): a STAP-A
// carrying SPS+PPS, then a single-NAL IDR, then one AAC AU drives the
// sink with AVCC-prefixed video samples and the SPS/PPS pair.
func TestSessionIngestsSTAPAThenSingleNALAndAAC(t *testing.T) {
	sps := append([]byte{byte(naluTypeSPS)}, []byte{0x42, 0x00, 0x1e}...)
	pps := append([]byte{byte(naluTypePPS)}, []byte{0xce, 0x3c, 0x80}...)
	idr := append([]byte{byte(naluTypeIDR)}, make([]byte, 10)...)

	videoPackets := [][]byte{
		rtpPacket(t, 0, 0, true, stapAPayload(sps, pps)),
		rtpPacket(t, 1, 9000, true, idr),
	}

	auHeader := []byte{0x00, 0x10, 0x00, 0x20} // AU-headers-length=16, dataLen=4<<3
	au := []byte{0xAA, 0xBB, 0xCC, 0xDD}
	audioPackets := [][]byte{
		rtpPacket(t, 0, 0, true, append(auHeader, au...)),
	}

	video := newQueueReader(videoPackets...)
	audio := newQueueReader(audioPackets...)
	defer video.close()
	defer audio.close()

	sink := &fakeSink{}
	sess := NewSession(sink, video, audio, 30000, 48000, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err := sess.Run(ctx, 48000)
	require.True(t, err == nil || errors.Is(err, io.EOF))

	require.Equal(t, sps, sink.sps)
	require.Equal(t, pps, sink.pps)
	require.Len(t, sink.videoSamples, 1)
	require.True(t, sink.keyframes[0])

	var lengthField [4]byte
	copy(lengthField[:], sink.videoSamples[0][:4])
	require.Equal(t, uint32(len(idr)), binary.BigEndian.Uint32(lengthField[:]))

	require.Len(t, sink.audioSamples, 1)
	require.Equal(t, au, sink.audioSamples[0])
}
