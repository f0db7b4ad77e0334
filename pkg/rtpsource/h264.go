package rtpsource

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/pion/rtp/v2"
)

// naluType is the low 5 bits of a H.264 NALU's first byte, per RFC
// 6184 (RTP payload types) and ITU-T H.264 (bitstream types).
type naluType uint8

const (
	naluTypeNonIDR naluType = 1
	naluTypeIDR    naluType = 5
	naluTypeSPS    naluType = 7
	naluTypePPS    naluType = 8
	naluTypeSTAPA  naluType = 24
	naluTypeSTAPB  naluType = 25
	naluTypeMTAP16 naluType = 26
	naluTypeMTAP24 naluType = 27
	naluTypeFUA    naluType = 28
	naluTypeFUB    naluType = 29
)

// PacketConnReader adapts a net.PacketConn into an io.Reader of
// incoming datagrams, discarding the sender address.
type PacketConnReader struct {
	net.PacketConn
}

// Read implements io.Reader.
func (r PacketConnReader) Read(p []byte) (int, error) {
	n, _, err := r.PacketConn.ReadFrom(p)
	return n, err
}

// h264Decoder depacketizes RTP/H.264 (RFC 6184) into NALUs.
type h264Decoder struct {
	timeDec              *timeDecoder
	isDecodingFragmented bool
	fragmentedBuffer     []byte
}

func newH264Decoder() *h264Decoder {
	return &h264Decoder{timeDec: newTimeDecoder(90000)}
}

// Errors returned while depacketizing RTP/H.264.
var (
	ErrH264MorePacketsNeeded     = errors.New("rtpsource: need more packets")
	ErrH264ShortPayload          = errors.New("rtpsource: payload is too short")
	ErrH264STAPinvalid           = errors.New("rtpsource: invalid STAP-A packet")
	ErrH264STAPnaluMissing       = errors.New("rtpsource: STAP-A packet contains no NALU")
	ErrH264FUinvalidSize         = errors.New("rtpsource: invalid FU-A packet size")
	ErrH264FUinvalidNonStarting  = errors.New("rtpsource: FU-A continuation without a start")
	ErrH264FUinvalidStarting     = errors.New("rtpsource: two FU-A start packets in a row")
	ErrH264TypeUnsupported       = errors.New("rtpsource: unsupported H.264 RTP packet type")
)

func (d *h264Decoder) decode(pkt *rtp.Packet) ([][]byte, time.Duration, error) {
	if d.isDecodingFragmented {
		return d.decodeFragmented(pkt)
	}
	return d.decodeUnfragmented(pkt)
}

func (d *h264Decoder) decodeFragmented(pkt *rtp.Packet) ([][]byte, time.Duration, error) {
	if len(pkt.Payload) < 2 {
		d.isDecodingFragmented = false
		return nil, 0, ErrH264FUinvalidSize
	}

	typ := naluType(pkt.Payload[0] & 0x1F)
	if typ != naluTypeFUA {
		d.isDecodingFragmented = false
		return nil, 0, fmt.Errorf("%w: expected FU-A, got %d", ErrH264TypeUnsupported, typ)
	}

	start := pkt.Payload[1] >> 7
	end := (pkt.Payload[1] >> 6) & 0x01
	if start == 1 {
		d.isDecodingFragmented = false
		return nil, 0, ErrH264FUinvalidStarting
	}

	d.fragmentedBuffer = append(d.fragmentedBuffer, pkt.Payload[2:]...)
	if end != 1 {
		return nil, 0, ErrH264MorePacketsNeeded
	}

	d.isDecodingFragmented = false
	return [][]byte{d.fragmentedBuffer}, d.timeDec.decode(pkt.Timestamp), nil
}

func (d *h264Decoder) decodeUnfragmented(pkt *rtp.Packet) ([][]byte, time.Duration, error) {
	if len(pkt.Payload) < 1 {
		return nil, 0, ErrH264ShortPayload
	}

	typ := naluType(pkt.Payload[0] & 0x1F)

	switch typ {
	case naluTypeSTAPA:
		return d.decodeSTAPA(pkt)

	case naluTypeFUA:
		return d.decodeFUAStart(pkt)

	case naluTypeSTAPB, naluTypeMTAP16, naluTypeMTAP24, naluTypeFUB:
		return nil, 0, fmt.Errorf("%w (%d)", ErrH264TypeUnsupported, typ)
	}

	return [][]byte{pkt.Payload}, d.timeDec.decode(pkt.Timestamp), nil
}

func (d *h264Decoder) decodeSTAPA(pkt *rtp.Packet) ([][]byte, time.Duration, error) {
	var nalus [][]byte
	payload := pkt.Payload[1:]

	for len(payload) > 0 {
		if len(payload) < 2 {
			return nil, 0, ErrH264STAPinvalid
		}
		size := binary.BigEndian.Uint16(payload)
		payload = payload[2:]
		if size == 0 {
			break
		}
		if int(size) > len(payload) {
			return nil, 0, ErrH264STAPinvalid
		}
		nalus = append(nalus, payload[:size])
		payload = payload[size:]
	}

	if len(nalus) == 0 {
		return nil, 0, ErrH264STAPnaluMissing
	}

	return nalus, d.timeDec.decode(pkt.Timestamp), nil
}

func (d *h264Decoder) decodeFUAStart(pkt *rtp.Packet) ([][]byte, time.Duration, error) {
	if len(pkt.Payload) < 2 {
		return nil, 0, ErrH264FUinvalidSize
	}

	start := pkt.Payload[1] >> 7
	if start != 1 {
		return nil, 0, ErrH264FUinvalidNonStarting
	}

	nri := (pkt.Payload[0] >> 5) & 0x03
	typ := pkt.Payload[1] & 0x1F
	d.fragmentedBuffer = append([]byte{(nri << 5) | typ}, pkt.Payload[2:]...)
	d.isDecodingFragmented = true
	return nil, 0, ErrH264MorePacketsNeeded
}
