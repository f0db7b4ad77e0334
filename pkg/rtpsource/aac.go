package rtpsource

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/pion/rtp/v2"
)

// aacDecoder depacketizes RTP/AAC (RFC 3640, MPEG-4 generic) into
// access units.
type aacDecoder struct {
	timeDec              *timeDecoder
	isDecodingFragmented bool
	fragmentedBuf        []byte
}

func newAACDecoder(sampleRate int) *aacDecoder {
	return &aacDecoder{timeDec: newTimeDecoder(sampleRate)}
}

// Errors returned while depacketizing RTP/AAC.
var (
	ErrAACMorePacketsNeeded = errors.New("rtpsource: need more packets")
	ErrAACShortPayload      = errors.New("rtpsource: payload is too short")
	ErrAACHeaderLenInvalid  = errors.New("rtpsource: invalid AU-headers-length")
	ErrAACIndexNotZero      = errors.New("rtpsource: AU-index field is not zero")
	ErrAACFragMultipleAU    = errors.New("rtpsource: a fragmented packet can only contain one AU")
)

func (d *aacDecoder) decode(pkt *rtp.Packet) ([][]byte, time.Duration, error) {
	if len(pkt.Payload) < 2 {
		d.isDecodingFragmented = false
		return nil, 0, ErrAACShortPayload
	}

	auHeadersLen := binary.BigEndian.Uint16(pkt.Payload)
	if auHeadersLen%16 != 0 {
		d.isDecodingFragmented = false
		return nil, 0, fmt.Errorf("%w (%d)", ErrAACHeaderLenInvalid, auHeadersLen)
	}
	payload := pkt.Payload[2:]

	if d.isDecodingFragmented {
		return d.decodeFragmented(pkt, auHeadersLen, payload)
	}
	return d.decodeUnfragmented(pkt, auHeadersLen, payload)
}

func (d *aacDecoder) decodeFragmented(
	pkt *rtp.Packet, auHeadersLen uint16, payload []byte,
) ([][]byte, time.Duration, error) {
	if auHeadersLen != 16 {
		return nil, 0, ErrAACFragMultipleAU
	}

	header := binary.BigEndian.Uint16(payload)
	dataLen := header >> 3
	if header&0x03 != 0 {
		return nil, 0, ErrAACIndexNotZero
	}
	payload = payload[2:]
	if len(payload) < int(dataLen) {
		return nil, 0, ErrAACShortPayload
	}

	d.fragmentedBuf = append(d.fragmentedBuf, payload...)
	if !pkt.Marker {
		return nil, 0, ErrAACMorePacketsNeeded
	}

	d.isDecodingFragmented = false
	return [][]byte{d.fragmentedBuf}, d.timeDec.decode(pkt.Timestamp), nil
}

func (d *aacDecoder) decodeUnfragmented(
	pkt *rtp.Packet, auHeadersLen uint16, payload []byte,
) ([][]byte, time.Duration, error) {
	if !pkt.Marker {
		if auHeadersLen != 16 {
			return nil, 0, ErrAACFragMultipleAU
		}
		header := binary.BigEndian.Uint16(payload)
		dataLen := header >> 3
		if header&0x03 != 0 {
			return nil, 0, ErrAACIndexNotZero
		}
		payload = payload[2:]
		if len(payload) < int(dataLen) {
			return nil, 0, ErrAACShortPayload
		}
		d.fragmentedBuf = append([]byte(nil), payload...)
		d.isDecodingFragmented = true
		return nil, 0, ErrAACMorePacketsNeeded
	}

	headerCount := auHeadersLen / 16
	dataLens := make([]uint16, 0, headerCount)
	for i := 0; i < int(headerCount); i++ {
		if len(payload[i*2:]) < 2 {
			return nil, 0, ErrAACShortPayload
		}
		header := binary.BigEndian.Uint16(payload[i*2:])
		if header&0x03 != 0 {
			return nil, 0, ErrAACIndexNotZero
		}
		dataLens = append(dataLens, header>>3)
	}
	payload = payload[headerCount*2:]

	aus := make([][]byte, len(dataLens))
	for i, dataLen := range dataLens {
		if len(payload) < int(dataLen) {
			return nil, 0, ErrAACShortPayload
		}
		aus[i] = payload[:dataLen]
		payload = payload[dataLen:]
	}

	return aus, d.timeDec.decode(pkt.Timestamp), nil
}
