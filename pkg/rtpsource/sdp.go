package rtpsource

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	psdp "github.com/pion/sdp/v3"
)

// Errors returned while reading codec parameters out of a media
// description's fmtp attribute.
var (
	ErrSDPfmtpMissing     = errors.New("rtpsource: fmtp attribute is missing")
	ErrSDPfmtpInvalid     = errors.New("rtpsource: invalid fmtp attribute")
	ErrSDPspropInvalid    = errors.New("rtpsource: invalid sprop-parameter-sets")
	ErrSDPspropMissing    = errors.New("rtpsource: sprop-parameter-sets is missing")
	ErrSDPrtpmapMissing   = errors.New("rtpsource: rtpmap attribute is missing")
	ErrSDPrtpmapInvalid   = errors.New("rtpsource: invalid rtpmap attribute")
)

// H264ParamsFromSDP extracts the base64-encoded sprop-parameter-sets
// SPS/PPS pair out of a H.264 media description's fmtp attribute, for
// callers that already have them out-of-band and don't need to wait
// for an in-stream STAP-A.
func H264ParamsFromSDP(md *psdp.MediaDescription) (sps, pps []byte, err error) {
	v, ok := md.Attribute("fmtp")
	if !ok {
		return nil, nil, ErrSDPfmtpMissing
	}

	parts := strings.SplitN(v, " ", 2)
	if len(parts) != 2 {
		return nil, nil, fmt.Errorf("%w (%v)", ErrSDPfmtpInvalid, v)
	}

	for _, kv := range strings.Split(parts[1], ";") {
		kv = strings.Trim(kv, " ")
		if kv == "" {
			continue
		}
		pair := strings.SplitN(kv, "=", 2)
		if len(pair) != 2 || pair[0] != "sprop-parameter-sets" {
			continue
		}

		vals := strings.SplitN(pair[1], ",", 3)
		if len(vals) < 2 {
			return nil, nil, fmt.Errorf("%w (%v)", ErrSDPspropInvalid, v)
		}
		sps, err = base64.StdEncoding.DecodeString(vals[0])
		if err != nil {
			return nil, nil, fmt.Errorf("%w (%v)", ErrSDPspropInvalid, v)
		}
		pps, err = base64.StdEncoding.DecodeString(vals[1])
		if err != nil {
			return nil, nil, fmt.Errorf("%w (%v)", ErrSDPspropInvalid, v)
		}
		return sps, pps, nil
	}

	return nil, nil, ErrSDPspropMissing
}

// AACParamsFromSDP extracts the clock rate and channel count from a
// MPEG-4 generic audio media description's rtpmap attribute, e.g.
// "97 mpeg4-generic/48000/2".
func AACParamsFromSDP(md *psdp.MediaDescription) (sampleRate, channels int, err error) {
	v, ok := md.Attribute("rtpmap")
	if !ok {
		return 0, 0, ErrSDPrtpmapMissing
	}

	parts := strings.SplitN(v, " ", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w (%v)", ErrSDPrtpmapInvalid, v)
	}

	fields := strings.Split(parts[1], "/")
	if len(fields) < 2 {
		return 0, 0, fmt.Errorf("%w (%v)", ErrSDPrtpmapInvalid, v)
	}

	sampleRate, err = strconv.Atoi(fields[1])
	if err != nil {
		return 0, 0, fmt.Errorf("%w (%v)", ErrSDPrtpmapInvalid, v)
	}

	channels = 1
	if len(fields) >= 3 {
		channels, err = strconv.Atoi(fields[2])
		if err != nil {
			return 0, 0, fmt.Errorf("%w (%v)", ErrSDPrtpmapInvalid, v)
		}
	}

	return sampleRate, channels, nil
}
