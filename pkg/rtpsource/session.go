// Package rtpsource depacketizes RTP/H.264 (RFC 6184) and RTP/AAC
// (RFC 3640) streams into access units and feeds them to a Sink —
// typically a Recorder. It is the producer side the core recorder
// treats as external.
package rtpsource

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/pion/rtp/v2"
)

// Sink is the subset of a Recorder's API a Session writes into.
type Sink interface {
	WriteVideo(data []byte, pts int64, isKeyframe bool) error
	WriteAudio(data []byte, pts int64) error
	SetVideoCodecConfig(sps, pps []byte) error
}

// Logger is the minimal sink for per-packet warnings. A nil Logger
// disables logging.
type Logger interface {
	Warnf(format string, args ...any)
}

func warnf(l Logger, format string, args ...any) {
	if l != nil {
		l.Warnf(format, args...)
	}
}

// Session reads RTP packets for one video stream and, optionally, one
// audio stream, and drives a Sink from the access units it
// reconstructs. A Session is not reusable after Run returns.
type Session struct {
	sink Sink
	log  Logger

	video io.Reader
	audio io.Reader

	videoTimescale uint32
	audioTimescale uint32

	spsConfigured bool

	videoErrCh chan error
	audioErrCh chan error
	sampleCh   chan sample
}

type trackKind int

const (
	trackVideo trackKind = iota
	trackAudio
)

type sample struct {
	kind       trackKind
	units      [][]byte
	pts        time.Duration
	isKeyframe bool
}

// NewSession builds a Session. audio may be nil for video-only
// sources. videoTimescale/audioTimescale must match the Config the
// Sink was started with, so RTP timestamps convert into the same
// tick units the Recorder stores in its journal.
func NewSession(sink Sink, video, audio io.Reader, videoTimescale, audioTimescale uint32, log Logger) *Session {
	return &Session{
		sink:           sink,
		log:            log,
		video:          video,
		audio:          audio,
		videoTimescale: videoTimescale,
		audioTimescale: audioTimescale,
		videoErrCh:     make(chan error, 1),
		audioErrCh:     make(chan error, 1),
		sampleCh:       make(chan sample, 64),
	}
}

// Run reads packets until ctx is canceled or the video source returns
// a fatal error (an audio read error is logged but does not stop
// video ingest). All Sink calls happen on the goroutine running Run,
// so callers get the single-writer behavior the Recorder requires
// without needing their own locking.
func (s *Session) Run(ctx context.Context, audioClockRate int) error {
	go s.readLoop(trackVideo, s.video, newH264Decoder(), s.videoErrCh)
	if s.audio != nil {
		go s.readLoop(trackAudio, s.audio, newAACDecoder(audioClockRate), s.audioErrCh)
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case err := <-s.videoErrCh:
			return err

		case err := <-s.audioErrCh:
			warnf(s.log, "rtpsource: audio stream ended: %v", err)
			s.audio = nil

		case smp := <-s.sampleCh:
			if err := s.dispatch(smp); err != nil {
				return err
			}
		}
	}
}

type decoder interface {
	decode(pkt *rtp.Packet) ([][]byte, time.Duration, error)
}

func (s *Session) readLoop(kind trackKind, r io.Reader, dec decoder, errCh chan<- error) {
	for {
		// A fresh buffer per packet: the decoded units slice into it and
		// are dispatched later, on Run's goroutine.
		buf := make([]byte, 2048)
		n, err := r.Read(buf)
		if err != nil {
			errCh <- err
			return
		}

		var pkt rtp.Packet
		if err := pkt.Unmarshal(buf[:n]); err != nil {
			warnf(s.log, "rtpsource: malformed RTP packet: %v", err)
			continue
		}

		units, pts, err := dec.decode(&pkt)
		if err != nil {
			if !errors.Is(err, ErrH264MorePacketsNeeded) && !errors.Is(err, ErrAACMorePacketsNeeded) {
				warnf(s.log, "rtpsource: decode error: %v", err)
			}
			continue
		}
		if len(units) == 0 {
			continue
		}

		s.sampleCh <- sample{kind: kind, units: units, pts: pts}
	}
}

func (s *Session) dispatch(smp sample) error {
	switch smp.kind {
	case trackAudio:
		for _, au := range smp.units {
			pts := durationToTicks(smp.pts, s.audioTimescale)
			if err := s.sink.WriteAudio(au, pts); err != nil {
				return fmt.Errorf("rtpsource: write audio: %w", err)
			}
		}
		return nil

	default:
		return s.dispatchVideo(smp)
	}
}

func (s *Session) dispatchVideo(smp sample) error {
	var avccSample []byte
	isKeyframe := false
	var sps, pps []byte

	for _, nalu := range smp.units {
		if len(nalu) == 0 {
			continue
		}
		switch naluType(nalu[0] & 0x1F) {
		case naluTypeSPS:
			sps = append([]byte(nil), nalu...)
			continue
		case naluTypePPS:
			pps = append([]byte(nil), nalu...)
			continue
		case naluTypeIDR:
			isKeyframe = true
		}
		avccSample = append(avccSample, avccPrefix(nalu)...)
	}

	if !s.spsConfigured && sps != nil && pps != nil {
		if err := s.sink.SetVideoCodecConfig(sps, pps); err != nil {
			return fmt.Errorf("rtpsource: set video codec config: %w", err)
		}
		s.spsConfigured = true
	}

	if len(avccSample) == 0 {
		return nil
	}

	pts := durationToTicks(smp.pts, s.videoTimescale)
	if err := s.sink.WriteVideo(avccSample, pts, isKeyframe); err != nil {
		return fmt.Errorf("rtpsource: write video: %w", err)
	}
	return nil
}

func avccPrefix(nalu []byte) []byte {
	var lengthField [4]byte
	binary.BigEndian.PutUint32(lengthField[:], uint32(len(nalu)))
	return append(lengthField[:], nalu...)
}

func durationToTicks(d time.Duration, timescale uint32) int64 {
	return int64(d) * int64(timescale) / int64(time.Second)
}
