// Copyright 2020-2022 The OS-NVR Authors.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation; version 2.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package mp4recorder

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"mp4recorder/pkg/h264sps"
	"mp4recorder/pkg/journal"
	"mp4recorder/pkg/mp4"
	"mp4recorder/pkg/mp4/bitio"
	"mp4recorder/pkg/moovsynth"
	"mp4recorder/pkg/reclog"
	"mp4recorder/pkg/recovery"
	"mp4recorder/pkg/sysguard"
)

// mdatPayloadStart mirrors pkg/recovery.MdatPayloadStart: the fixed
// byte offset at which sample bytes begin, after a 32-byte ftyp and
// an 8-byte mdat header.
const mdatPayloadStart = recovery.MdatPayloadStart

// mdatSizeFieldOffset mirrors pkg/recovery.MdatSizeFieldOffset.
const mdatSizeFieldOffset = recovery.MdatSizeFieldOffset

var ftypBytes = func() []byte {
	box := &mp4.Ftyp{
		MajorBrand:   [4]byte{'i', 's', 'o', 'm'},
		MinorVersion: 0x00000200,
		CompatibleBrands: []mp4.CompatibleBrandElem{
			{CompatibleBrand: [4]byte{'i', 's', 'o', 'm'}},
			{CompatibleBrand: [4]byte{'i', 's', 'o', '2'}},
			{CompatibleBrand: [4]byte{'a', 'v', 'c', '1'}},
			{CompatibleBrand: [4]byte{'m', 'p', '4', '1'}},
		},
	}
	var buf bytes.Buffer
	w := bitio.NewWriter(bitio.NewByteWriter(&buf))
	if _, err := mp4.WriteSingleBox(w, box); err != nil {
		panic(fmt.Sprintf("mp4recorder: ftyp template: %v", err))
	}
	return buf.Bytes()
}()

// Recorder writes one progressively-written, crash-recoverable MP4
// session. A Recorder is not safe for concurrent use by multiple
// goroutines beyond the mutual exclusion it provides internally.
type Recorder struct {
	mu sync.Mutex

	log *reclog.Logger

	path     string
	cfg      Config
	open     bool
	mdatFile *os.File
	jrnl     *journal.Writer

	mdatSize uint64
	sps, pps []byte

	videoRecords []journal.Record
	audioRecords []journal.Record

	lastFlush        time.Time
	framesSinceFlush uint32
}

// New returns an idle Recorder that logs through l (nil disables
// logging).
func New(l *reclog.Logger) *Recorder {
	return &Recorder{log: l}
}

// IsRecording reports whether a session is currently open.
func (r *Recorder) IsRecording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.open
}

// FrameCount returns the number of frames written so far in the
// current session, across both tracks.
func (r *Recorder) FrameCount() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return uint64(len(r.videoRecords) + len(r.audioRecords))
}

// Start opens a new session at path. path must not already have an
// open session; use HasIncompleteRecording/Recover first if it does.
func (r *Recorder) Start(path string, cfg Config) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.open {
		return ErrAlreadyRecording
	}
	if path == "" {
		return fmt.Errorf("%w: empty path", ErrInvalidArgument)
	}

	if cfg.MinFreeBytes > 0 {
		if err := sysguard.CheckFreeSpace(path, cfg.MinFreeBytes); err != nil {
			return err
		}
	}

	idxPath, lockPath := recovery.Paths(path)

	mdatFile, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIoCreate, err)
	}

	cleanup := func() {
		mdatFile.Close()
		os.Remove(path)
		os.Remove(idxPath)
		os.Remove(lockPath)
	}

	if _, err := mdatFile.Write(ftypBytes); err != nil {
		cleanup()
		return fmt.Errorf("%w: write ftyp: %v", ErrIoWrite, err)
	}

	var mdatHeader [8]byte
	copy(mdatHeader[4:], "mdat")
	if _, err := mdatFile.Write(mdatHeader[:]); err != nil {
		cleanup()
		return fmt.Errorf("%w: write mdat header: %v", ErrIoWrite, err)
	}

	jrnl, err := journal.Create(idxPath, cfg.toHeader())
	if err != nil {
		cleanup()
		return fmt.Errorf("%w: %v", ErrIoCreate, err)
	}
	if err := jrnl.Sync(); err != nil {
		jrnl.Close()
		cleanup()
		return fmt.Errorf("%w: %v", ErrIoSync, err)
	}

	lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err == nil {
		if _, err = lockFile.Write([]byte("RECORDING")); err == nil {
			err = lockFile.Sync()
		}
		if cerr := lockFile.Close(); err == nil {
			err = cerr
		}
	}
	if err != nil {
		jrnl.Close()
		cleanup()
		return fmt.Errorf("%w: %v", ErrIoCreate, err)
	}

	r.path = path
	r.cfg = cfg
	r.mdatFile = mdatFile
	r.jrnl = jrnl
	r.mdatSize = 0
	r.sps, r.pps = nil, nil
	r.videoRecords, r.audioRecords = nil, nil
	r.lastFlush = time.Now()
	r.framesSinceFlush = 0
	r.open = true

	r.log.Info().Src("recorder").Msgf("started recording: %s", path)

	return nil
}

// SetVideoCodecConfig stores sps and pps for use by the Moov
// Synthesizer at stop/recovery. It may be called at any time before
// Stop; the last call wins.
func (r *Recorder) SetVideoCodecConfig(sps, pps []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.open {
		return ErrNotRecording
	}
	if len(sps) == 0 || len(pps) == 0 {
		return fmt.Errorf("%w: empty sps or pps", ErrInvalidArgument)
	}

	r.sps = append([]byte(nil), sps...)
	r.pps = append([]byte(nil), pps...)

	r.checkSPSDimensions(sps)

	return nil
}

// checkSPSDimensions is a diagnostic-only cross-check: it never alters
// the stored SPS bytes or the avcC encoding, it only warns when the
// decoded picture size disagrees with the configured one, which
// usually means the capture source and Config.video_width/height have
// drifted apart.
func (r *Recorder) checkSPSDimensions(sps []byte) {
	parsed, err := h264sps.Parse(sps)
	if err != nil {
		r.log.Warn().Src("recorder").Msgf("could not parse SPS for dimension check: %v", err)
		return
	}
	if w, h := uint32(parsed.Width()), uint32(parsed.Height()); w != r.cfg.VideoWidth || h != r.cfg.VideoHeight {
		r.log.Warn().Src("recorder").Msgf(
			"SPS decoded dimensions %dx%d disagree with configured %dx%d",
			w, h, r.cfg.VideoWidth, r.cfg.VideoHeight)
	}
}

// WriteVideo appends one H.264 access unit, stored as AVCC
// (4-byte-length-prefixed) sample data, to the session.
func (r *Recorder) WriteVideo(data []byte, pts int64, isKeyframe bool) error {
	return r.writeSample(data, pts, pts, isKeyframe, journal.TrackVideo)
}

// WriteAudio appends one raw AAC access unit (no ADTS header) to the
// session. Every audio sample is treated as a sync sample.
func (r *Recorder) WriteAudio(data []byte, pts int64) error {
	return r.writeSample(data, pts, pts, true, journal.TrackAudio)
}

func (r *Recorder) writeSample(data []byte, pts, dts int64, isKeyframe bool, track journal.Track) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.open {
		return ErrNotRecording
	}
	if len(data) == 0 {
		return fmt.Errorf("%w: empty sample", ErrInvalidArgument)
	}

	offset := r.mdatSize
	if mdatPayloadStart+offset+uint64(len(data)) > 0xFFFFFFFF {
		return fmt.Errorf("%w: %w", ErrIoWrite, moovsynth.ErrOffsetOverflow)
	}

	rec := journal.Record{
		Offset:     offset,
		Size:       uint32(len(data)),
		PTS:        pts,
		DTS:        dts,
		IsKeyframe: isKeyframe,
		TrackID:    track,
	}

	if _, err := r.mdatFile.Write(data); err != nil {
		return fmt.Errorf("%w: %v", ErrIoWrite, err)
	}
	r.mdatSize += uint64(len(data))

	if err := r.jrnl.Append(rec); err != nil {
		return fmt.Errorf("%w: %v", ErrIoWrite, err)
	}

	switch track {
	case journal.TrackAudio:
		r.audioRecords = append(r.audioRecords, rec)
	default:
		r.videoRecords = append(r.videoRecords, rec)
	}

	r.framesSinceFlush++
	if r.shouldFlush() {
		if err := r.flush(); err != nil {
			return err
		}
	}

	return nil
}

func (r *Recorder) shouldFlush() bool {
	if r.framesSinceFlush >= r.cfg.FlushFrameCount {
		return true
	}
	elapsed := time.Since(r.lastFlush)
	return elapsed >= time.Duration(r.cfg.FlushIntervalMs)*time.Millisecond
}

// flush durably syncs mdat, then the journal, in that order, so a
// crash between the two syncs leaves at most an unreferenced tail of
// mdat bytes, never a dangling journal record. Caller holds r.mu.
func (r *Recorder) flush() error {
	elapsed := time.Since(r.lastFlush)
	frames := r.framesSinceFlush

	if err := r.mdatFile.Sync(); err != nil {
		return fmt.Errorf("%w: mdat: %v", ErrIoSync, err)
	}
	if err := r.jrnl.Sync(); err != nil {
		return fmt.Errorf("%w: journal: %v", ErrIoSync, err)
	}

	r.lastFlush = time.Now()
	r.framesSinceFlush = 0

	r.log.Debug().Src("recorder").Msgf("flushed %d frames after %s", frames, elapsed)

	return nil
}

// Stop finalizes the session: it patches the mdat size field,
// synthesizes and appends the moov box, and unlinks the sidecars. On
// failure the sidecars are left intact so Recover can still produce a
// valid file.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.open {
		return ErrNotRecording
	}

	if err := r.flush(); err != nil {
		return err
	}

	idxPath, lockPath := recovery.Paths(r.path)

	var sizeField [4]byte
	mdatSize := 8 + r.mdatSize
	if mdatSize > 0xFFFFFFFF {
		return fmt.Errorf("%w: mdat size %d exceeds 32 bits", ErrIoWrite, mdatSize)
	}
	binary.BigEndian.PutUint32(sizeField[:], uint32(mdatSize))
	if _, err := r.mdatFile.WriteAt(sizeField[:], mdatSizeFieldOffset); err != nil {
		return fmt.Errorf("%w: patch mdat size: %v", ErrIoSeek, err)
	}
	if err := r.mdatFile.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrIoSync, err)
	}

	if len(r.videoRecords) > 0 && r.sps == nil {
		r.log.Warn().Src("recorder").Msg("stopping without SPS/PPS, avcC will use fallback values")
	}

	moovBytes, err := moovsynth.Synthesize(moovsynth.Params{
		MdatPayloadStart: mdatPayloadStart,
		VideoTimescale:   r.cfg.VideoTimescale,
		VideoWidth:       r.cfg.VideoWidth,
		VideoHeight:      r.cfg.VideoHeight,
		VideoSPS:         r.sps,
		VideoPPS:         r.pps,
		VideoRecords:     r.videoRecords,
		AudioTimescale:   r.cfg.AudioTimescale,
		AudioSampleRate:  r.cfg.AudioSampleRate,
		AudioChannels:    r.cfg.AudioChannels,
		AudioRecords:     r.audioRecords,
	})
	if err != nil {
		if errors.Is(err, moovsynth.ErrNoFrames) {
			return err
		}
		return fmt.Errorf("mp4recorder: synthesize moov: %w", err)
	}

	f, err := os.OpenFile(r.path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("%w: reopen for append: %v", ErrIoCreate, err)
	}
	if _, err := f.Write(moovBytes); err != nil {
		f.Close()
		return fmt.Errorf("%w: append moov: %v", ErrIoWrite, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("%w: %v", ErrIoSync, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrIoSync, err)
	}

	if err := r.jrnl.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrIoSync, err)
	}
	if err := journal.Remove(idxPath); err != nil {
		r.log.Warn().Src("recorder").Msgf("could not remove journal: %v", err)
	}
	if err := os.Remove(lockPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		r.log.Warn().Src("recorder").Msgf("could not remove lock file: %v", err)
	}

	frameCount := len(r.videoRecords) + len(r.audioRecords)
	r.log.Info().Src("recorder").Msgf("stopped recording: %s (%d frames)", r.path, frameCount)

	r.open = false
	return nil
}

// HasIncompleteRecording reports whether path was left behind by a
// session that never reached Stop.
func HasIncompleteRecording(path string) bool {
	return recovery.HasIncompleteRecording(path)
}

// Recover finalizes a session interrupted by a crash, using sps/pps
// if supplied, otherwise re-deriving them from the bitstream.
func Recover(path string, sps, pps []byte, l *reclog.Logger) error {
	return recovery.Recover(path, sps, pps, loggerAdapter{l})
}

type loggerAdapter struct{ l *reclog.Logger }

func (a loggerAdapter) Warnf(format string, args ...any) {
	a.l.Warnf(format, args...)
}
