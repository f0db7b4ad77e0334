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

// Package recovery implements the driver that repairs a recording
// session left behind by a crash: it patches the mdat size field,
// re-derives codec parameters from the bitstream if necessary, and
// appends a moov box built by moovsynth.
package recovery

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"mp4recorder/pkg/journal"
	"mp4recorder/pkg/moovsynth"
	"mp4recorder/pkg/nal"
)

// MdatSizeFieldOffset is the byte offset of the mdat box's 4-byte size
// field within the session file: an 8-byte ftyp box is not used here —
// instead a fixed 32-byte ftyp precedes the 8-byte mdat header, so the
// size field itself sits at offset 32 and the mdat payload starts at
// MdatPayloadStart.
const MdatSizeFieldOffset = 32

// MdatPayloadStart is the fixed byte offset where mdat sample bytes
// begin; journal.Record.Offset values are relative to this point.
const MdatPayloadStart = 40

// MaxParameterSetSize bounds a recovered SPS/PPS extracted from the
// bitstream; a longer one is discarded.
const MaxParameterSetSize = 256

// ErrNotInterrupted is returned when path's sidecar journal or lock
// file is missing, i.e. there is nothing to recover.
var ErrNotInterrupted = errors.New("recovery: no interrupted session at path")

// ErrFileTooSmall is returned when the session file is smaller than
// the fixed header all recordings start with.
var ErrFileTooSmall = errors.New("recovery: file smaller than fixed header")

// Logger is the minimal sink the driver needs for non-fatal warnings.
// A nil Logger disables logging.
type Logger interface {
	Warnf(format string, args ...any)
}

func warnf(l Logger, format string, args ...any) {
	if l != nil {
		l.Warnf(format, args...)
	}
}

// Paths returns the sidecar journal and lock paths for a session file.
func Paths(path string) (idxPath, lockPath string) {
	return path + ".idx", path + ".lock"
}

// HasIncompleteRecording reports whether path has both a sidecar
// journal and lock file, i.e. a session interrupted before stop ran.
func HasIncompleteRecording(path string) bool {
	idxPath, lockPath := Paths(path)
	return journal.Exists(idxPath) && fileExists(lockPath)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Recover repairs the session file at path. sps and pps are used
// verbatim unless both are nil; then they are extracted from the first
// video sample's bitstream bytes. logger may be nil.
func Recover(path string, sps, pps []byte, logger Logger) error {
	idxPath, lockPath := Paths(path)
	if !journal.Exists(idxPath) || !fileExists(lockPath) {
		return ErrNotInterrupted
	}

	header, videoRecords, audioRecords, err := journal.ReadAll(idxPath)
	if err != nil {
		return fmt.Errorf("recovery: read journal: %w", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("recovery: open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("recovery: stat: %w", err)
	}
	size := info.Size()
	if size < MdatPayloadStart {
		return ErrFileTooSmall
	}

	mdatSize := uint64(size) - MdatSizeFieldOffset
	if mdatSize > 0xFFFFFFFF {
		return fmt.Errorf("recovery: mdat size %d exceeds 32 bits", mdatSize)
	}
	var sizeField [4]byte
	binary.BigEndian.PutUint32(sizeField[:], uint32(mdatSize))
	if _, err := f.WriteAt(sizeField[:], MdatSizeFieldOffset); err != nil {
		return fmt.Errorf("recovery: patch mdat size: %w", err)
	}

	if sps == nil && pps == nil && len(videoRecords) > 0 {
		sps, pps, err = extractParameterSets(f, videoRecords[0])
		if err != nil {
			warnf(logger, "recovery: %s: could not extract SPS/PPS from bitstream: %v", path, err)
		}
		if len(sps) > MaxParameterSetSize {
			sps = nil
		}
		if len(pps) > MaxParameterSetSize {
			pps = nil
		}
	}
	if sps == nil {
		warnf(logger, "recovery: %s: recovering without SPS, avcC will use fallback values", path)
	}

	moovBytes, err := moovsynth.Synthesize(moovsynth.Params{
		MdatPayloadStart: MdatPayloadStart,
		VideoTimescale:   header.VideoTimescale,
		VideoWidth:       header.VideoWidth,
		VideoHeight:      header.VideoHeight,
		VideoSPS:         sps,
		VideoPPS:         pps,
		VideoRecords:     videoRecords,
		AudioTimescale:   header.AudioTimescale,
		AudioSampleRate:  header.AudioSampleRate,
		AudioChannels:    header.AudioChannels,
		AudioRecords:     audioRecords,
	})
	if err != nil {
		return fmt.Errorf("recovery: synthesize moov: %w", err)
	}

	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("recovery: seek to end: %w", err)
	}
	if _, err := f.Write(moovBytes); err != nil {
		return fmt.Errorf("recovery: append moov: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("recovery: sync: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("recovery: close: %w", err)
	}

	if err := journal.Remove(idxPath); err != nil {
		warnf(logger, "recovery: %s: could not remove journal: %v", path, err)
	}
	if err := os.Remove(lockPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		warnf(logger, "recovery: %s: could not remove lock file: %v", path, err)
	}

	return nil
}

func extractParameterSets(f *os.File, first journal.Record) (sps, pps []byte, err error) {
	buf := make([]byte, first.Size)
	if _, err := f.ReadAt(buf, int64(MdatPayloadStart)+int64(first.Offset)); err != nil {
		return nil, nil, fmt.Errorf("read first video sample: %w", err)
	}
	sps, pps = nal.ExtractParameterSets(buf)
	return sps, pps, nil
}
