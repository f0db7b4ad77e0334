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

package journal

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// Header is the packed configuration record written once at the start
// of a journal file, immediately after the magic value.
type Header struct {
	VideoTimescale   uint32
	AudioTimescale   uint32
	AudioSampleRate  uint32
	AudioChannels    uint16
	FlushIntervalMs  uint32
	FlushFrameCount  uint32
	VideoWidth       uint32
	VideoHeight      uint32
}

// HeaderSize is the fixed on-disk size of a Header, in bytes: 7 uint32
// fields plus 1 uint16 field.
const HeaderSize = 4*7 + 2

// marshal encodes h using native byte order, matching Record.
func (h Header) marshal() [HeaderSize]byte {
	var buf [HeaderSize]byte
	binary.NativeEndian.PutUint32(buf[0:4], h.VideoTimescale)
	binary.NativeEndian.PutUint32(buf[4:8], h.AudioTimescale)
	binary.NativeEndian.PutUint32(buf[8:12], h.AudioSampleRate)
	binary.NativeEndian.PutUint16(buf[12:14], h.AudioChannels)
	binary.NativeEndian.PutUint32(buf[14:18], h.FlushIntervalMs)
	binary.NativeEndian.PutUint32(buf[18:22], h.FlushFrameCount)
	binary.NativeEndian.PutUint32(buf[22:26], h.VideoWidth)
	binary.NativeEndian.PutUint32(buf[26:30], h.VideoHeight)
	return buf
}

func (h *Header) unmarshal(buf []byte) {
	h.VideoTimescale = binary.NativeEndian.Uint32(buf[0:4])
	h.AudioTimescale = binary.NativeEndian.Uint32(buf[4:8])
	h.AudioSampleRate = binary.NativeEndian.Uint32(buf[8:12])
	h.AudioChannels = binary.NativeEndian.Uint16(buf[12:14])
	h.FlushIntervalMs = binary.NativeEndian.Uint32(buf[14:18])
	h.FlushFrameCount = binary.NativeEndian.Uint32(buf[18:22])
	h.VideoWidth = binary.NativeEndian.Uint32(buf[22:26])
	h.VideoHeight = binary.NativeEndian.Uint32(buf[26:30])
}

// ErrBadMagic is returned when a journal file doesn't start with Magic.
var ErrBadMagic = errors.New("journal: bad magic")

// Writer appends Records to an open journal file.
type Writer struct {
	f     *os.File
	count uint64
}

// Create creates a new journal file at path, writes the magic and
// header, and returns a Writer ready to accept frames.
func Create(path string, header Header) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("journal: create: %w", err)
	}

	var magic [4]byte
	binary.NativeEndian.PutUint32(magic[:], Magic)
	if _, err := f.Write(magic[:]); err != nil {
		f.Close()
		return nil, fmt.Errorf("journal: write magic: %w", err)
	}

	hdr := header.marshal()
	if _, err := f.Write(hdr[:]); err != nil {
		f.Close()
		return nil, fmt.Errorf("journal: write header: %w", err)
	}

	return &Writer{f: f}, nil
}

// Append writes rec to the journal.
func (w *Writer) Append(rec Record) error {
	buf := rec.Marshal()
	if _, err := w.f.Write(buf[:]); err != nil {
		return fmt.Errorf("journal: append: %w", err)
	}
	w.count++
	return nil
}

// FrameCount returns the number of records appended so far.
func (w *Writer) FrameCount() uint64 { return w.count }

// Flush flushes buffered writes to the OS.
func (w *Writer) Flush() error {
	// os.File has no userspace buffer; nothing to flush beyond the
	// kernel page cache, which Sync handles.
	return nil
}

// Sync durably syncs the journal to storage.
func (w *Writer) Sync() error {
	if err := w.f.Sync(); err != nil {
		return fmt.Errorf("journal: sync: %w", err)
	}
	return nil
}

// Close closes the underlying file.
func (w *Writer) Close() error {
	return w.f.Close()
}

// Exists reports whether a journal file exists at path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ReadAll opens path, validates the magic, and returns the header plus
// the video and audio records in the order they appear in the file. A
// trailing partial record (the tolerable result of a mid-write crash)
// is silently discarded.
func ReadAll(path string) (Header, []Record, []Record, error) {
	var header Header

	f, err := os.Open(path)
	if err != nil {
		return header, nil, nil, fmt.Errorf("journal: open: %w", err)
	}
	defer f.Close()

	var magic [4]byte
	if _, err := io.ReadFull(f, magic[:]); err != nil {
		return header, nil, nil, fmt.Errorf("journal: read magic: %w", err)
	}
	if binary.NativeEndian.Uint32(magic[:]) != Magic {
		return header, nil, nil, ErrBadMagic
	}

	var hdrBuf [HeaderSize]byte
	if _, err := io.ReadFull(f, hdrBuf[:]); err != nil {
		return header, nil, nil, fmt.Errorf("journal: read header: %w", err)
	}
	header.unmarshal(hdrBuf[:])

	var video, audio []Record
	var buf [RecordSize]byte
	for {
		_, err := io.ReadFull(f, buf[:])
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			break
		}
		if err != nil {
			return header, nil, nil, fmt.Errorf("journal: read record: %w", err)
		}

		var rec Record
		rec.Unmarshal(buf[:])
		switch rec.TrackID {
		case TrackAudio:
			audio = append(audio, rec)
		default:
			video = append(video, rec)
		}
	}

	return header, video, audio, nil
}

// Remove deletes the journal file at path. A missing file is not an error.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("journal: remove: %w", err)
	}
	return nil
}
