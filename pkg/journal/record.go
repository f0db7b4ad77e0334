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

// Package journal implements the sidecar frame index that makes a
// progressively written MP4 recording crash-recoverable.
package journal

import "encoding/binary"

// Track identifies which trak a FrameRecord belongs to.
type Track uint8

// Track ids.
const (
	TrackVideo Track = 0
	TrackAudio Track = 1
)

// RecordSize is the fixed on-disk size of a FrameRecord, in bytes.
const RecordSize = 40

// Magic is the 32-bit value at the start of the journal file.
const Magic uint32 = 0x4D503452 // "MP4R"

// Record is one fixed-size journal entry, one per sample. Its in-memory
// layout is also its on-disk layout: offset(8) size(4) pad(4) pts(8)
// dts(8) isKeyframe(1) trackID(1) pad(6), native byte order.
type Record struct {
	Offset     uint64
	Size       uint32
	PTS        int64
	DTS        int64
	IsKeyframe bool
	TrackID    Track
}

// Marshal encodes rec into a RecordSize-byte buffer using native byte order.
func (rec Record) Marshal() [RecordSize]byte {
	var buf [RecordSize]byte
	binary.NativeEndian.PutUint64(buf[0:8], rec.Offset)
	binary.NativeEndian.PutUint32(buf[8:12], rec.Size)
	binary.NativeEndian.PutUint64(buf[16:24], uint64(rec.PTS))
	binary.NativeEndian.PutUint64(buf[24:32], uint64(rec.DTS))
	if rec.IsKeyframe {
		buf[32] = 1
	}
	buf[33] = byte(rec.TrackID)
	return buf
}

// Unmarshal decodes a RecordSize-byte buffer into rec.
func (rec *Record) Unmarshal(buf []byte) {
	rec.Offset = binary.NativeEndian.Uint64(buf[0:8])
	rec.Size = binary.NativeEndian.Uint32(buf[8:12])
	rec.PTS = int64(binary.NativeEndian.Uint64(buf[16:24]))
	rec.DTS = int64(binary.NativeEndian.Uint64(buf[24:32]))
	rec.IsKeyframe = buf[32] != 0
	rec.TrackID = Track(buf[33])
}
