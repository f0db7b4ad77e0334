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

package mp4

import "mp4recorder/pkg/mp4/bitio"

// Esds is the ISO/IEC 14496-1 elementary stream descriptor box, used by
// the mp4a sample entry to carry the AAC AudioSpecificConfig.
type Esds struct {
	FullBox
	ESID uint16

	// MaxBitrate and AvgBitrate are the DecoderConfigDescriptor's peak
	// and average bit rate in bits per second. moovsynth derives both
	// from the track's actual recorded sample sizes rather than a
	// fixed stand-in value.
	MaxBitrate uint32
	AvgBitrate uint32

	Config []byte
}

// Type returns the BoxType.
func (*Esds) Type() BoxType { return [4]byte{'e', 's', 'd', 's'} }

// Size returns the marshaled size in bytes.
func (b *Esds) Size() int { return 4 + 37 + len(b.Config) }

// Marshal box to writer.
func (b *Esds) Marshal(w *bitio.Writer) error {
	if err := b.FullBox.MarshalField(w); err != nil {
		return err
	}

	decSpecificInfoSize := uint8(len(b.Config))

	w.TryWrite([]byte{
		ESDescrTag,
		0x80, 0x80, 0x80,
		32 + decSpecificInfoSize, // Size.
		byte(b.ESID >> 8), byte(b.ESID),
		0, // Flags.
	})

	w.TryWrite([]byte{
		DecoderConfigDescrTag,
		0x80, 0x80, 0x80,
		18 + decSpecificInfoSize, // Size.

		0x40,    // Object type indicator (MPEG-4 Audio).
		0x15,    // StreamType and upStream.
		0, 0, 0, // BufferSizeDB.
	})
	w.TryWriteUint32(b.MaxBitrate)
	w.TryWriteUint32(b.AvgBitrate)

	w.TryWrite([]byte{
		DecSpecificInfoTag,
		0x80, 0x80, 0x80,
		decSpecificInfoSize,
	})
	w.TryWrite(b.Config)

	w.TryWrite([]byte{
		SLConfigDescrTag,
		0x80, 0x80, 0x80,
		1, // Size.
		2, // Flags.
	})

	return w.TryError
}
