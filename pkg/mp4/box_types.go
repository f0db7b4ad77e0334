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

/************************* FullBox **************************/

// FullBox is the ISOBMFF FullBox prefix: version + 3-byte flags.
type FullBox struct {
	Version uint8
	Flags   [3]byte
}

// GetFlags returns the flags as a single uint32.
func (b *FullBox) GetFlags() uint32 {
	flag := uint32(b.Flags[0]) << 16
	flag ^= uint32(b.Flags[1]) << 8
	flag ^= uint32(b.Flags[2])
	return flag
}

// CheckFlag reports whether flag is set.
func (b *FullBox) CheckFlag(flag uint32) bool {
	return b.GetFlags()&flag != 0
}

// FieldSize returns the marshaled size in bytes.
func (b *FullBox) FieldSize() int {
	return 4
}

// MarshalField writes the FullBox prefix.
func (b *FullBox) MarshalField(w *bitio.Writer) error {
	w.TryWriteByte(b.Version)
	w.TryWriteByte(b.Flags[0])
	w.TryWriteByte(b.Flags[1])
	w.TryWriteByte(b.Flags[2])
	return w.TryError
}

/*************************** dinf ****************************/

// Dinf is the ISOBMFF dinf box.
type Dinf struct{}

// Type returns the BoxType.
func (*Dinf) Type() BoxType { return [4]byte{'d', 'i', 'n', 'f'} }

// Size returns the marshaled size in bytes.
func (*Dinf) Size() int { return 0 }

// Marshal is never called; Dinf has no fields of its own.
func (*Dinf) Marshal(w *bitio.Writer) error { return nil }

/*************************** dref ****************************/

// Dref is the ISOBMFF dref box.
type Dref struct {
	FullBox
	EntryCount uint32
}

// Type returns the BoxType.
func (*Dref) Type() BoxType { return [4]byte{'d', 'r', 'e', 'f'} }

// Size returns the marshaled size in bytes.
func (b *Dref) Size() int { return 8 }

// Marshal box to writer.
func (b *Dref) Marshal(w *bitio.Writer) error {
	if err := b.FullBox.MarshalField(w); err != nil {
		return err
	}
	return w.WriteUint32(b.EntryCount)
}

/*************************** url ****************************/

// Url is the ISOBMFF "url " box. //nolint:revive,stylecheck
type Url struct {
	FullBox
	Location string
}

// Type returns the BoxType.
func (*Url) Type() BoxType { return [4]byte{'u', 'r', 'l', ' '} }

// urlSelfContained marks a self-contained data reference (no location string).
const urlSelfContained = 0x000001

// Size returns the marshaled size in bytes.
func (b *Url) Size() int {
	if !b.FullBox.CheckFlag(urlSelfContained) {
		return len(b.Location) + 5
	}
	return 4
}

// Marshal box to writer.
func (b *Url) Marshal(w *bitio.Writer) error {
	if err := b.FullBox.MarshalField(w); err != nil {
		return err
	}
	if !b.FullBox.CheckFlag(urlSelfContained) {
		_, err := w.Write([]byte(b.Location + "\000"))
		return err
	}
	return nil
}

/*************************** esds tags ****************************/

// MPEG-4 descriptor tags. See ISO/IEC 14496-1.
const (
	ESDescrTag            = 0x03
	DecoderConfigDescrTag = 0x04
	DecSpecificInfoTag    = 0x05
	SLConfigDescrTag      = 0x06
)

/*************************** ftyp ****************************/

// Ftyp is the ISOBMFF ftyp box.
type Ftyp struct {
	MajorBrand       [4]byte
	MinorVersion     uint32
	CompatibleBrands []CompatibleBrandElem
}

// CompatibleBrandElem is one compatible-brand entry of ftyp.
type CompatibleBrandElem struct {
	CompatibleBrand [4]byte
}

// Type returns the BoxType.
func (*Ftyp) Type() BoxType { return [4]byte{'f', 't', 'y', 'p'} }

// Size returns the marshaled size in bytes.
func (b *Ftyp) Size() int {
	return len(b.MajorBrand) + 4 + len(b.CompatibleBrands)*4
}

// Marshal box to writer.
func (b *Ftyp) Marshal(w *bitio.Writer) error {
	w.TryWrite(b.MajorBrand[:])
	w.TryWriteUint32(b.MinorVersion)
	for _, brand := range b.CompatibleBrands {
		w.TryWrite(brand.CompatibleBrand[:])
	}
	return w.TryError
}

/*************************** hdlr ****************************/

// Hdlr is the ISOBMFF hdlr box.
type Hdlr struct {
	FullBox
	PreDefined  uint32
	HandlerType [4]byte
	Reserved    [3]uint32
	Name        string
}

// Type returns the BoxType.
func (*Hdlr) Type() BoxType { return [4]byte{'h', 'd', 'l', 'r'} }

// Size returns the marshaled size in bytes.
func (b *Hdlr) Size() int {
	return len(b.HandlerType) + 9 + len(b.Reserved)*4 + len(b.Name)
}

// Marshal box to writer.
func (b *Hdlr) Marshal(w *bitio.Writer) error {
	if err := b.FullBox.MarshalField(w); err != nil {
		return err
	}
	w.TryWriteUint32(b.PreDefined)
	w.TryWrite(b.HandlerType[:])
	for _, reserved := range b.Reserved {
		w.TryWriteUint32(reserved)
	}
	w.TryWrite([]byte(b.Name + "\000"))
	return w.TryError
}

/*************************** mdat ****************************/

// Mdat is the ISOBMFF mdat box.
type Mdat struct {
	Data []byte
}

// Type returns the BoxType.
func (*Mdat) Type() BoxType { return [4]byte{'m', 'd', 'a', 't'} }

// Size returns the marshaled size in bytes.
func (b *Mdat) Size() int { return len(b.Data) }

// Marshal box to writer.
func (b *Mdat) Marshal(w *bitio.Writer) error {
	_, err := w.Write(b.Data)
	return err
}

/*************************** mdhd ****************************/

// Mdhd is the ISOBMFF mdhd box.
type Mdhd struct {
	FullBox
	CreationTimeV0     uint32
	ModificationTimeV0 uint32
	Timescale          uint32
	DurationV0         uint32
	Pad                bool
	Language           [3]byte
	PreDefined         uint16
}

// Type returns the BoxType.
func (*Mdhd) Type() BoxType { return [4]byte{'m', 'd', 'h', 'd'} }

// Size returns the marshaled size in bytes.
func (b *Mdhd) Size() int { return 24 }

// Marshal box to writer.
func (b *Mdhd) Marshal(w *bitio.Writer) error {
	if err := b.FullBox.MarshalField(w); err != nil {
		return err
	}
	w.TryWriteUint32(b.CreationTimeV0)
	w.TryWriteUint32(b.ModificationTimeV0)
	w.TryWriteUint32(b.Timescale)
	w.TryWriteUint32(b.DurationV0)
	if b.Pad {
		w.TryWriteByte(byte(0x1)<<7 | b.Language[0]&0x1f<<2 | b.Language[1]&0x1f>>3)
	} else {
		w.TryWriteByte(b.Language[0]&0x1f<<2 | b.Language[1]&0x1f>>3)
	}
	w.TryWriteByte(b.Language[1]<<5 | b.Language[2]&0x1f)
	w.TryWriteUint16(b.PreDefined)
	return w.TryError
}

/*************************** mdia ****************************/

// Mdia is the ISOBMFF mdia box.
type Mdia struct{}

// Type returns the BoxType.
func (*Mdia) Type() BoxType { return [4]byte{'m', 'd', 'i', 'a'} }

// Size returns the marshaled size in bytes.
func (*Mdia) Size() int { return 0 }

// Marshal is never called; Mdia has no fields of its own.
func (*Mdia) Marshal(w *bitio.Writer) error { return nil }

/*************************** minf ****************************/

// Minf is the ISOBMFF minf box.
type Minf struct{}

// Type returns the BoxType.
func (*Minf) Type() BoxType { return [4]byte{'m', 'i', 'n', 'f'} }

// Size returns the marshaled size in bytes.
func (*Minf) Size() int { return 0 }

// Marshal is never called; Minf has no fields of its own.
func (*Minf) Marshal(w *bitio.Writer) error { return nil }

/*************************** moov ****************************/

// Moov is the ISOBMFF moov box.
type Moov struct{}

// Type returns the BoxType.
func (*Moov) Type() BoxType { return [4]byte{'m', 'o', 'o', 'v'} }

// Size returns the marshaled size in bytes.
func (*Moov) Size() int { return 0 }

// Marshal is never called; Moov has no fields of its own.
func (*Moov) Marshal(w *bitio.Writer) error { return nil }

/*************************** mvhd ****************************/

// Mvhd is the ISOBMFF mvhd box.
type Mvhd struct {
	FullBox
	CreationTimeV0     uint32
	ModificationTimeV0 uint32
	Timescale          uint32
	DurationV0         uint32
	Rate               int32 // fixed-point 16.16, template=0x00010000
	Volume             int16 // template=0x0100
	Reserved           int16
	Reserved2          [2]uint32
	Matrix             [9]int32 // template={0x00010000,0,0, 0,0x00010000,0, 0,0,0x40000000}
	PreDefined         [6]int32
	NextTrackID        uint32
}

// Type returns the BoxType.
func (*Mvhd) Type() BoxType { return [4]byte{'m', 'v', 'h', 'd'} }

// Size returns the marshaled size in bytes.
func (b *Mvhd) Size() int { return 100 }

// Marshal box to writer.
func (b *Mvhd) Marshal(w *bitio.Writer) error {
	if err := b.FullBox.MarshalField(w); err != nil {
		return err
	}
	w.TryWriteUint32(b.CreationTimeV0)
	w.TryWriteUint32(b.ModificationTimeV0)
	w.TryWriteUint32(b.Timescale)
	w.TryWriteUint32(b.DurationV0)
	w.TryWriteUint32(uint32(b.Rate))
	w.TryWriteUint16(uint16(b.Volume))
	w.TryWriteUint16(uint16(b.Reserved))
	for _, reserved := range b.Reserved2 {
		w.TryWriteUint32(reserved)
	}
	for _, matrix := range b.Matrix {
		w.TryWriteUint32(uint32(matrix))
	}
	for _, preDefined := range b.PreDefined {
		w.TryWriteUint32(uint32(preDefined))
	}
	w.TryWriteUint32(b.NextTrackID)
	return w.TryError
}

/*********************** SampleEntry *************************/

// SampleEntry is the common prefix of avc1/mp4a sample entries.
type SampleEntry struct {
	Reserved           [6]uint8
	DataReferenceIndex uint16
}

// Marshal entry to writer.
func (b *SampleEntry) Marshal(w *bitio.Writer) error {
	for _, reserved := range b.Reserved {
		w.TryWriteByte(reserved)
	}
	w.TryWriteUint16(b.DataReferenceIndex)
	return w.TryError
}

/*********************** avc1 *************************/

// Avc1 is the ISOBMFF AVC visual sample entry.
type Avc1 struct {
	SampleEntry
	PreDefined      uint16
	Reserved        uint16
	PreDefined2     [3]uint32
	Width           uint16
	Height          uint16
	Horizresolution uint32
	Vertresolution  uint32
	Reserved2       uint32
	FrameCount      uint16
	Compressorname  [32]byte
	Depth           uint16
	PreDefined3     int16
}

// Type returns the BoxType.
func (*Avc1) Type() BoxType { return [4]byte{'a', 'v', 'c', '1'} }

// Size returns the marshaled size in bytes.
func (b *Avc1) Size() int { return 78 }

// Marshal box to writer.
func (b *Avc1) Marshal(w *bitio.Writer) error {
	if err := b.SampleEntry.Marshal(w); err != nil {
		return err
	}
	w.TryWriteUint16(b.PreDefined)
	w.TryWriteUint16(b.Reserved)
	for _, preDefined := range b.PreDefined2 {
		w.TryWriteUint32(preDefined)
	}
	w.TryWriteUint16(b.Width)
	w.TryWriteUint16(b.Height)
	w.TryWriteUint32(b.Horizresolution)
	w.TryWriteUint32(b.Vertresolution)
	w.TryWriteUint32(b.Reserved2)
	w.TryWriteUint16(b.FrameCount)
	w.TryWrite(b.Compressorname[:])
	w.TryWriteUint16(b.Depth)
	w.TryWriteUint16(uint16(b.PreDefined3))
	return w.TryError
}

/*********************** mp4a *************************/

// Mp4a is the ISOBMFF MPEG-4 audio sample entry.
type Mp4a struct {
	SampleEntry
	EntryVersion uint16
	Reserved     [3]uint16
	ChannelCount uint16
	SampleSize   uint16
	PreDefined   uint16
	Reserved2    uint16
	SampleRate   uint32
}

// Type returns the BoxType.
func (*Mp4a) Type() BoxType { return [4]byte{'m', 'p', '4', 'a'} }

// Size returns the marshaled size in bytes.
func (b *Mp4a) Size() int { return 28 }

// Marshal box to writer.
func (b *Mp4a) Marshal(w *bitio.Writer) error {
	if err := b.SampleEntry.Marshal(w); err != nil {
		return err
	}
	w.TryWriteUint16(b.EntryVersion)
	for _, reserved := range b.Reserved {
		w.TryWriteUint16(reserved)
	}
	w.TryWriteUint16(b.ChannelCount)
	w.TryWriteUint16(b.SampleSize)
	w.TryWriteUint16(b.PreDefined)
	w.TryWriteUint16(b.Reserved2)
	w.TryWriteUint32(b.SampleRate)
	return w.TryError
}

/**************** AVCDecoderConfiguration ****************/

// H.264 profile_idc values.
const (
	AVCBaselineProfile uint8 = 66
	AVCMainProfile     uint8 = 77
	AVCHighProfile     uint8 = 100
)

// AVCParameterSet is a length-prefixed SPS or PPS entry of avcC.
type AVCParameterSet struct {
	Length  uint16
	NALUnit []byte
}

// FieldSize returns the marshaled size in bytes.
func (b *AVCParameterSet) FieldSize() int { return len(b.NALUnit) + 2 }

// MarshalField writes the entry to w.
func (b *AVCParameterSet) MarshalField(w *bitio.Writer) error {
	w.TryWriteUint16(b.Length)
	w.TryWrite(b.NALUnit)
	return w.TryError
}

/*************************** avcC ****************************/

// AvcC is the ISOBMFF AVC configuration box.
type AvcC struct {
	ConfigurationVersion      uint8
	Profile                   uint8
	ProfileCompatibility      uint8
	Level                     uint8
	LengthSizeMinusOne        uint8 // 2 bits.
	NumOfSequenceParameterSets uint8 // 5 bits.
	SequenceParameterSets     []AVCParameterSet
	PictureParameterSets      []AVCParameterSet
}

// Type returns the BoxType.
func (*AvcC) Type() BoxType { return [4]byte{'a', 'v', 'c', 'C'} }

// Size returns the marshaled size in bytes.
func (b *AvcC) Size() int {
	total := 7
	for _, set := range b.SequenceParameterSets {
		total += set.FieldSize()
	}
	for _, set := range b.PictureParameterSets {
		total += set.FieldSize()
	}
	return total
}

// Marshal box to writer.
func (b *AvcC) Marshal(w *bitio.Writer) error {
	w.TryWriteByte(b.ConfigurationVersion)
	w.TryWriteByte(b.Profile)
	w.TryWriteByte(b.ProfileCompatibility)
	w.TryWriteByte(b.Level)
	w.TryWriteByte(0xfc | b.LengthSizeMinusOne&0x3)
	w.TryWriteByte(0xe0 | b.NumOfSequenceParameterSets&0x1f)
	for _, set := range b.SequenceParameterSets {
		if err := set.MarshalField(w); err != nil {
			return err
		}
	}
	w.TryWriteByte(uint8(len(b.PictureParameterSets)))
	for _, set := range b.PictureParameterSets {
		if err := set.MarshalField(w); err != nil {
			return err
		}
	}
	return w.TryError
}

/*************************** smhd ****************************/

// Smhd is the ISOBMFF smhd box.
type Smhd struct {
	FullBox
	Balance  int16
	Reserved uint16
}

// Type returns the BoxType.
func (*Smhd) Type() BoxType { return [4]byte{'s', 'm', 'h', 'd'} }

// Size returns the marshaled size in bytes.
func (b *Smhd) Size() int { return 8 }

// Marshal box to writer.
func (b *Smhd) Marshal(w *bitio.Writer) error {
	if err := b.FullBox.MarshalField(w); err != nil {
		return err
	}
	w.TryWriteUint16(uint16(b.Balance))
	w.TryWriteUint16(b.Reserved)
	return w.TryError
}

/*************************** stbl ****************************/

// Stbl is the ISOBMFF stbl box.
type Stbl struct{}

// Type returns the BoxType.
func (*Stbl) Type() BoxType { return [4]byte{'s', 't', 'b', 'l'} }

// Size returns the marshaled size in bytes.
func (*Stbl) Size() int { return 0 }

// Marshal is never called; Stbl has no fields of its own.
func (*Stbl) Marshal(w *bitio.Writer) error { return nil }

/*************************** stco ****************************/

// Stco is the ISOBMFF stco box.
type Stco struct {
	FullBox
	ChunkOffset []uint32
}

// Type returns the BoxType.
func (*Stco) Type() BoxType { return [4]byte{'s', 't', 'c', 'o'} }

// Size returns the marshaled size in bytes.
func (b *Stco) Size() int { return 8 + len(b.ChunkOffset)*4 }

// Marshal box to writer.
func (b *Stco) Marshal(w *bitio.Writer) error {
	if err := b.FullBox.MarshalField(w); err != nil {
		return err
	}
	w.TryWriteUint32(uint32(len(b.ChunkOffset)))
	for _, offset := range b.ChunkOffset {
		w.TryWriteUint32(offset)
	}
	return w.TryError
}

/*************************** stsc ****************************/

// StscEntry is one run of the ISOBMFF stsc box.
type StscEntry struct {
	FirstChunk             uint32
	SamplesPerChunk        uint32
	SampleDescriptionIndex uint32
}

// MarshalField writes the entry to w.
func (b *StscEntry) MarshalField(w *bitio.Writer) error {
	w.TryWriteUint32(b.FirstChunk)
	w.TryWriteUint32(b.SamplesPerChunk)
	w.TryWriteUint32(b.SampleDescriptionIndex)
	return w.TryError
}

// Stsc is the ISOBMFF stsc box.
type Stsc struct {
	FullBox
	Entries []StscEntry
}

// Type returns the BoxType.
func (*Stsc) Type() BoxType { return [4]byte{'s', 't', 's', 'c'} }

// Size returns the marshaled size in bytes.
func (b *Stsc) Size() int { return 8 + len(b.Entries)*12 }

// Marshal box to writer.
func (b *Stsc) Marshal(w *bitio.Writer) error {
	if err := b.FullBox.MarshalField(w); err != nil {
		return err
	}
	if err := w.WriteUint32(uint32(len(b.Entries))); err != nil {
		return err
	}
	for _, entry := range b.Entries {
		if err := entry.MarshalField(w); err != nil {
			return err
		}
	}
	return nil
}

/*************************** stsd ****************************/

// Stsd is the ISOBMFF stsd box.
type Stsd struct {
	FullBox
	EntryCount uint32
}

// Type returns the BoxType.
func (*Stsd) Type() BoxType { return [4]byte{'s', 't', 's', 'd'} }

// Size returns the marshaled size in bytes.
func (b *Stsd) Size() int { return 8 }

// Marshal box to writer.
func (b *Stsd) Marshal(w *bitio.Writer) error {
	if err := b.FullBox.MarshalField(w); err != nil {
		return err
	}
	return w.WriteUint32(b.EntryCount)
}

/*************************** stss ****************************/

// Stss is the ISOBMFF stss box.
type Stss struct {
	FullBox
	SampleNumber []uint32
}

// Type returns the BoxType.
func (*Stss) Type() BoxType { return [4]byte{'s', 't', 's', 's'} }

// Size returns the marshaled size in bytes.
func (b *Stss) Size() int { return 8 + len(b.SampleNumber)*4 }

// Marshal box to writer.
func (b *Stss) Marshal(w *bitio.Writer) error {
	if err := b.FullBox.MarshalField(w); err != nil {
		return err
	}
	if err := w.WriteUint32(uint32(len(b.SampleNumber))); err != nil {
		return err
	}
	for _, number := range b.SampleNumber {
		if err := w.WriteUint32(number); err != nil {
			return err
		}
	}
	return nil
}

/*************************** stsz ****************************/

// Stsz is the ISOBMFF stsz box.
type Stsz struct {
	FullBox
	SampleSize uint32
	EntrySize  []uint32
}

// Type returns the BoxType.
func (*Stsz) Type() BoxType { return [4]byte{'s', 't', 's', 'z'} }

// Size returns the marshaled size in bytes.
func (b *Stsz) Size() int { return 12 + len(b.EntrySize)*4 }

// Marshal box to writer.
func (b *Stsz) Marshal(w *bitio.Writer) error {
	if err := b.FullBox.MarshalField(w); err != nil {
		return err
	}
	w.TryWriteUint32(b.SampleSize)
	w.TryWriteUint32(uint32(len(b.EntrySize)))
	for _, entry := range b.EntrySize {
		w.TryWriteUint32(entry)
	}
	return w.TryError
}

/*************************** stts ****************************/

// SttsEntry is one run of the ISOBMFF stts box.
type SttsEntry struct {
	SampleCount uint32
	SampleDelta uint32
}

// Marshal entry to writer.
func (b *SttsEntry) Marshal(w *bitio.Writer) error {
	w.TryWriteUint32(b.SampleCount)
	w.TryWriteUint32(b.SampleDelta)
	return w.TryError
}

// Stts is the ISOBMFF stts box.
type Stts struct {
	FullBox
	Entries []SttsEntry
}

// Type returns the BoxType.
func (*Stts) Type() BoxType { return [4]byte{'s', 't', 't', 's'} }

// Size returns the marshaled size in bytes.
func (b *Stts) Size() int { return 8 + len(b.Entries)*8 }

// Marshal box to writer.
func (b *Stts) Marshal(w *bitio.Writer) error {
	if err := b.FullBox.MarshalField(w); err != nil {
		return err
	}
	if err := w.WriteUint32(uint32(len(b.Entries))); err != nil {
		return err
	}
	for _, entry := range b.Entries {
		if err := entry.Marshal(w); err != nil {
			return err
		}
	}
	return nil
}

/*************************** tkhd ****************************/

// Tkhd is the ISOBMFF tkhd box.
type Tkhd struct {
	FullBox
	CreationTimeV0     uint32
	ModificationTimeV0 uint32
	TrackID            uint32
	Reserved0          uint32
	DurationV0         uint32
	Reserved1          [2]uint32
	Layer              int16
	AlternateGroup     int16
	Volume             int16
	Reserved2          uint16
	Matrix             [9]int32
	Width              uint32 // fixed-point 16.16
	Height             uint32 // fixed-point 16.16
}

// Type returns the BoxType.
func (*Tkhd) Type() BoxType { return [4]byte{'t', 'k', 'h', 'd'} }

// Size returns the marshaled size in bytes.
func (b *Tkhd) Size() int { return 84 }

// Marshal box to writer.
func (b *Tkhd) Marshal(w *bitio.Writer) error {
	if err := b.FullBox.MarshalField(w); err != nil {
		return err
	}
	w.TryWriteUint32(b.CreationTimeV0)
	w.TryWriteUint32(b.ModificationTimeV0)
	w.TryWriteUint32(b.TrackID)
	w.TryWriteUint32(b.Reserved0)
	w.TryWriteUint32(b.DurationV0)
	for _, reserved := range b.Reserved1 {
		w.TryWriteUint32(reserved)
	}
	w.TryWriteUint16(uint16(b.Layer))
	w.TryWriteUint16(uint16(b.AlternateGroup))
	w.TryWriteUint16(uint16(b.Volume))
	w.TryWriteUint16(b.Reserved2)
	for _, matrix := range b.Matrix {
		w.TryWriteUint32(uint32(matrix))
	}
	w.TryWriteUint32(b.Width)
	w.TryWriteUint32(b.Height)
	return w.TryError
}

/*************************** trak ****************************/

// Trak is the ISOBMFF trak box.
type Trak struct{}

// Type returns the BoxType.
func (*Trak) Type() BoxType { return [4]byte{'t', 'r', 'a', 'k'} }

// Size returns the marshaled size in bytes.
func (*Trak) Size() int { return 0 }

// Marshal is never called; Trak has no fields of its own.
func (*Trak) Marshal(w *bitio.Writer) error { return nil }

/*************************** vmhd ****************************/

// Vmhd is the ISOBMFF vmhd box.
type Vmhd struct {
	FullBox
	Graphicsmode uint16
	Opcolor      [3]uint16
}

// Type returns the BoxType.
func (*Vmhd) Type() BoxType { return [4]byte{'v', 'm', 'h', 'd'} }

// Size returns the marshaled size in bytes.
func (b *Vmhd) Size() int { return 12 }

// Marshal box to writer.
func (b *Vmhd) Marshal(w *bitio.Writer) error {
	if err := b.FullBox.MarshalField(w); err != nil {
		return err
	}
	w.TryWriteUint16(b.Graphicsmode)
	for _, color := range b.Opcolor {
		w.TryWriteUint16(color)
	}
	return w.TryError
}
