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

// Package mp4 implements the subset of ISO-BMFF box marshaling needed to
// synthesize a moov box: no fragmented-MP4 boxes, no edit lists.
package mp4

import "mp4recorder/pkg/mp4/bitio"

// BoxType is a 4-byte mpeg box type tag.
type BoxType [4]byte

// ImmutableBoxes is a slice of ImmutableBox.
type ImmutableBoxes []ImmutableBox

// ImmutableBox is the common interface of a leaf box.
type ImmutableBox interface {
	// Type returns the BoxType.
	Type() BoxType

	// Size returns the marshaled size in bytes, not including the
	// 8-byte box header. Must be known before marshaling since the
	// box header carries the size.
	Size() int

	// Marshal box to writer.
	Marshal(w *bitio.Writer) error
}

// Boxes is a box together with its children, marshaled as a unit.
type Boxes struct {
	Box      ImmutableBox
	Children []Boxes
}

// Size returns the total size of the box including its header and children.
func (b *Boxes) Size() int {
	total := b.Box.Size() + 8
	for _, child := range b.Children {
		total += child.Size()
	}
	return total
}

// Marshal the box and its children to w.
func (b *Boxes) Marshal(w *bitio.Writer) error {
	if err := writeBox(w, b.Size(), b.Box); err != nil {
		return err
	}
	for _, child := range b.Children {
		if err := child.Marshal(w); err != nil {
			return err
		}
	}
	return nil
}

func writeBoxInfo(w *bitio.Writer, size uint32, typ BoxType) error {
	w.TryWriteUint32(size)
	w.TryWrite(typ[:])
	return w.TryError
}

// writeBox writes a box header followed by its body, shared by
// Boxes.Marshal and WriteSingleBox so the empty-box special case
// (a box whose size is exactly the 8-byte header) lives in one place.
func writeBox(w *bitio.Writer, size int, b ImmutableBox) error {
	if err := writeBoxInfo(w, uint32(size), b.Type()); err != nil {
		return err
	}
	if size == 8 {
		return nil
	}
	return b.Marshal(w)
}

// WriteSingleBox writes a single leaf box (header + body) and returns
// the number of bytes written.
func WriteSingleBox(w *bitio.Writer, b ImmutableBox) (int, error) {
	size := 8 + b.Size()
	if err := writeBox(w, size, b); err != nil {
		return 0, err
	}
	return size, nil
}

// Marshal writes every box in boxes in order.
func (boxes ImmutableBoxes) Marshal(w *bitio.Writer) error {
	for _, b := range boxes {
		if _, err := WriteSingleBox(w, b); err != nil {
			return err
		}
	}
	return nil
}

// Size returns the combined size of boxes, headers included.
func (boxes ImmutableBoxes) Size() int {
	var n int
	for _, b := range boxes {
		n += 8 + b.Size()
	}
	return n
}
