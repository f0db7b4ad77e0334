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

// Package nal scans H.264 Annex-B and AVCC bitstreams for NAL units,
// used by the recovery driver to re-derive SPS/PPS when a session was
// interrupted before setVideoCodecConfig was ever called.
package nal

import (
	"encoding/binary"
	"errors"
)

// H.264 NAL unit types relevant to parameter-set recovery.
const (
	TypeSPS = 7
	TypePPS = 8
)

// MaxUnitSize caps a single scanned NAL unit, matching the ceiling a
// 250 Mbps H.264 stream can realistically produce in one unit.
const MaxUnitSize = 3 * 1024 * 1024

// ErrTruncated is returned when a bitstream ends mid NAL unit.
var ErrTruncated = errors.New("nal: truncated bitstream")

// Type returns the nal_unit_type of a start-code-stripped NAL unit.
func Type(nalu []byte) uint8 {
	if len(nalu) == 0 {
		return 0
	}
	return nalu[0] & 0x1f
}

// ScanAVCC splits a 4-byte-length-prefixed (AVCC) bitstream into NAL
// units. This is the format samples are stored in per this recorder's
// avcC configuration (length_size_minus_one = 3).
func ScanAVCC(buf []byte) ([][]byte, error) {
	var units [][]byte
	pos := 0
	for pos < len(buf) {
		if len(buf)-pos < 4 {
			return nil, ErrTruncated
		}
		size := int(binary.BigEndian.Uint32(buf[pos:]))
		pos += 4
		if size < 0 || size > MaxUnitSize || len(buf)-pos < size {
			return nil, ErrTruncated
		}
		units = append(units, buf[pos:pos+size])
		pos += size
	}
	return units, nil
}

// ScanAnnexB splits a start-code-delimited (Annex-B) bitstream into
// NAL units, tolerating both 3- and 4-byte start codes.
func ScanAnnexB(buf []byte) [][]byte {
	starts := findStartCodes(buf)
	if len(starts) == 0 {
		return nil
	}

	var units [][]byte
	for i, start := range starts {
		end := len(buf)
		if i+1 < len(starts) {
			end = starts[i+1].codeStart
		}
		unit := buf[start.naluStart:end]
		if len(unit) > 0 {
			units = append(units, unit)
		}
	}
	return units
}

type startCode struct {
	codeStart int
	naluStart int
}

func findStartCodes(buf []byte) []startCode {
	var codes []startCode
	for i := 0; i+2 < len(buf); i++ {
		if buf[i] != 0 || buf[i+1] != 0 {
			continue
		}
		if buf[i+2] == 1 {
			codes = append(codes, startCode{codeStart: i, naluStart: i + 3})
			i += 2
		} else if i+3 < len(buf) && buf[i+2] == 0 && buf[i+3] == 1 {
			codes = append(codes, startCode{codeStart: i, naluStart: i + 4})
			i += 3
		}
	}
	return codes
}

// ExtractParameterSets scans buf (either Annex-B or AVCC) for the
// first SPS and PPS NAL units. A 3- or 4-byte start code at the start
// of buf is checked for first and, if found, buf is treated as
// Annex-B; only when there is none is it parsed as AVCC. This order matters: Annex-B bytes fed into the AVCC
// scanner aren't guaranteed to trip ErrTruncated, since a leading
// 00 00 00 01 parses as a valid 1-byte unit and the scan can continue
// misreading payload bytes as further length fields. Either return
// may be nil if not present. Used by recovery when no SPS/PPS were
// supplied before a crash.
func ExtractParameterSets(buf []byte) (sps, pps []byte) {
	var units [][]byte
	leading3 := len(buf) >= 3 && buf[0] == 0 && buf[1] == 0 && buf[2] == 1
	leading4 := len(buf) >= 4 && buf[0] == 0 && buf[1] == 0 && buf[2] == 0 && buf[3] == 1
	if leading3 || leading4 {
		units = ScanAnnexB(buf)
	} else if avccUnits, err := ScanAVCC(buf); err == nil {
		units = avccUnits
	}

	for _, u := range units {
		switch Type(u) {
		case TypeSPS:
			if sps == nil {
				sps = append([]byte(nil), u...)
			}
		case TypePPS:
			if pps == nil {
				pps = append([]byte(nil), u...)
			}
		}
		if sps != nil && pps != nil {
			return sps, pps
		}
	}
	return sps, pps
}
