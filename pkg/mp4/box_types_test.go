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

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"mp4recorder/pkg/mp4/bitio"
)

func TestBoxTypes(t *testing.T) {
	testCases := []struct {
		name string
		src  ImmutableBox
		bin  []byte
	}{
		{
			name: "dref",
			src:  &Dref{EntryCount: 1},
			bin: []byte{
				0,                // version
				0x00, 0x00, 0x00, // flags
				0x00, 0x00, 0x00, 0x01, // entry count
			},
		},
		{
			name: "url: self-contained",
			src:  &Url{FullBox: FullBox{Flags: [3]byte{0x00, 0x00, 0x01}}},
			bin: []byte{
				0,                // version
				0x00, 0x00, 0x01, // flags (self-contained, no location string)
			},
		},
		{
			name: "url: with location",
			src:  &Url{Location: "movie.mp4"},
			bin: []byte{
				0,                // version
				0x00, 0x00, 0x00, // flags
				'm', 'o', 'v', 'i', 'e', '.', 'm', 'p', '4', 0x00, // location
			},
		},
		{
			name: "hdlr",
			src: &Hdlr{
				HandlerType: [4]byte{'s', 'o', 'u', 'n'},
				Name:        "SoundHandler",
			},
			bin: []byte{
				0,                // version
				0x00, 0x00, 0x00, // flags
				0x00, 0x00, 0x00, 0x00, // pre-defined
				's', 'o', 'u', 'n', // handler type
				0x00, 0x00, 0x00, 0x00,
				0x00, 0x00, 0x00, 0x00,
				0x00, 0x00, 0x00, 0x00, // reserved
				'S', 'o', 'u', 'n', 'd', 'H', 'a', 'n', 'd', 'l', 'e', 'r', 0x00, // name
			},
		},
		{
			name: "mdhd",
			src: &Mdhd{
				Timescale:  30000,
				DurationV0: 5000,
				Language:   [3]byte{'u', 'n', 'd'},
			},
			bin: []byte{
				0,                // version
				0x00, 0x00, 0x00, // flags
				0x00, 0x00, 0x00, 0x00, // creation time
				0x00, 0x00, 0x00, 0x00, // modification time
				0x00, 0x00, 0x75, 0x30, // timescale
				0x00, 0x00, 0x13, 0x88, // duration
				0x55,       // packed language byte 1
				0xc4,       // packed language byte 2
				0x00, 0x00, // pre-defined
			},
		},
		{
			name: "mvhd",
			src: &Mvhd{
				Timescale:   1000,
				DurationV0:  0x33333333,
				Rate:        0x00010000,
				Volume:      0x0100,
				Matrix:      [9]int32{0x00010000, 0, 0, 0, 0x00010000, 0, 0, 0, 0x40000000},
				NextTrackID: 3,
			},
			bin: []byte{
				0,                // version
				0x00, 0x00, 0x00, // flags
				0x00, 0x00, 0x00, 0x00, // creation time
				0x00, 0x00, 0x00, 0x00, // modification time
				0x00, 0x00, 0x03, 0xe8, // timescale
				0x33, 0x33, 0x33, 0x33, // duration
				0x00, 0x01, 0x00, 0x00, // rate
				0x01, 0x00, // volume
				0x00, 0x00, // reserved
				0x00, 0x00, 0x00, 0x00,
				0x00, 0x00, 0x00, 0x00, // reserved2
				0x00, 0x01, 0x00, 0x00,
				0x00, 0x00, 0x00, 0x00,
				0x00, 0x00, 0x00, 0x00,
				0x00, 0x00, 0x00, 0x00,
				0x00, 0x01, 0x00, 0x00,
				0x00, 0x00, 0x00, 0x00,
				0x00, 0x00, 0x00, 0x00,
				0x00, 0x00, 0x00, 0x00,
				0x40, 0x00, 0x00, 0x00, // matrix
				0x00, 0x00, 0x00, 0x00,
				0x00, 0x00, 0x00, 0x00,
				0x00, 0x00, 0x00, 0x00,
				0x00, 0x00, 0x00, 0x00,
				0x00, 0x00, 0x00, 0x00,
				0x00, 0x00, 0x00, 0x00, // pre-defined (6 reserved fields)
				0x00, 0x00, 0x00, 0x03, // next track id
			},
		},
		{
			name: "tkhd",
			src: &Tkhd{
				FullBox:    FullBox{Flags: [3]byte{0x00, 0x00, 0x0f}},
				TrackID:    1,
				DurationV0: 5000,
				Matrix:     [9]int32{0x00010000, 0, 0, 0, 0x00010000, 0, 0, 0, 0x40000000},
				Width:      640 << 16,
				Height:     480 << 16,
			},
			bin: []byte{
				0,                // version
				0x00, 0x00, 0x0f, // flags
				0x00, 0x00, 0x00, 0x00, // creation time
				0x00, 0x00, 0x00, 0x00, // modification time
				0x00, 0x00, 0x00, 0x01, // track id
				0x00, 0x00, 0x00, 0x00, // reserved0
				0x00, 0x00, 0x13, 0x88, // duration
				0x00, 0x00, 0x00, 0x00,
				0x00, 0x00, 0x00, 0x00, // reserved1
				0x00, 0x00, // layer
				0x00, 0x00, // alternate group
				0x00, 0x00, // volume
				0x00, 0x00, // reserved2
				0x00, 0x01, 0x00, 0x00,
				0x00, 0x00, 0x00, 0x00,
				0x00, 0x00, 0x00, 0x00,
				0x00, 0x00, 0x00, 0x00,
				0x00, 0x01, 0x00, 0x00,
				0x00, 0x00, 0x00, 0x00,
				0x00, 0x00, 0x00, 0x00,
				0x00, 0x00, 0x00, 0x00,
				0x40, 0x00, 0x00, 0x00, // matrix
				0x02, 0x80, 0x00, 0x00, // width
				0x01, 0xe0, 0x00, 0x00, // height
			},
		},
		{
			name: "vmhd",
			src:  &Vmhd{},
			bin: []byte{
				0,                // version
				0x00, 0x00, 0x00, // flags
				0x00, 0x00, // graphics mode
				0x00, 0x00, 0x00, 0x00, 0x00, 0x00, // opcolor
			},
		},
		{
			name: "smhd",
			src:  &Smhd{},
			bin: []byte{
				0,                // version
				0x00, 0x00, 0x00, // flags
				0x00, 0x00, // balance
				0x00, 0x00, // reserved
			},
		},
		{
			name: "stsd",
			src:  &Stsd{EntryCount: 1},
			bin: []byte{
				0,                // version
				0x00, 0x00, 0x00, // flags
				0x00, 0x00, 0x00, 0x01, // entry count
			},
		},
		{
			name: "stts",
			src: &Stts{
				Entries: []SttsEntry{
					{SampleCount: 2, SampleDelta: 33},
					{SampleCount: 1, SampleDelta: 34},
				},
			},
			bin: []byte{
				0,                // version
				0x00, 0x00, 0x00, // flags
				0x00, 0x00, 0x00, 0x02, // entry count
				0x00, 0x00, 0x00, 0x02, 0x00, 0x00, 0x00, 0x21, // entry 1
				0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x22, // entry 2
			},
		},
		{
			name: "stss",
			src:  &Stss{SampleNumber: []uint32{1, 4}},
			bin: []byte{
				0,                // version
				0x00, 0x00, 0x00, // flags
				0x00, 0x00, 0x00, 0x02, // entry count
				0x00, 0x00, 0x00, 0x01, // sample 1
				0x00, 0x00, 0x00, 0x04, // sample 4
			},
		},
		{
			name: "stsc",
			src: &Stsc{
				Entries: []StscEntry{
					{FirstChunk: 1, SamplesPerChunk: 1, SampleDescriptionIndex: 1},
				},
			},
			bin: []byte{
				0,                // version
				0x00, 0x00, 0x00, // flags
				0x00, 0x00, 0x00, 0x01, // entry count
				0x00, 0x00, 0x00, 0x01, // first chunk
				0x00, 0x00, 0x00, 0x01, // samples per chunk
				0x00, 0x00, 0x00, 0x01, // sample description index
			},
		},
		{
			name: "stsz",
			src:  &Stsz{EntrySize: []uint32{100, 200, 50}},
			bin: []byte{
				0,                // version
				0x00, 0x00, 0x00, // flags
				0x00, 0x00, 0x00, 0x00, // sample size
				0x00, 0x00, 0x00, 0x03, // entry count
				0x00, 0x00, 0x00, 0x64,
				0x00, 0x00, 0x00, 0xc8,
				0x00, 0x00, 0x00, 0x32, // entry sizes
			},
		},
		{
			name: "stco",
			src:  &Stco{ChunkOffset: []uint32{1024, 2048}},
			bin: []byte{
				0,                // version
				0x00, 0x00, 0x00, // flags
				0x00, 0x00, 0x00, 0x02, // entry count
				0x00, 0x00, 0x04, 0x00,
				0x00, 0x00, 0x08, 0x00, // chunk offsets
			},
		},
		{
			name: "avcC",
			src: &AvcC{
				ConfigurationVersion:       1,
				Profile:                    0x42,
				ProfileCompatibility:       0x00,
				Level:                      0x1e,
				LengthSizeMinusOne:         3,
				NumOfSequenceParameterSets: 1,
				SequenceParameterSets:      []AVCParameterSet{{Length: 2, NALUnit: []byte{0xaa, 0xbb}}},
				PictureParameterSets:       []AVCParameterSet{{Length: 3, NALUnit: []byte{0xcc, 0xdd, 0xee}}},
			},
			bin: []byte{
				0x01,       // configuration version
				0x42,       // profile
				0x00,       // profile compatibility
				0x1e,       // level
				0xff,       // reserved(6) | length size minus one(2)
				0xe1,       // reserved(3) | num of sps(5)
				0x00, 0x02, // sps length
				0xaa, 0xbb, // sps
				0x01,       // num of pps
				0x00, 0x03, // pps length
				0xcc, 0xdd, 0xee, // pps
			},
		},
		{
			name: "mp4a",
			src: &Mp4a{
				SampleEntry:  SampleEntry{DataReferenceIndex: 1},
				ChannelCount: 2,
				SampleSize:   16,
				SampleRate:   48000 << 16,
			},
			bin: []byte{
				0x00, 0x00, 0x00, 0x00, 0x00, 0x00, // reserved
				0x00, 0x01, // data reference index
				0x00, 0x00, // entry version
				0x00, 0x00, 0x00, 0x00, 0x00, 0x00, // reserved
				0x00, 0x02, // channel count
				0x00, 0x10, // sample size
				0x00, 0x00, // pre-defined
				0x00, 0x00, // reserved2
				0xbb, 0x80, 0x00, 0x00, // sample rate
			},
		},
		{
			name: "avc1",
			src: &Avc1{
				SampleEntry:     SampleEntry{DataReferenceIndex: 1},
				Width:           640,
				Height:          480,
				Horizresolution: 0x00480000,
				Vertresolution:  0x00480000,
				FrameCount:      1,
				Depth:           0x0018,
				PreDefined3:     -1,
			},
			bin: []byte{
				0x00, 0x00, 0x00, 0x00, 0x00, 0x00, // reserved
				0x00, 0x01, // data reference index
				0x00, 0x00, // pre-defined
				0x00, 0x00, // reserved
				0x00, 0x00, 0x00, 0x00,
				0x00, 0x00, 0x00, 0x00,
				0x00, 0x00, 0x00, 0x00, // pre-defined2
				0x02, 0x80, // width
				0x01, 0xe0, // height
				0x00, 0x48, 0x00, 0x00, // horizresolution
				0x00, 0x48, 0x00, 0x00, // vertresolution
				0x00, 0x00, 0x00, 0x00, // reserved2
				0x00, 0x01, // frame count
				0x00, 0x00, 0x00, 0x00,
				0x00, 0x00, 0x00, 0x00,
				0x00, 0x00, 0x00, 0x00,
				0x00, 0x00, 0x00, 0x00,
				0x00, 0x00, 0x00, 0x00,
				0x00, 0x00, 0x00, 0x00,
				0x00, 0x00, 0x00, 0x00,
				0x00, 0x00, 0x00, 0x00, // compressorname
				0x00, 0x18, // depth
				0xff, 0xff, // pre-defined3
			},
		},
		{
			name: "esds",
			src: &Esds{
				ESID:       2,
				MaxBitrate: 128000,
				AvgBitrate: 128000,
				Config:     []byte{0x12, 0x34},
			},
			bin: []byte{
				0,                // version
				0x00, 0x00, 0x00, // flags
				0x03,       // ES descriptor tag
				0x80, 0x80, 0x80,
				0x22,       // size: 32 + config length
				0x00, 0x02, // ES_ID
				0x00, // flags
				0x04, // decoder config descriptor tag
				0x80, 0x80, 0x80,
				0x14, // size: 18 + config length
				0x40, // object type (MPEG-4 Audio)
				0x15, // stream type and upstream
				0x00, 0x00, 0x00, // buffer size DB
				0x00, 0x01, 0xf4, 0x00, // max bitrate
				0x00, 0x01, 0xf4, 0x00, // average bitrate
				0x05, // decoder specific info tag
				0x80, 0x80, 0x80,
				0x02,       // size: config length
				0x12, 0x34, // config
				0x06, // SL config descriptor tag
				0x80, 0x80, 0x80,
				0x01, // size
				0x02, // flags
			},
		},
		{
			name: "mdia: empty box has no body",
			src:  &Mdia{},
			bin:  []byte{},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			buf := bytes.NewBuffer(make([]byte, 0, tc.src.Size()))
			w := bitio.NewWriter(buf)
			require.NoError(t, tc.src.Marshal(w))

			require.Equal(t, tc.src.Size(), buf.Len())
			require.Equal(t, tc.bin, buf.Bytes())
		})
	}
}
