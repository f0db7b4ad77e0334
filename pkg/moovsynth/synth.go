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

// Package moovsynth builds a byte-exact ISO-BMFF moov box from a
// journal's frame records. It performs no I/O: callers append the
// returned bytes to an mdat-terminated MP4 file.
package moovsynth

import (
	"bytes"
	"errors"
	"fmt"

	"mp4recorder/pkg/aacconfig"
	"mp4recorder/pkg/journal"
	"mp4recorder/pkg/mp4"
	"mp4recorder/pkg/mp4/bitio"
)

// Track ids used in tkhd; audioTrackID is also the esds ES_ID.
const (
	videoTrackID = 1
	audioTrackID = 2
)

// defaultAudioBitrate is reported in esds when there are too few
// audio records to derive a real bit rate from sample sizes.
const defaultAudioBitrate = 128_000

// ErrOffsetOverflow is returned when a chunk offset would exceed the
// 32-bit stco field.
var ErrOffsetOverflow = errors.New("moovsynth: sample offset exceeds 32 bits")

// ErrNoFrames is returned when both record lists are empty.
var ErrNoFrames = errors.New("moovsynth: no frames to synthesize")

// Params describes the inputs needed to synthesize a moov box.
type Params struct {
	MdatPayloadStart uint32

	VideoTimescale uint32
	VideoWidth     uint32
	VideoHeight    uint32
	VideoSPS       []byte
	VideoPPS       []byte
	VideoRecords   []journal.Record

	AudioTimescale  uint32
	AudioSampleRate uint32
	AudioChannels   uint16
	AudioRecords    []journal.Record
}

// Synthesize builds and marshals the moov box described by p.
func Synthesize(p Params) ([]byte, error) {
	if len(p.VideoRecords) == 0 && len(p.AudioRecords) == 0 {
		return nil, ErrNoFrames
	}

	videoStco, err := chunkOffsets(p.VideoRecords, p.MdatPayloadStart)
	if err != nil {
		return nil, fmt.Errorf("video: %w", err)
	}
	audioStco, err := chunkOffsets(p.AudioRecords, p.MdatPayloadStart)
	if err != nil {
		return nil, fmt.Errorf("audio: %w", err)
	}

	var videoDurationMs, audioDurationMs uint32
	if len(p.VideoRecords) > 0 {
		last := p.VideoRecords[len(p.VideoRecords)-1]
		videoDurationMs = ptsToMillis(last.PTS, p.VideoTimescale)
	}
	if len(p.AudioRecords) > 0 {
		last := p.AudioRecords[len(p.AudioRecords)-1]
		audioDurationMs = ptsToMillis(last.PTS, p.AudioTimescale)
	}
	movieDurationMs := videoDurationMs
	if audioDurationMs > movieDurationMs {
		movieDurationMs = audioDurationMs
	}

	nextTrackID := uint32(videoTrackID + 1)
	children := []mp4.Boxes{
		{Box: &mp4.Mvhd{
			Timescale:   1000,
			DurationV0:  movieDurationMs,
			Rate:        0x00010000,
			Volume:      0x0100,
			Matrix:      identityMatrix,
			NextTrackID: nextTrackID,
		}},
	}

	if len(p.VideoRecords) > 0 {
		children = append(children, videoTrak(p, videoStco, videoDurationMs))
		nextTrackID++
	}
	if len(p.AudioRecords) > 0 {
		children = append(children, audioTrak(p, audioStco, audioDurationMs))
	}

	moov := mp4.Boxes{Box: &mp4.Moov{}, Children: children}

	var buf bytes.Buffer
	w := bitio.NewWriter(bitio.NewByteWriter(&buf))
	if err := moov.Marshal(w); err != nil {
		return nil, fmt.Errorf("moovsynth: marshal: %w", err)
	}
	return buf.Bytes(), nil
}

func ptsToMillis(pts int64, timescale uint32) uint32 {
	if timescale == 0 {
		return 0
	}
	return uint32(pts * 1000 / int64(timescale))
}

func chunkOffsets(records []journal.Record, mdatPayloadStart uint32) ([]uint32, error) {
	offsets := make([]uint32, len(records))
	for i, rec := range records {
		abs := uint64(mdatPayloadStart) + rec.Offset
		if abs > 0xFFFFFFFF {
			return nil, ErrOffsetOverflow
		}
		offsets[i] = uint32(abs)
	}
	return offsets, nil
}

var identityMatrix = [9]int32{0x00010000, 0, 0, 0, 0x00010000, 0, 0, 0, 0x40000000}

// sttsEntries run-length-encodes per-sample durations derived from
// successive PTS deltas. lastDuration is used for the final sample,
// which has no successor to derive a delta from.
func sttsEntries(records []journal.Record, lastDuration uint32) []mp4.SttsEntry {
	var entries []mp4.SttsEntry
	for i, rec := range records {
		var delta uint32
		if i == len(records)-1 {
			delta = lastDuration
		} else {
			delta = uint32(records[i+1].PTS - rec.PTS)
		}
		if len(entries) > 0 && entries[len(entries)-1].SampleDelta == delta {
			entries[len(entries)-1].SampleCount++
		} else {
			entries = append(entries, mp4.SttsEntry{SampleCount: 1, SampleDelta: delta})
		}
	}
	return entries
}

func sampleSizes(records []journal.Record) []uint32 {
	sizes := make([]uint32, len(records))
	for i, rec := range records {
		sizes[i] = rec.Size
	}
	return sizes
}

func syncSamples(records []journal.Record) []uint32 {
	var indices []uint32
	for i, rec := range records {
		if rec.IsKeyframe {
			indices = append(indices, uint32(i+1))
		}
	}
	return indices
}

func singleSampleStsc(count int) []mp4.StscEntry {
	if count == 0 {
		return nil
	}
	return []mp4.StscEntry{{FirstChunk: 1, SamplesPerChunk: 1, SampleDescriptionIndex: 1}}
}

func videoTrak(p Params, stco []uint32, durationMs uint32) mp4.Boxes {
	lastDuration := p.VideoTimescale / 30
	if lastDuration == 0 {
		lastDuration = 1
	}
	if n := len(p.VideoRecords); n >= 2 {
		lastDuration = uint32(p.VideoRecords[n-1].PTS - p.VideoRecords[n-2].PTS)
	}

	mdhdDuration := uint32(0)
	if len(p.VideoRecords) > 0 {
		mdhdDuration = uint32(p.VideoRecords[len(p.VideoRecords)-1].PTS)
	}

	return mp4.Boxes{
		Box: &mp4.Trak{},
		Children: []mp4.Boxes{
			{Box: &mp4.Tkhd{
				FullBox:    mp4.FullBox{Flags: [3]byte{0, 0, 0x0f}},
				TrackID:    videoTrackID,
				DurationV0: durationMs,
				Matrix:     identityMatrix,
				Width:      p.VideoWidth << 16,
				Height:     p.VideoHeight << 16,
			}},
			{
				Box: &mp4.Mdia{},
				Children: []mp4.Boxes{
					{Box: &mp4.Mdhd{
						Timescale:  p.VideoTimescale,
						Language:   [3]byte{'u', 'n', 'd'},
						DurationV0: mdhdDuration,
					}},
					{Box: &mp4.Hdlr{
						HandlerType: [4]byte{'v', 'i', 'd', 'e'},
						Name:        "VideoHandler",
					}},
					videoMinf(p, stco, lastDuration),
				},
			},
		},
	}
}

func videoMinf(p Params, stco []uint32, lastDuration uint32) mp4.Boxes {
	stbl := mp4.Boxes{
		Box: &mp4.Stbl{},
		Children: []mp4.Boxes{
			videoStsd(p),
			{Box: &mp4.Stts{Entries: sttsEntries(p.VideoRecords, lastDuration)}},
			{Box: &mp4.Stss{SampleNumber: syncSamples(p.VideoRecords)}},
			{Box: &mp4.Stsc{Entries: singleSampleStsc(len(p.VideoRecords))}},
			{Box: &mp4.Stsz{EntrySize: sampleSizes(p.VideoRecords)}},
			{Box: &mp4.Stco{ChunkOffset: stco}},
		},
	}

	return mp4.Boxes{
		Box: &mp4.Minf{},
		Children: []mp4.Boxes{
			{Box: &mp4.Vmhd{}},
			{
				Box: &mp4.Dinf{},
				Children: []mp4.Boxes{
					{
						Box: &mp4.Dref{EntryCount: 1},
						Children: []mp4.Boxes{
							{Box: &mp4.Url{FullBox: mp4.FullBox{Flags: [3]byte{0, 0, 1}}}},
						},
					},
				},
			},
			stbl,
		},
	}
}

func videoStsd(p Params) mp4.Boxes {
	avcC := avccBox(p.VideoSPS, p.VideoPPS)

	return mp4.Boxes{
		Box: &mp4.Stsd{EntryCount: 1},
		Children: []mp4.Boxes{
			{
				Box: &mp4.Avc1{
					SampleEntry:     mp4.SampleEntry{DataReferenceIndex: 1},
					Width:           uint16(p.VideoWidth),
					Height:          uint16(p.VideoHeight),
					Horizresolution: 0x00480000,
					Vertresolution:  0x00480000,
					FrameCount:      1,
					Depth:           0x0018,
					PreDefined3:     -1,
				},
				Children: []mp4.Boxes{{Box: avcC}},
			},
		},
	}
}

func avccBox(sps, pps []byte) *mp4.AvcC {
	profile, compat, level := uint8(0x42), uint8(0x00), uint8(0x1f)
	if len(sps) >= 4 {
		profile, compat, level = sps[1], sps[2], sps[3]
	}

	box := &mp4.AvcC{
		ConfigurationVersion: 1,
		Profile:              profile,
		ProfileCompatibility: compat,
		Level:                level,
		LengthSizeMinusOne:   3,
	}
	if len(sps) > 0 {
		box.SequenceParameterSets = []mp4.AVCParameterSet{{Length: uint16(len(sps)), NALUnit: sps}}
		box.NumOfSequenceParameterSets = 1
	}
	if len(pps) > 0 {
		box.PictureParameterSets = []mp4.AVCParameterSet{{Length: uint16(len(pps)), NALUnit: pps}}
	}
	return box
}

func audioTrak(p Params, stco []uint32, durationMs uint32) mp4.Boxes {
	const aacGranuleDuration = 1024
	mdhdDuration := uint32(0)
	if len(p.AudioRecords) > 0 {
		mdhdDuration = uint32(p.AudioRecords[len(p.AudioRecords)-1].PTS)
	}

	return mp4.Boxes{
		Box: &mp4.Trak{},
		Children: []mp4.Boxes{
			{Box: &mp4.Tkhd{
				FullBox:    mp4.FullBox{Flags: [3]byte{0, 0, 0x0f}},
				TrackID:    audioTrackID,
				DurationV0: durationMs,
				Volume:     0x0100,
				Matrix:     identityMatrix,
			}},
			{
				Box: &mp4.Mdia{},
				Children: []mp4.Boxes{
					{Box: &mp4.Mdhd{
						Timescale:  p.AudioTimescale,
						Language:   [3]byte{'u', 'n', 'd'},
						DurationV0: mdhdDuration,
					}},
					{Box: &mp4.Hdlr{
						HandlerType: [4]byte{'s', 'o', 'u', 'n'},
						Name:        "SoundHandler",
					}},
					audioMinf(p, stco, aacGranuleDuration),
				},
			},
		},
	}
}

func audioMinf(p Params, stco []uint32, lastDuration uint32) mp4.Boxes {
	stbl := mp4.Boxes{
		Box: &mp4.Stbl{},
		Children: []mp4.Boxes{
			audioStsd(p),
			{Box: &mp4.Stts{Entries: sttsEntries(p.AudioRecords, lastDuration)}},
			{Box: &mp4.Stsc{Entries: singleSampleStsc(len(p.AudioRecords))}},
			{Box: &mp4.Stsz{EntrySize: sampleSizes(p.AudioRecords)}},
			{Box: &mp4.Stco{ChunkOffset: stco}},
		},
	}

	return mp4.Boxes{
		Box: &mp4.Minf{},
		Children: []mp4.Boxes{
			{Box: &mp4.Smhd{}},
			{
				Box: &mp4.Dinf{},
				Children: []mp4.Boxes{
					{
						Box: &mp4.Dref{EntryCount: 1},
						Children: []mp4.Boxes{
							{Box: &mp4.Url{FullBox: mp4.FullBox{Flags: [3]byte{0, 0, 1}}}},
						},
					},
				},
			},
			stbl,
		},
	}
}

func audioStsd(p Params) mp4.Boxes {
	asc, err := aacconfig.BuildASC(int(p.AudioSampleRate), int(p.AudioChannels))
	if err != nil {
		// A channel count outside the LC table leaves asc empty and the
		// esds is written without AudioSpecificConfig bytes. Neither this
		// function nor the Recorder logs a warning for it.
		asc = nil
	}

	bitrate := audioBitrate(p.AudioRecords, p.AudioTimescale)

	return mp4.Boxes{
		Box: &mp4.Stsd{EntryCount: 1},
		Children: []mp4.Boxes{
			{
				Box: &mp4.Mp4a{
					SampleEntry:  mp4.SampleEntry{DataReferenceIndex: 1},
					ChannelCount: p.AudioChannels,
					SampleSize:   16,
					SampleRate:   p.AudioSampleRate << 16,
				},
				Children: []mp4.Boxes{
					{Box: &mp4.Esds{
						ESID:       audioTrackID,
						MaxBitrate: bitrate,
						AvgBitrate: bitrate,
						Config:     asc,
					}},
				},
			},
		},
	}
}

// audioBitrate estimates the track's encoded bit rate in bits per
// second from the total bytes recorded over the span they cover. It
// falls back to defaultAudioBitrate when there are fewer than two
// records or the timescale is unset, since a span needs at least two
// timestamps and a tick rate to convert into seconds.
func audioBitrate(records []journal.Record, timescale uint32) uint32 {
	if len(records) < 2 || timescale == 0 {
		return defaultAudioBitrate
	}

	var totalBytes uint64
	for _, r := range records {
		totalBytes += uint64(r.Size)
	}

	spanTicks := records[len(records)-1].PTS - records[0].PTS
	if spanTicks <= 0 {
		return defaultAudioBitrate
	}

	spanSeconds := float64(spanTicks) / float64(timescale)
	bitsPerSecond := (float64(totalBytes) * 8) / spanSeconds
	if bitsPerSecond <= 0 || bitsPerSecond > float64(^uint32(0)) {
		return defaultAudioBitrate
	}
	return uint32(bitsPerSecond)
}
