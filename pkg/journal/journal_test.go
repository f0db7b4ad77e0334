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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func testHeader() Header {
	return Header{
		VideoTimescale:  30000,
		AudioTimescale:  48000,
		AudioSampleRate: 48000,
		AudioChannels:   2,
		FlushIntervalMs: 500,
		FlushFrameCount: 1000,
		VideoWidth:      640,
		VideoHeight:     480,
	}
}

func TestRecordRoundTrip(t *testing.T) {
	rec := Record{
		Offset:     1024,
		Size:       4096,
		PTS:        90000,
		DTS:        90000,
		IsKeyframe: true,
		TrackID:    TrackVideo,
	}

	buf := rec.Marshal()
	require.Len(t, buf, RecordSize)

	var got Record
	got.Unmarshal(buf[:])
	require.Equal(t, rec, got)
}

func TestWriteAndReadAll(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.idx")

	w, err := Create(path, testHeader())
	require.NoError(t, err)

	frames := []Record{
		{Offset: 0, Size: 100, PTS: 0, DTS: 0, IsKeyframe: true, TrackID: TrackVideo},
		{Offset: 100, Size: 50, PTS: 0, DTS: 0, IsKeyframe: true, TrackID: TrackAudio},
		{Offset: 150, Size: 100, PTS: 1000, DTS: 1000, IsKeyframe: false, TrackID: TrackVideo},
	}
	for _, f := range frames {
		require.NoError(t, w.Append(f))
	}
	require.Equal(t, uint64(3), w.FrameCount())
	require.NoError(t, w.Sync())
	require.NoError(t, w.Close())

	require.True(t, Exists(path))

	header, video, audio, err := ReadAll(path)
	require.NoError(t, err)
	require.Equal(t, testHeader(), header)
	require.Equal(t, []Record{frames[0], frames[2]}, video)
	require.Equal(t, []Record{frames[1]}, audio)
}

func TestReadAllBadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.idx")
	require.NoError(t, os.WriteFile(path, []byte("not a journal file padding"), 0o644))

	_, _, _, err := ReadAll(path)
	require.ErrorIs(t, err, ErrBadMagic)
}

func TestReadAllTrailingPartialRecordIgnored(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.idx")

	w, err := Create(path, testHeader())
	require.NoError(t, err)
	require.NoError(t, w.Append(Record{Offset: 0, Size: 10, TrackID: TrackVideo}))
	require.NoError(t, w.Close())

	// Simulate a crash mid-record: append a few stray bytes.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.Write([]byte{1, 2, 3})
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, video, _, err := ReadAll(path)
	require.NoError(t, err)
	require.Len(t, video, 1)
}
