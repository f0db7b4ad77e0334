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

package mp4recorder

import "errors"

// Sentinel error kinds, matchable with errors.Is. Wrapped errors from
// pkg/journal and pkg/moovsynth (ErrBadMagic, ErrOffsetOverflow,
// ErrNoFrames) are surfaced directly rather than re-declared here.
var (
	// ErrAlreadyRecording is returned by Start on an already-open session.
	ErrAlreadyRecording = errors.New("mp4recorder: already recording")

	// ErrNotRecording is returned by WriteVideo/WriteAudio/Stop on a
	// session that was never started or has already stopped.
	ErrNotRecording = errors.New("mp4recorder: not recording")

	// ErrInvalidArgument is returned for malformed caller input: empty
	// sample data, a zero-length path, missing SPS/PPS bytes, etc.
	ErrInvalidArgument = errors.New("mp4recorder: invalid argument")

	// ErrIoCreate wraps a failure to create one of the three session
	// artifacts.
	ErrIoCreate = errors.New("mp4recorder: could not create file")

	// ErrIoWrite wraps a failure to write to an open session artifact;
	// the session is poisoned once this occurs.
	ErrIoWrite = errors.New("mp4recorder: write failed")

	// ErrIoSeek wraps a failure to seek within a session artifact.
	ErrIoSeek = errors.New("mp4recorder: seek failed")

	// ErrIoSync wraps a failure to durably sync a session artifact.
	ErrIoSync = errors.New("mp4recorder: sync failed")
)
