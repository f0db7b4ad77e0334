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

package sysguard

import (
	"path/filepath"
	"testing"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/stretchr/testify/require"
)

func fakeUsage(free uint64) usageFunc {
	return func(path string) (*disk.UsageStat, error) {
		return &disk.UsageStat{Path: path, Free: free}, nil
	}
}

func TestCheckFreeSpaceOK(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.mp4")
	err := checkFreeSpace(fakeUsage(10*1024*1024*1024), path, 1*1024*1024*1024)
	require.NoError(t, err)
}

func TestCheckFreeSpaceInsufficient(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.mp4")
	err := checkFreeSpace(fakeUsage(100*1024*1024), path, 1*1024*1024*1024)
	require.ErrorIs(t, err, ErrInsufficientSpace)
}
