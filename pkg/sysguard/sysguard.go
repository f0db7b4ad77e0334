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

// Package sysguard guards a recording session's volume against
// starting when free space is already below a configured floor.
package sysguard

import (
	"fmt"
	"path/filepath"

	"github.com/shirou/gopsutil/v3/disk"
)

// usageFunc matches disk.Usage, injected so tests can fake free space
// without touching a real filesystem.
type usageFunc func(path string) (*disk.UsageStat, error)

var defaultUsage usageFunc = disk.Usage

// ErrInsufficientSpace is returned when free space on the volume
// containing a session's target directory is below minFreeBytes.
var ErrInsufficientSpace = fmt.Errorf("sysguard: insufficient free space")

// CheckFreeSpace statfs's the volume containing path's directory and
// returns ErrInsufficientSpace if free space is below minFreeBytes.
func CheckFreeSpace(path string, minFreeBytes uint64) error {
	return checkFreeSpace(defaultUsage, path, minFreeBytes)
}

func checkFreeSpace(usage usageFunc, path string, minFreeBytes uint64) error {
	dir := filepath.Dir(path)

	stat, err := usage(dir)
	if err != nil {
		return fmt.Errorf("sysguard: disk usage for %s: %w", dir, err)
	}

	if stat.Free < minFreeBytes {
		return fmt.Errorf("%w: %d bytes free, %d required on %s",
			ErrInsufficientSpace, stat.Free, minFreeBytes, dir)
	}

	return nil
}
