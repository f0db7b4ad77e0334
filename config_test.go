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

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfigMatchesSpecDefaults(t *testing.T) {
	cfg := DefaultConfig()
	require.Equal(t, uint32(30000), cfg.VideoTimescale)
	require.Equal(t, uint32(48000), cfg.AudioTimescale)
	require.Equal(t, uint32(48000), cfg.AudioSampleRate)
	require.Equal(t, uint16(2), cfg.AudioChannels)
	require.Equal(t, uint32(500), cfg.FlushIntervalMs)
	require.Equal(t, uint32(1000), cfg.FlushFrameCount)
	require.Equal(t, uint32(640), cfg.VideoWidth)
	require.Equal(t, uint32(480), cfg.VideoHeight)
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("video_width: 1920\nvideo_height: 1080\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, uint32(1920), cfg.VideoWidth)
	require.Equal(t, uint32(1080), cfg.VideoHeight)
	require.Equal(t, uint32(30000), cfg.VideoTimescale) // untouched default
}

func TestConfigToHeaderCarriesEveryField(t *testing.T) {
	cfg := DefaultConfig()
	cfg.VideoWidth = 1280
	cfg.VideoHeight = 720

	h := cfg.toHeader()
	require.Equal(t, cfg.VideoTimescale, h.VideoTimescale)
	require.Equal(t, cfg.AudioTimescale, h.AudioTimescale)
	require.Equal(t, cfg.AudioSampleRate, h.AudioSampleRate)
	require.Equal(t, cfg.AudioChannels, h.AudioChannels)
	require.Equal(t, cfg.FlushIntervalMs, h.FlushIntervalMs)
	require.Equal(t, cfg.FlushFrameCount, h.FlushFrameCount)
	require.Equal(t, cfg.VideoWidth, h.VideoWidth)
	require.Equal(t, cfg.VideoHeight, h.VideoHeight)
}
