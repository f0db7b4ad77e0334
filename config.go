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

// Package mp4recorder writes a crash-recoverable, progressively
// written MP4 file from live H.264/AAC samples: frame bytes land in
// mdat as they arrive, a sidecar journal records where, and a moov
// box is synthesized only once, at stop or recovery time.
package mp4recorder

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"mp4recorder/pkg/journal"
)

// Config holds every value that must round-trip through the journal
// header so recovery sees exactly what start saw.
type Config struct {
	VideoTimescale  uint32 `yaml:"video_timescale"`
	AudioTimescale  uint32 `yaml:"audio_timescale"`
	AudioSampleRate uint32 `yaml:"audio_sample_rate"`
	AudioChannels   uint16 `yaml:"audio_channels"`
	FlushIntervalMs uint32 `yaml:"flush_interval_ms"`
	FlushFrameCount uint32 `yaml:"flush_frame_count"`
	VideoWidth      uint32 `yaml:"video_width"`
	VideoHeight     uint32 `yaml:"video_height"`

	// MinFreeBytes is the preflight disk-space floor checked by
	// sysguard at start; zero disables the check.
	MinFreeBytes uint64 `yaml:"min_free_bytes"`
}

// DefaultConfig returns a Config with the spec's default values.
func DefaultConfig() Config {
	return Config{
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

// LoadConfig reads a YAML file at path into a copy of DefaultConfig,
// so unset fields keep their defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("mp4recorder: read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("mp4recorder: parse config: %w", err)
	}
	return cfg, nil
}

func (c Config) toHeader() journal.Header {
	return journal.Header{
		VideoTimescale:  c.VideoTimescale,
		AudioTimescale:  c.AudioTimescale,
		AudioSampleRate: c.AudioSampleRate,
		AudioChannels:   c.AudioChannels,
		FlushIntervalMs: c.FlushIntervalMs,
		FlushFrameCount: c.FlushFrameCount,
		VideoWidth:      c.VideoWidth,
		VideoHeight:     c.VideoHeight,
	}
}
