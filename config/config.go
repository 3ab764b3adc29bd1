// Copyright (c) 2020-2023, The OTNS Authors.
// All rights reserved.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions are met:
// 1. Redistributions of source code must retain the above copyright
//    notice, this list of conditions and the following disclaimer.
// 2. Redistributions in binary form must reproduce the above copyright
//    notice, this list of conditions and the following disclaimer in the
//    documentation and/or other materials provided with the distribution.
// 3. Neither the name of the copyright holder nor the
//    names of its contributors may be used to endorse or promote products
//    derived from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS "AS IS"
// AND ANY EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT LIMITED TO, THE
// IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE
// ARE DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR CONTRIBUTORS BE
// LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL, SPECIAL, EXEMPLARY, OR
// CONSEQUENTIAL DAMAGES (INCLUDING, BUT NOT LIMITED TO, PROCUREMENT OF
// SUBSTITUTE GOODS OR SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY, WHETHER IN
// CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING NEGLIGENCE OR OTHERWISE)
// ARISING IN ANY WAY OUT OF THE USE OF THIS SOFTWARE, EVEN IF ADVISED OF THE
// POSSIBILITY OF SUCH DAMAGE.

// Package config holds the run configuration loaded once at process
// startup by cmd/channeld and cmd/deviced.
package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// RunConfig is the per-process run configuration (SPEC_FULL.md §1.3).
type RunConfig struct {
	ChannelRank            uint32        `yaml:"channel_rank"`
	WorldSize              uint32        `yaml:"world_size"`
	ListenAddress          string        `yaml:"listen_address"`
	PeerAddresses          map[uint32]string `yaml:"peer_addresses"`
	ReceptionThresholdDbm  float64       `yaml:"reception_threshold_dbm"`
	DefaultLossModel       string        `yaml:"default_loss_model"`
	DefaultDelayModel      string        `yaml:"default_delay_model"`
	RegistrationTimeout    time.Duration `yaml:"registration_timeout"`
	PositionEpsilonM       float64       `yaml:"position_epsilon_m"`
	HeartbeatInterval      time.Duration `yaml:"heartbeat_interval"`
	MaxMessageSize         uint32        `yaml:"max_message_size"`
	PollInterval           time.Duration `yaml:"poll_interval"`
}

// DefaultRunConfig returns the configuration a process uses when no config
// file is supplied, grounded on the teacher's own DefaultConfig() pattern
// (dispatcher/dispatcher_config.go).
func DefaultRunConfig() *RunConfig {
	return &RunConfig{
		ChannelRank:           0,
		WorldSize:             1,
		ListenAddress:         ":17171",
		PeerAddresses:         map[uint32]string{},
		ReceptionThresholdDbm: -96.0,
		DefaultLossModel:      "free-space",
		DefaultDelayModel:     "light-speed",
		RegistrationTimeout:   time.Second,
		PositionEpsilonM:      1.0,
		HeartbeatInterval:     time.Second,
		MaxMessageSize:        1 << 20,
		PollInterval:          10 * time.Millisecond,
	}
}

// LoadRunConfig reads a YAML run configuration from path, starting from
// DefaultRunConfig so a partial file only overrides the fields it mentions.
func LoadRunConfig(path string) (*RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "config: reading %s", path)
	}
	cfg := DefaultRunConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "config: parsing %s", path)
	}
	return cfg, nil
}

// Save writes cfg to path as YAML, matching the teacher's scenario-file
// persistence style.
func (c *RunConfig) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "config: marshaling")
	}
	return errors.Wrapf(os.WriteFile(path, data, 0o644), "config: writing %s", path)
}
