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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRunConfigValues(t *testing.T) {
	cfg := DefaultRunConfig()
	assert.Equal(t, uint32(0), cfg.ChannelRank)
	assert.Equal(t, -96.0, cfg.ReceptionThresholdDbm)
	assert.Equal(t, time.Second, cfg.RegistrationTimeout)
	assert.Equal(t, 1.0, cfg.PositionEpsilonM)
}

func TestLoadRunConfigOverridesOnlyMentionedFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.yaml")
	yamlContent := "world_size: 4\nreception_threshold_dbm: -100\n"
	require.NoError(t, os.WriteFile(path, []byte(yamlContent), 0o644))

	cfg, err := LoadRunConfig(path)
	require.NoError(t, err)
	assert.Equal(t, uint32(4), cfg.WorldSize)
	assert.Equal(t, -100.0, cfg.ReceptionThresholdDbm)
	// untouched fields keep their defaults
	assert.Equal(t, "free-space", cfg.DefaultLossModel)
	assert.Equal(t, time.Second, cfg.HeartbeatInterval)
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.yaml")

	cfg := DefaultRunConfig()
	cfg.ChannelRank = 7
	cfg.ListenAddress = "10.0.0.1:9000"
	require.NoError(t, cfg.Save(path))

	loaded, err := LoadRunConfig(path)
	require.NoError(t, err)
	assert.Equal(t, uint32(7), loaded.ChannelRank)
	assert.Equal(t, "10.0.0.1:9000", loaded.ListenAddress)
}

func TestLoadRunConfigMissingFileErrors(t *testing.T) {
	_, err := LoadRunConfig("/nonexistent/path/run.yaml")
	assert.Error(t, err)
}
