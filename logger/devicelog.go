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

package logger

import (
	"fmt"
	"sync"
	"time"
)

// DeviceId mirrors the wire-level device id (§6); kept local to logger to avoid
// an import cycle with the registry package.
type DeviceId = uint32

// watchSet tracks the devices an operator has asked to watch at elevated verbosity,
// the same "watch a node" idea as the teacher's per-node log level.
var (
	watchMu  sync.Mutex
	watching = map[DeviceId]Level{}
)

// Watch raises the effective log level for events concerning a specific device id.
func Watch(id DeviceId, lv Level) {
	watchMu.Lock()
	defer watchMu.Unlock()
	watching[id] = lv
}

// Unwatch removes a device from the watch set.
func Unwatch(id DeviceId) {
	watchMu.Lock()
	defer watchMu.Unlock()
	delete(watching, id)
}

// DeviceLogf logs at the higher of the process-wide level and any configured watch
// level for the given device id, tagging the line with the device id for grepability.
func DeviceLogf(id DeviceId, level Level, format string, args ...interface{}) {
	watchMu.Lock()
	watchLv, watched := watching[id]
	watchMu.Unlock()

	effective := currentLevel
	if watched && watchLv > effective {
		effective = watchLv
	}
	if level > effective {
		return
	}
	// Logf would filter again by currentLevel alone, so log directly here.
	timeStr := time.Now().Format("2006-01-02 15:04:05.000") + " - "
	zaplogger.Log(zapLevels[level-MinLevel], timeStr+getMessage(fmt.Sprintf("[dev %d] ", id)+format, args))
}
