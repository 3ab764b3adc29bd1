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

// Package logger provides structured, level-oriented logging for the channel
// processor and the channel stubs, so that every meaningful protocol event
// (registration, TX fan-out, causal violations) turns into a single log line
// carrying simulation time, rank, and device id.
package logger

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level is the log-level, modeled after the teacher's node/simulation log levels.
type Level int8

const (
	TraceLevel   Level = 5
	DebugLevel   Level = 4
	InfoLevel    Level = 3
	WarnLevel    Level = 2
	ErrorLevel   Level = 1
	FatalLevel   Level = 0
	OffLevel     Level = -1
	MinLevel           = OffLevel
	DefaultLevel       = InfoLevel
)

var (
	cfg          zap.Config
	zaplogger    *zap.Logger
	currentLevel Level
	zapLevels    = []zapcore.Level{zapcore.FatalLevel + 1, zapcore.FatalLevel, zapcore.ErrorLevel,
		zapcore.WarnLevel, zapcore.InfoLevel, zapcore.DebugLevel}
)

func init() {
	cfgJson := []byte(`{
		"level": "debug",
		"outputPaths": ["stderr"],
		"errorOutputPaths": ["stderr"],
		"encoding": "console",
		"encoderConfig": {
			"messageKey": "message",
			"levelKey": "level",
			"levelEncoder": "lowercase"
		}
	}`)
	currentLevel = DefaultLevel
	if err := json.Unmarshal(cfgJson, &cfg); err != nil {
		panic(err)
	}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	rebuildLoggerFromCfg()
}

// SetLevel sets the process-wide log level.
func SetLevel(lv Level) {
	currentLevel = lv
}

// GetLevel returns the current process-wide log level.
func GetLevel() Level {
	return currentLevel
}

// ParseLevel maps a level name (as given on the command line, e.g. by
// cmd/channeld and cmd/deviced) to a Level, defaulting to InfoLevel for an
// unrecognized name.
func ParseLevel(name string) Level {
	switch name {
	case "trace":
		return TraceLevel
	case "debug":
		return DebugLevel
	case "info":
		return InfoLevel
	case "warn":
		return WarnLevel
	case "error":
		return ErrorLevel
	case "fatal":
		return FatalLevel
	case "off":
		return OffLevel
	default:
		return InfoLevel
	}
}

// SetOutput redirects log output, e.g. logger.SetOutput([]string{"stderr", "run.log"}).
func SetOutput(outputs []string) {
	cfg.OutputPaths = outputs
	rebuildLoggerFromCfg()
}

func rebuildLoggerFromCfg() {
	newLogger, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	if zaplogger != nil {
		_ = zaplogger.Sync()
	}
	zaplogger = newLogger
}

func getMessage(template string, fmtArgs []interface{}) string {
	if len(fmtArgs) == 0 {
		return template
	}
	if template != "" {
		return fmt.Sprintf(template, fmtArgs...)
	}
	if len(fmtArgs) == 1 {
		if str, ok := fmtArgs[0].(string); ok {
			return str
		}
	}
	return fmt.Sprint(fmtArgs...)
}

// Logf outputs a formatted log message at the given level.
func Logf(level Level, format string, args []interface{}) {
	if level > currentLevel {
		return
	}
	timeStr := time.Now().Format("2006-01-02 15:04:05.000") + " - "
	zaplogger.Log(zapLevels[level-MinLevel], timeStr+getMessage(format, args))
}

func Tracef(format string, args ...interface{}) { Logf(TraceLevel, format, args) }
func Debugf(format string, args ...interface{}) { Logf(DebugLevel, format, args) }
func Infof(format string, args ...interface{})  { Logf(InfoLevel, format, args) }
func Warnf(format string, args ...interface{})  { Logf(WarnLevel, format, args) }
func Errorf(format string, args ...interface{}) { Logf(ErrorLevel, format, args) }

// Fatalf logs at fatal level and terminates the process. Reserved for the
// fatal error kinds of §7 (CAUSAL_VIOLATION, FABRIC_ERROR, framing
// PROTOCOL_VIOLATION, sequence regression) — callers should prefer routing
// through progctx.ProgCtx.Cancel so deferred cleanup still runs; this is the
// last-resort terminator for code that has no ProgCtx in scope (e.g. init).
func Fatalf(format string, args ...interface{}) {
	Logf(FatalLevel, format, args)
	_ = zaplogger.Sync()
	os.Exit(1)
}

type assertLogger struct{}

func (assertLogger) Errorf(format string, args ...interface{}) {
	Logf(FatalLevel, format, args)
	_ = zaplogger.Sync()
	os.Exit(1)
}

// AssertTrue logs at fatal level and exits the process with status 1 if value is false. Used for invariants
// that indicate a programming error rather than a protocol-level fault.
func AssertTrue(value bool, msgAndArgs ...interface{}) bool {
	return assert.True(assertLogger{}, value, msgAndArgs...)
}

func AssertEqual(expected, actual interface{}, msgAndArgs ...interface{}) bool {
	return assert.Equal(assertLogger{}, expected, actual, msgAndArgs...)
}

func AssertNil(object interface{}, msgAndArgs ...interface{}) bool {
	return assert.Nil(assertLogger{}, object, msgAndArgs...)
}
