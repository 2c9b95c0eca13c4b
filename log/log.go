// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package log provides leveled diagnostic output for the virtual
// filesystem and its tools. The library uses it for operational traces
// only — mounts opened and released, archives indexed — at Debug level;
// failures are never logged, they travel through the error channel and the
// operations' return values. Commands additionally report their own
// terminal errors here, since they have no caller left to surface to.
//
// Messages go to a Sink. The default sink writes through Go's standard log
// package, prefixed with the message level; embedders with their own
// logging route output by installing a different Sink. Commands that want
// the level configurable by flag call log.AddFlags before flag.Parse.
package log

import (
	"flag"
	"fmt"
	"sync/atomic"
)

// A Level classifies diagnostic messages. A message is emitted when its
// level is at or below the package's current level.
type Level int32

const (
	// Off suppresses all output.
	Off Level = iota
	// Error is for terminal failures in commands.
	Error
	// Info is for messages regular users should see.
	Info
	// Debug is for operational traces: development and troubleshooting.
	Debug
)

var levelNames = map[Level]string{
	Off:   "off",
	Error: "error",
	Info:  "info",
	Debug: "debug",
}

// String returns the name of level l.
func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("level%d", l)
}

func parseLevel(name string) (Level, error) {
	for l, n := range levelNames {
		if n == name {
			return l, nil
		}
	}
	return Off, fmt.Errorf("invalid log level %q", name)
}

// A Sink receives every emitted message, already filtered by level.
// Implementations must be safe for concurrent use.
type Sink interface {
	// Emit outputs one message at the given level.
	Emit(level Level, msg string)
}

var (
	current = int32(Info)
	sink    atomic.Value // sinkHolder
)

// sinkHolder keeps atomic.Value's concrete type fixed while the Sink
// implementations vary.
type sinkHolder struct{ s Sink }

func init() {
	sink.Store(sinkHolder{gologSink{}})
}

// SetLevel sets the package's level and returns the previous one. Level
// changes take effect immediately, including for concurrent emitters.
func SetLevel(l Level) Level {
	return Level(atomic.SwapInt32(&current, int32(l)))
}

// At reports whether messages at level l are currently emitted.
func At(l Level) bool {
	return l != Off && int32(l) <= atomic.LoadInt32(&current)
}

// SetSink installs a new message sink and returns the previous one.
func SetSink(s Sink) Sink {
	old := sink.Load().(sinkHolder)
	sink.Store(sinkHolder{s})
	return old.s
}

func emit(l Level, format string, v ...interface{}) {
	if !At(l) {
		return
	}
	sink.Load().(sinkHolder).s.Emit(l, fmt.Sprintf(format, v...))
}

// Errorf formats a message in the manner of fmt.Sprintf and emits it at the
// Error level.
func Errorf(format string, v ...interface{}) {
	emit(Error, format, v...)
}

// Infof formats a message in the manner of fmt.Sprintf and emits it at the
// Info level.
func Infof(format string, v ...interface{}) {
	emit(Info, format, v...)
}

// Debugf formats a message in the manner of fmt.Sprintf and emits it at the
// Debug level.
func Debugf(format string, v ...interface{}) {
	emit(Debug, format, v...)
}

// Fatalf formats a message in the manner of fmt.Sprintf, emits it at the
// Error level regardless of the current level, and exits the process.
// For commands only.
func Fatalf(format string, v ...interface{}) {
	sink.Load().(sinkHolder).s.Emit(Error, fmt.Sprintf(format, v...))
	exit(1)
}

// AddFlags registers the -log flag on flag.CommandLine. Call it before
// flag.Parse.
func AddFlags() {
	flag.Var(levelFlag{}, "log", "set log level (off, error, info, debug)")
}

type levelFlag struct{}

func (levelFlag) String() string {
	return Level(atomic.LoadInt32(&current)).String()
}

func (levelFlag) Set(name string) error {
	l, err := parseLevel(name)
	if err != nil {
		return err
	}
	SetLevel(l)
	return nil
}
