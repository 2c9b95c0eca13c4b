// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package log

import (
	golog "log"
	"os"
)

// gologSink is the default Sink: Go's standard logger, with the message
// level spelled out so interleaved output stays attributable.
type gologSink struct{}

func (gologSink) Emit(level Level, msg string) {
	golog.Printf("[%s] %s", level, msg)
}

// exit is injectable so Fatalf is testable.
var exit = os.Exit
