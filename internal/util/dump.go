package util

import (
	"fmt"
	"io"
	"runtime"

	"github.com/davecgh/go-spew/spew"
)

var dumpConfig = spew.ConfigState{Indent: "  ", SortKeys: true, DisablePointerAddresses: true}

// Dump writes a deep, type-annotated rendering of v to w, prefixed by the caller's position.
func Dump(w io.Writer, v ...any) {
	_, file, line, _ := runtime.Caller(1)
	args := append([]any{fmt.Sprintf("%s:%d:", file, line)}, v...)
	dumpConfig.Fdump(w, args...)
}
