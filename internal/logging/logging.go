// Package logging configures the commonlog backend shared by every loopviz
// package and hands out named loggers.
package logging

import (
	"sync"

	"github.com/tliron/commonlog"

	_ "github.com/tliron/commonlog/simple"
)

// Prefix is prepended to every logger name.
const Prefix = "loopviz"

var (
	mu      sync.Mutex
	current *settings
)

type settings struct {
	verbosity int
	path      string
}

// Configure sets the verbosity (0 = errors only, higher is chattier) and
// the optional log file. An empty path logs to stderr. Repeating the
// active settings is a no-op, so commands may call it while loggers are
// in use on other goroutines.
func Configure(verbosity int, path string) {
	mu.Lock()
	defer mu.Unlock()

	next := settings{verbosity: verbosity, path: path}
	if current != nil && *current == next {
		return
	}
	current = &next

	if path == "" {
		commonlog.Configure(verbosity, nil)
		return
	}
	commonlog.Configure(verbosity, &path)
}

// Get returns the logger for a component, e.g. Get("engine").
func Get(name string) commonlog.Logger {
	return commonlog.GetLogger(Prefix + "." + name)
}
