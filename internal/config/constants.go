package config

import (
	"path/filepath"
	"strings"
)

// Configuration file names, searched in this order.
const (
	FileName    = "loopviz.yaml"
	AltFileName = "loopviz.yml"
	EnvFileName = ".env"
)

// ScenarioFileExtensions are all recognized scenario file extensions
var ScenarioFileExtensions = []string{".yaml", ".yml", ".toml", ".json"}

// IsScenarioFile reports whether name has a scenario file extension.
func IsScenarioFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, known := range ScenarioFileExtensions {
		if ext == known {
			return true
		}
	}
	return false
}

// Environment overrides
const (
	EnvPlayInterval  = "LOOPVIZ_PLAY_INTERVAL"
	EnvProgressPath  = "LOOPVIZ_PROGRESS_PATH"
	EnvServerAddress = "LOOPVIZ_SERVER_ADDRESS"
	EnvLogVerbosity  = "LOOPVIZ_LOG_VERBOSITY"
	EnvLogFile       = "LOOPVIZ_LOG_FILE"
	EnvColor         = "LOOPVIZ_COLOR"
	EnvScenarioDirs  = "LOOPVIZ_SCENARIOS"
	EnvNoColor       = "NO_COLOR"
	EnvDataHome      = "XDG_DATA_HOME"
)

// Defaults
const (
	DefaultPlayInterval  = "800ms"
	DefaultMaxCallDepth  = 256
	DefaultServerAddress = "127.0.0.1:7433"
	DefaultProgressFile  = "progress.db"
	AppDirName           = "loopviz"
)

// Color modes
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)
