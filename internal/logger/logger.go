// Package logger owns the process-wide arbor logger instance.
package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/arbor/models"
)

// Settings selects the writers and level for the process-wide logger.
type Settings struct {
	Level     string
	Output    []string // "console" and/or "file"
	Directory string   // log file directory, defaults to logs/ next to the executable
}

var (
	globalLogger arbor.ILogger
	loggerMutex  sync.RWMutex
)

// Get returns the global logger, falling back to a console-only logger
// when Init has not run yet. Tests lean on this fallback.
func Get() arbor.ILogger {
	loggerMutex.RLock()
	if globalLogger != nil {
		loggerMutex.RUnlock()
		return globalLogger
	}
	loggerMutex.RUnlock()

	loggerMutex.Lock()
	defer loggerMutex.Unlock()

	if globalLogger == nil {
		globalLogger = arbor.NewLogger().WithConsoleWriter(consoleConfiguration())
	}
	return globalLogger
}

// Init configures the global logger from settings and returns it.
func Init(settings Settings) arbor.ILogger {
	loggerMutex.Lock()
	defer loggerMutex.Unlock()

	log := arbor.NewLogger()

	hasConsole := false
	hasFile := false
	for _, output := range settings.Output {
		switch output {
		case "console", "stdout":
			hasConsole = true
		case "file":
			hasFile = true
		}
	}
	if !hasConsole && !hasFile {
		hasConsole = true
	}

	if hasFile {
		dir := settings.Directory
		if dir == "" {
			dir = defaultLogDirectory()
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			fmt.Printf("Warning: failed to create log directory: %v\n", err)
		} else {
			log = log.WithFileWriter(models.WriterConfiguration{
				Type:             models.LogWriterTypeFile,
				FileName:         filepath.Join(dir, "contraledger.log"),
				TimeFormat:       "15:04:05",
				MaxSize:          100 * 1024 * 1024, // 100 MB
				MaxBackups:       3,
				TextOutput:       true,
				DisableTimestamp: false,
			})
		}
	}
	if hasConsole {
		log = log.WithConsoleWriter(consoleConfiguration())
	}
	if settings.Level != "" {
		log = log.WithLevelFromString(settings.Level)
	}

	globalLogger = log
	return log
}

func consoleConfiguration() models.WriterConfiguration {
	return models.WriterConfiguration{
		Type:             models.LogWriterTypeConsole,
		TimeFormat:       "15:04:05",
		TextOutput:       true,
		DisableTimestamp: false,
	}
}

func defaultLogDirectory() string {
	execPath, err := os.Executable()
	if err != nil {
		return "logs"
	}
	return filepath.Join(filepath.Dir(execPath), "logs")
}
