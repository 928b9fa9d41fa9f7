package logger

import (
	"errors"

	"github.com/outdead/discordbotrus"
)

// DefaultFileLayout names log files by day, one JSON log per date.
const DefaultFileLayout = "20060102_log.json"

var ErrInvalidConfig = errors.New("invalid config")

// FileConfig describes the optional file output. Path is the directory
// and Layout a time layout producing the file name; an empty Layout
// disables the file output.
type FileConfig struct {
	Path   string `json:"path"   yaml:"path"`
	Layout string `json:"layout" yaml:"layout"`
}

// Config represents the configuration structure for the logger.
type Config struct {
	Level   string               `json:"level"   yaml:"level"`
	File    FileConfig           `json:"file"    yaml:"file"`
	Discord discordbotrus.Config `json:"discord" yaml:"discord"`
}
