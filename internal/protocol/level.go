package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Level is the controller's log severity. The device sends either the numeric
// form (0..3) or the upper-case name.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarning
	LevelError
	LevelUnknown Level = -1
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarning:
		return "WARNING"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a device level name to a Level.
func ParseLevel(raw string) Level {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "DEBUG":
		return LevelDebug
	case "INFO":
		return LevelInfo
	case "WARNING", "WARN":
		return LevelWarning
	case "ERROR":
		return LevelError
	default:
		return LevelUnknown
	}
}

func (l *Level) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		if n < int(LevelDebug) || n > int(LevelError) {
			*l = LevelUnknown
			return nil
		}
		*l = Level(n)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("log level must be a number or string: %w", err)
	}
	*l = ParseLevel(s)

	return nil
}

func (l Level) MarshalJSON() ([]byte, error) {
	return json.Marshal(int(l))
}
