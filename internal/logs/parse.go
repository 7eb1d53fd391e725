package logs

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"vodpipe/internal/logging"
)

// ParseLine decodes a JSON-format daemon log line. Console-format lines
// report false and should be shown verbatim.
func ParseLine(line string) (logging.LogEvent, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "{") {
		return logging.LogEvent{}, false
	}
	var raw map[string]any
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return logging.LogEvent{}, false
	}

	evt := logging.LogEvent{}
	for key, value := range raw {
		switch key {
		case "ts":
			if ts, err := time.Parse(time.RFC3339, fmt.Sprint(value)); err == nil {
				evt.Timestamp = ts
			}
		case "level":
			evt.Level = strings.ToUpper(fmt.Sprint(value))
		case "msg":
			evt.Message = fmt.Sprint(value)
		case "source":
		case logging.FieldComponent:
			evt.Component = fmt.Sprint(value)
		case logging.FieldStage:
			evt.Stage = fmt.Sprint(value)
		case logging.FieldLane:
			evt.Lane = fmt.Sprint(value)
		case logging.FieldCorrelationID:
			evt.CorrelationID = fmt.Sprint(value)
		case logging.FieldItemID:
			if n, ok := value.(float64); ok {
				evt.ItemID = int64(n)
			}
		default:
			if evt.Fields == nil {
				evt.Fields = make(map[string]string)
			}
			evt.Fields[key] = fieldString(value)
		}
	}
	return evt, true
}

func fieldString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%g", v)
	case nil:
		return ""
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(encoded)
	}
}
