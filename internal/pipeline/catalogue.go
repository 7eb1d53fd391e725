package pipeline

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"vodpipe/internal/queue"
)

// Stage describes one entry of the stage catalogue.
type Stage struct {
	Key   string
	Label string
	Lane  queue.Lane
}

var titleCaser = cases.Title(language.English)

// aliases accepts the names operators know from the dashboard.
var aliases = map[string]string{
	"ffmpeg":     queue.StageIngest,
	"clipper":    queue.StageIngest,
	"extract":    queue.StageExtractFrames,
	"frames":     queue.StageExtractFrames,
	"score":      queue.StageScoring,
	"write":      queue.StageWriteResults,
	"filter":     queue.StageSecondFilter,
	"push":       queue.StagePushSegments,
	"silence":    queue.StagePolish,
	"cloudinary": queue.StageUpload,
}

// Label renders a stage key for display, e.g. "extract_frames" as "Extract Frames".
func Label(key string) string {
	return titleCaser.String(strings.ReplaceAll(key, "_", " "))
}

// Stages returns the catalogue in pipeline order.
func Stages() []Stage {
	steps := queue.Steps()
	out := make([]Stage, 0, len(steps))
	for _, step := range steps {
		out = append(out, Stage{Key: step.Stage, Label: Label(step.Stage), Lane: step.Lane})
	}
	return out
}

// Lookup returns the catalogue entry for key.
func Lookup(key string) (Stage, bool) {
	step, ok := queue.StepForStage(key)
	if !ok {
		return Stage{}, false
	}
	return Stage{Key: step.Stage, Label: Label(step.Stage), Lane: step.Lane}, true
}

// ParseStage normalizes user input ("Extract-Frames", "ffmpeg") into a stage key.
func ParseStage(value string) (string, error) {
	key := strings.ToLower(strings.TrimSpace(value))
	key = strings.NewReplacer("-", "_", " ", "_").Replace(key)
	if alias, ok := aliases[key]; ok {
		key = alias
	}
	if _, ok := queue.StepForStage(key); !ok {
		return "", fmt.Errorf("unknown stage %q (want one of %s)", value, strings.Join(queue.StageKeys(), ", "))
	}
	return key, nil
}
