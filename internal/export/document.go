// Package export assembles fetched Tonal resources into the single
// versioned document the tool writes, trims it down to the documented
// schema in standard mode, and lands it on disk.
package export

import (
	"time"

	"github.com/toneget/toneget/internal/config"
	"github.com/toneget/toneget/internal/tonal"
)

// SchemaVersion identifies the export document layout.
const SchemaVersion = "3.0"

// Document is the merged export. Passthrough resources stay schema-less
// maps so unknown vendor fields survive a full export untouched. Every
// top-level key is always present, null or empty when the resource was
// unavailable, so consumers can rely on shape.
type Document struct {
	Version               string                         `json:"version"`
	ExportedAt            string                         `json:"exportedAt"`
	ExportedWith          string                         `json:"exportedWith"`
	User                  map[string]interface{}         `json:"user"`
	Profile               map[string]interface{}         `json:"profile"`
	Workouts              []map[string]interface{}       `json:"workouts"`
	CustomWorkouts        map[string]tonal.CustomWorkout `json:"customWorkouts"`
	StrengthScoreHistory  []map[string]interface{}       `json:"strengthScoreHistory"`
	CurrentStrengthScores *tonal.StrengthSnapshot        `json:"currentStrengthScores"`
}

// Inputs carries each fetched resource. A nil field means the fetch
// failed or returned nothing; it exports as null.
type Inputs struct {
	User                  map[string]interface{}
	Profile               map[string]interface{}
	Workouts              []map[string]interface{}
	CustomWorkouts        map[string]tonal.CustomWorkout
	StrengthScoreHistory  []map[string]interface{}
	CurrentStrengthScores *tonal.StrengthSnapshot
}

// Assemble stamps schema and tool metadata over the fetched resources.
// Workouts keep the exact order the API delivered. Deterministic apart
// from the caller-supplied timestamp.
func Assemble(in Inputs, now time.Time) Document {
	return Document{
		Version:               SchemaVersion,
		ExportedAt:            now.UTC().Format(time.RFC3339),
		ExportedWith:          "toneget v" + config.Version(),
		User:                  in.User,
		Profile:               in.Profile,
		Workouts:              in.Workouts,
		CustomWorkouts:        in.CustomWorkouts,
		StrengthScoreHistory:  in.StrengthScoreHistory,
		CurrentStrengthScores: in.CurrentStrengthScores,
	}
}
