package tonal

import (
	"fmt"
	"math"
)

// APIError reports a failed resource fetch. StatusCode 0 means there
// is no usable HTTP status to report: a transport failure, a timeout,
// or a response body that would not decode.
type APIError struct {
	Resource   string
	StatusCode int
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("failed to fetch %s: %v", e.Resource, e.Err)
	}
	return fmt.Sprintf("failed to fetch %s: status %d", e.Resource, e.StatusCode)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Workout types Tonal's catalog produces. Anything outside this set is
// treated as a user-created custom workout.
var knownWorkoutTypes = map[string]struct{}{
	"PROGRAM":    {},
	"ON_DEMAND":  {},
	"QUICK_FIT":  {},
	"LIVE":       {},
	"MOVEMENT":   {},
	"ASSESSMENT": {},
}

// CustomWorkout is the slice of a workout template worth keeping: just
// enough to resolve a custom workout id to its name.
type CustomWorkout struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	UserID string `json:"userId"`
}

// StrengthSnapshot pairs the raw per-region response with a parsed
// breakdown that is easier to consume downstream.
type StrengthSnapshot struct {
	Raw    []map[string]interface{} `json:"raw"`
	Parsed ParsedScores             `json:"parsed"`
}

type ParsedScores struct {
	Regions map[string]float64     `json:"regions"`
	Muscles map[string]MuscleScore `json:"muscles"`
}

type MuscleScore struct {
	Score     int     `json:"score"`
	Region    string  `json:"region"`
	UpdatedAt *string `json:"updatedAt"`
}

// parseStrengthScores flattens the region/muscle hierarchy of the
// current-scores endpoint. Region scores are kept as reported; muscle
// scores are rounded to whole numbers.
func parseStrengthScores(raw []map[string]interface{}) ParsedScores {
	parsed := ParsedScores{
		Regions: make(map[string]float64),
		Muscles: make(map[string]MuscleScore),
	}

	for _, region := range raw {
		regionName := stringField(region, "strengthBodyRegion", "Unknown")
		regionScore, _ := region["score"].(float64)
		parsed.Regions[regionName] = regionScore

		families, _ := region["familyActivity"].([]interface{})
		for _, f := range families {
			muscle, ok := f.(map[string]interface{})
			if !ok {
				continue
			}
			muscleScore, _ := muscle["score"].(float64)
			ms := MuscleScore{
				Score:  int(math.Round(muscleScore)),
				Region: regionName,
			}
			if updated, ok := muscle["updatedAt"].(string); ok {
				ms.UpdatedAt = &updated
			}
			parsed.Muscles[stringField(muscle, "strengthFamily", "Unknown")] = ms
		}
	}

	return parsed
}

func stringField(m map[string]interface{}, key, fallback string) string {
	if s, ok := m[key].(string); ok && s != "" {
		return s
	}
	return fallback
}
