package export

import "github.com/toneget/toneget/internal/config"

// The standard export keeps only the fields the documented schema
// publishes. Allow-lists are static: vendor fields added later simply
// fall out of standard exports instead of bloating them.

var workoutKeepFields = makeSet(
	"id", "userId", "workoutId", "workoutType", "title",
	"beginTime", "endTime", "duration", "activeDuration",
	"totalVolume", "totalReps", "totalSets", "caloriesBurned",
	"strengthScore", "createdAt", "updatedAt",
	"workoutSetActivity",
)

var setKeepFields = makeSet(
	"movementId", "movementName", "setGroup", "setNumber",
	"beginTime", "endTime",
	"weight", "repCount", "prescribedReps",
	"totalVolume", "oneRepMax", "rangeOfMotion", "peakPower",
)

// User and profile records drop device/account bookkeeping the export
// has no use for; the rest passes through.
var userDropFields = makeSet(
	"recentMobileDevice", "auth0Id", "isGuestAccount", "isDemoAccount",
	"watchedSafetyVideo", "social", "profileAssetID", "mobileWorkoutsEnabled",
	"accountType", "sharingCustomWorkoutsDisabled", "workoutDurationMin",
	"workoutDurationMax", "updatedPreferencesAt", "primaryDeviceType",
	"emailVerified", "workoutsPerWeek",
)

func makeSet(keys ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return set
}

// Trim reduces a document to the published schema. Full mode is the
// identity; standard mode rebuilds the affected containers so the input
// document is never mutated and entry order is preserved. Trimming the
// same document twice yields the same result.
func Trim(doc Document, mode config.ExportMode) Document {
	if mode != config.ExportModeStandard {
		return doc
	}

	out := doc
	out.User = dropFields(doc.User, userDropFields)
	out.Profile = dropFields(doc.Profile, userDropFields)
	if doc.Workouts != nil {
		out.Workouts = make([]map[string]interface{}, len(doc.Workouts))
		for i, w := range doc.Workouts {
			out.Workouts[i] = trimWorkout(w)
		}
	}
	return out
}

func trimWorkout(w map[string]interface{}) map[string]interface{} {
	trimmed := keepFields(w, workoutKeepFields)

	if sets, ok := trimmed["workoutSetActivity"].([]interface{}); ok {
		out := make([]interface{}, len(sets))
		for i, s := range sets {
			if m, ok := s.(map[string]interface{}); ok {
				out[i] = keepFields(m, setKeepFields)
			} else {
				out[i] = s
			}
		}
		trimmed["workoutSetActivity"] = out
	}
	return trimmed
}

func keepFields(m map[string]interface{}, allowed map[string]struct{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(allowed))
	for k, v := range m {
		if _, ok := allowed[k]; ok {
			out[k] = v
		}
	}
	return out
}

func dropFields(m map[string]interface{}, denied map[string]struct{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		if _, ok := denied[k]; !ok {
			out[k] = v
		}
	}
	return out
}
