package export

import (
	"context"
	"errors"
	"time"

	"github.com/toneget/toneget/internal/logger"
	"github.com/toneget/toneget/internal/tonal"
	"go.uber.org/zap"
)

// API is the slice of the Tonal client the exporter consumes.
type API interface {
	UserInfo(ctx context.Context) (map[string]interface{}, error)
	Profile(ctx context.Context, userID string) (map[string]interface{}, error)
	WorkoutActivities(ctx context.Context, userID string, progress func(done, total int)) ([]map[string]interface{}, error)
	CustomWorkouts(ctx context.Context, workouts []map[string]interface{}) (map[string]tonal.CustomWorkout, error)
	StrengthScoreHistory(ctx context.Context, userID string) ([]map[string]interface{}, error)
	CurrentStrengthScores(ctx context.Context, userID string) (*tonal.StrengthSnapshot, error)
}

// Hooks let the CLI narrate the run without the exporter knowing about
// terminals. All fields are optional.
type Hooks struct {
	LoggedIn        func(user map[string]interface{})
	WorkoutProgress func(done, total int)
}

// Stats summarizes the run for the end-of-run report.
type Stats struct {
	Workouts       int
	CustomWorkouts int
	TotalVolume    float64
	TotalReps      float64
	FirstWorkout   string
	LastWorkout    string
	LatestStrength map[string]interface{}
}

type Exporter struct {
	api   API
	hooks Hooks
}

func NewExporter(api API, hooks Hooks) *Exporter {
	return &Exporter{api: api, hooks: hooks}
}

// Run fetches every resource in sequence and assembles the document.
//
// A userinfo failure aborts the run: every other resource path derives
// from the user id. Any other resource failure degrades to a null field
// with a warning on stderr, so one flaky endpoint cannot cost the user
// the rest of their data. Cancellation always aborts.
func (e *Exporter) Run(ctx context.Context) (Document, Stats, error) {
	user, err := e.api.UserInfo(ctx)
	if err != nil {
		return Document{}, Stats{}, err
	}
	userID, _ := user["id"].(string)
	if userID == "" {
		return Document{}, Stats{}, &tonal.APIError{Resource: "userinfo", Err: errors.New("response missing user id")}
	}
	if e.hooks.LoggedIn != nil {
		e.hooks.LoggedIn(user)
	}

	in := Inputs{User: user}

	if profile, err := e.api.Profile(ctx, userID); err != nil {
		if cerr := degrade(ctx, "profile", err); cerr != nil {
			return Document{}, Stats{}, cerr
		}
	} else {
		in.Profile = profile
	}

	if workouts, err := e.api.WorkoutActivities(ctx, userID, e.hooks.WorkoutProgress); err != nil {
		if cerr := degrade(ctx, "workout activities", err); cerr != nil {
			return Document{}, Stats{}, cerr
		}
	} else {
		in.Workouts = workouts
	}

	if len(in.Workouts) > 0 {
		custom, err := e.api.CustomWorkouts(ctx, in.Workouts)
		if err != nil {
			// Only cancellation fails this call; partial results are
			// already logged away by the client.
			return Document{}, Stats{}, err
		}
		in.CustomWorkouts = custom
	}

	if history, err := e.api.StrengthScoreHistory(ctx, userID); err != nil {
		if cerr := degrade(ctx, "strength score history", err); cerr != nil {
			return Document{}, Stats{}, cerr
		}
	} else {
		in.StrengthScoreHistory = history
	}

	if current, err := e.api.CurrentStrengthScores(ctx, userID); err != nil {
		if cerr := degrade(ctx, "current strength scores", err); cerr != nil {
			return Document{}, Stats{}, cerr
		}
	} else {
		in.CurrentStrengthScores = current
	}

	return Assemble(in, time.Now()), BuildStats(in), nil
}

// degrade records a skipped resource unless the run itself is being
// cancelled, which must not be absorbed into a null field.
func degrade(ctx context.Context, resource string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	logger.Warn("resource unavailable, continuing without it",
		zap.String("resource", resource),
		zap.Error(err))
	return nil
}

// BuildStats derives the report numbers from the fetched resources.
func BuildStats(in Inputs) Stats {
	s := Stats{
		Workouts:       len(in.Workouts),
		CustomWorkouts: len(in.CustomWorkouts),
	}

	for _, w := range in.Workouts {
		if v, ok := w["totalVolume"].(float64); ok {
			s.TotalVolume += v
		}
		if r, ok := w["totalReps"].(float64); ok {
			s.TotalReps += r
		}
		if begin, ok := w["beginTime"].(string); ok && begin != "" {
			if s.FirstWorkout == "" || begin < s.FirstWorkout {
				s.FirstWorkout = begin
			}
			if begin > s.LastWorkout {
				s.LastWorkout = begin
			}
		}
	}
	if len(s.FirstWorkout) > 10 {
		s.FirstWorkout = s.FirstWorkout[:10]
	}
	if len(s.LastWorkout) > 10 {
		s.LastWorkout = s.LastWorkout[:10]
	}

	if len(in.StrengthScoreHistory) > 0 {
		s.LatestStrength = in.StrengthScoreHistory[0]
	}
	return s
}
