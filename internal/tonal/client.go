// Package tonal is a read-only client for the Tonal cloud API. It
// fetches the fixed resource set the export needs, one request at a
// time, authorizing every call with the bearer token from login.
package tonal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/toneget/toneget/internal/config"
	"github.com/toneget/toneget/internal/logger"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// pageLimit is the API maximum for workout-activities pages.
const pageLimit = 100

type Config struct {
	BaseURL string
	Timeout time.Duration
}

type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient builds a client whose transport attaches the bearer token
// to every request. Calls are issued one at a time; the request rate
// stays indistinguishable from a person using the app.
func NewClient(ctx context.Context, bearer string, cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = config.APIBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: bearer,
		TokenType:   "Bearer",
	}))
	httpClient.Timeout = cfg.Timeout

	return &Client{
		httpClient: httpClient,
		baseURL:    cfg.BaseURL,
	}
}

type response struct {
	body    []byte
	headers http.Header
}

func (c *Client) get(ctx context.Context, resource, path string, query url.Values, headers map[string]string) (*response, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &APIError{Resource: resource, Err: err}
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &APIError{Resource: resource, Err: err}
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Error("Failed to close response body", zap.Error(err))
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &APIError{Resource: resource, Err: fmt.Errorf("failed to read response body: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Resource: resource, StatusCode: resp.StatusCode}
	}

	logger.Debug("fetched resource",
		zap.String("resource", resource),
		zap.Int("bytes", len(body)))

	return &response{body: body, headers: resp.Header}, nil
}

func decodeResource(resource string, data []byte, v interface{}) error {
	if err := json.Unmarshal(data, v); err != nil {
		return &APIError{Resource: resource, Err: fmt.Errorf("malformed response: %w", err)}
	}
	return nil
}

// UserInfo returns the authenticated user's record. Its id field keys
// every other resource path, so a failure here fails the run.
func (c *Client) UserInfo(ctx context.Context) (map[string]interface{}, error) {
	resp, err := c.get(ctx, "userinfo", "/v6/users/userinfo", nil, nil)
	if err != nil {
		return nil, err
	}
	var user map[string]interface{}
	if err := decodeResource("userinfo", resp.body, &user); err != nil {
		return nil, err
	}
	return user, nil
}

// Profile returns aggregate account stats (total workouts, volume).
func (c *Client) Profile(ctx context.Context, userID string) (map[string]interface{}, error) {
	resp, err := c.get(ctx, "profile", "/v6/users/"+url.PathEscape(userID)+"/profile", nil, nil)
	if err != nil {
		return nil, err
	}
	var profile map[string]interface{}
	if err := decodeResource("profile", resp.body, &profile); err != nil {
		return nil, err
	}
	return profile, nil
}

// pageEnvelope is the wrapped page shape some API versions return in
// place of a flat array.
type pageEnvelope struct {
	Items []map[string]interface{} `json:"items"`
	Total int                      `json:"total"`
}

func decodePage(data []byte) ([]map[string]interface{}, int, error) {
	var items []map[string]interface{}
	if err := json.Unmarshal(data, &items); err == nil {
		return items, 0, nil
	}
	var env pageEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, 0, &APIError{Resource: "workout activities", Err: fmt.Errorf("malformed page: %w", err)}
	}
	return env.Items, env.Total, nil
}

func headerTotal(h http.Header) int {
	total, _ := strconv.Atoi(h.Get("pg-total"))
	return total
}

// WorkoutActivities downloads the full activity history page by page.
// Tonal paginates with pg-offset/pg-limit request headers and reports
// the total count in the pg-total response header. Records are kept in
// the order the API delivers them. progress, if non-nil, is called
// after each page with the running and total counts.
//
// A page that fails with an HTTP error mid-run is skipped with a
// warning; a transport failure, or any failure on the first page,
// fails the whole resource.
func (c *Client) WorkoutActivities(ctx context.Context, userID string, progress func(done, total int)) ([]map[string]interface{}, error) {
	path := "/v6/users/" + url.PathEscape(userID) + "/workout-activities"

	all := make([]map[string]interface{}, 0, pageLimit)
	offset := 0
	total := 0

	for {
		resp, err := c.get(ctx, "workout activities", path, nil, map[string]string{
			"pg-offset": strconv.Itoa(offset),
			"pg-limit":  strconv.Itoa(pageLimit),
		})
		if err != nil {
			var apiErr *APIError
			if offset > 0 && errors.As(err, &apiErr) && apiErr.StatusCode != 0 {
				logger.Warn("skipping workout page",
					zap.Int("offset", offset),
					zap.Int("status", apiErr.StatusCode))
				offset += pageLimit
				if offset >= total {
					break
				}
				continue
			}
			return nil, err
		}

		items, pageTotal, err := decodePage(resp.body)
		if err != nil {
			return nil, err
		}

		if offset == 0 {
			total = headerTotal(resp.headers)
			if pageTotal > 0 {
				total = pageTotal
			}
			if total == 0 {
				// No pagination signal: treat the page as the whole set.
				total = len(items)
			}
		}

		if len(items) == 0 {
			break
		}
		all = append(all, items...)

		if progress != nil {
			done := len(all)
			if done > total {
				done = total
			}
			progress(done, total)
		}

		offset += pageLimit
		if offset >= total || len(all) >= total {
			break
		}
	}

	return all, nil
}

// WorkoutTemplate fetches one workout definition by id.
func (c *Client) WorkoutTemplate(ctx context.Context, workoutID string) (map[string]interface{}, error) {
	resp, err := c.get(ctx, "workout template", "/v6/workouts/"+url.PathEscape(workoutID), nil, nil)
	if err != nil {
		return nil, err
	}
	var template map[string]interface{}
	if err := decodeResource("workout template", resp.body, &template); err != nil {
		return nil, err
	}
	return template, nil
}

// CustomWorkouts resolves the user-created templates referenced by the
// activity list, keyed by workout id. An activity counts as custom when
// its workoutType falls outside Tonal's catalog types. Each distinct id
// is fetched once; a template that fails to fetch is skipped with a
// warning. Only context cancellation aborts the pass.
func (c *Client) CustomWorkouts(ctx context.Context, workouts []map[string]interface{}) (map[string]CustomWorkout, error) {
	var ids []string
	seen := make(map[string]struct{})
	for _, w := range workouts {
		workoutType, _ := w["workoutType"].(string)
		templateID, _ := w["workoutId"].(string)
		if templateID == "" {
			continue
		}
		if _, known := knownWorkoutTypes[workoutType]; known {
			continue
		}
		if _, dup := seen[templateID]; dup {
			continue
		}
		seen[templateID] = struct{}{}
		ids = append(ids, templateID)
	}

	custom := make(map[string]CustomWorkout, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return custom, err
		}
		template, err := c.WorkoutTemplate(ctx, id)
		if err != nil {
			logger.Warn("skipping custom workout template",
				zap.String("workout_id", id),
				zap.Error(err))
			continue
		}
		custom[id] = CustomWorkout{
			ID:     stringField(template, "id", ""),
			Title:  stringField(template, "title", ""),
			UserID: stringField(template, "userId", ""),
		}
	}

	return custom, nil
}

// StrengthScoreHistory fetches the complete strength-score series up to
// today.
func (c *Client) StrengthScoreHistory(ctx context.Context, userID string) ([]map[string]interface{}, error) {
	query := url.Values{
		"limit":   []string{"5000"},
		"endDate": []string{time.Now().Format("2006-01-02")},
	}
	resp, err := c.get(ctx, "strength score history", "/v6/users/"+url.PathEscape(userID)+"/strength-scores/history", query, nil)
	if err != nil {
		return nil, err
	}
	var history []map[string]interface{}
	if err := decodeResource("strength score history", resp.body, &history); err != nil {
		return nil, err
	}
	return history, nil
}

// CurrentStrengthScores fetches the granular per-muscle breakdown and
// parses it alongside the raw payload. Returns nil when the account has
// no granular data.
func (c *Client) CurrentStrengthScores(ctx context.Context, userID string) (*StrengthSnapshot, error) {
	resp, err := c.get(ctx, "current strength scores", "/v6/users/"+url.PathEscape(userID)+"/strength-scores/current", nil, nil)
	if err != nil {
		return nil, err
	}
	var raw []map[string]interface{}
	if err := decodeResource("current strength scores", resp.body, &raw); err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}
	return &StrengthSnapshot{
		Raw:    raw,
		Parsed: parseStrengthScores(raw),
	}, nil
}
