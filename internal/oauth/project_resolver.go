package oauth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const codeAssistBaseURL = "https://cloudcode-pa.googleapis.com"

// ProjectResolver discovers a credential's upstream project_id via the
// load/onboard probe sequence (SPEC_FULL.md §4.4), grounded on
// original_source's fetch_project_id / _try_load_code_assist /
// _try_onboard_user / _get_onboard_tier polling logic.
type ProjectResolver struct {
	httpClient *http.Client
	baseURL    string
	sleep      func(time.Duration)
}

// NewProjectResolver constructs a ProjectResolver with sane defaults.
func NewProjectResolver() *ProjectResolver {
	return &ProjectResolver{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    codeAssistBaseURL,
		sleep:      time.Sleep,
	}
}

type loadCodeAssistResponse struct {
	CurrentTier          json.RawMessage `json:"currentTier"`
	CloudaicompanionProject string       `json:"cloudaicompanionProject"`
	AllowedTiers         []struct {
		ID      string `json:"id"`
		Default bool   `json:"isDefault"`
	} `json:"allowedTiers"`
}

type onboardUserResponse struct {
	Done     bool `json:"done"`
	Response struct {
		CloudaicompanionProject json.RawMessage `json:"cloudaicompanionProject"`
	} `json:"response"`
}

const (
	onboardPollAttempts = 5
	onboardPollInterval = 2 * time.Second
)

// Resolve performs the two-step probe and returns the discovered project_id.
func (r *ProjectResolver) Resolve(ctx context.Context, accessToken string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	load, err := r.loadCodeAssist(ctx, accessToken)
	if err != nil {
		return "", err
	}
	if len(load.CurrentTier) > 0 && string(load.CurrentTier) != "null" {
		if load.CloudaicompanionProject != "" {
			return load.CloudaicompanionProject, nil
		}
	}

	tier := "LEGACY"
	for _, t := range load.AllowedTiers {
		if t.Default {
			tier = t.ID
			break
		}
	}

	return r.onboardUser(ctx, accessToken, tier)
}

func (r *ProjectResolver) loadCodeAssist(ctx context.Context, accessToken string) (*loadCodeAssistResponse, error) {
	body := map[string]any{
		"metadata": map[string]any{
			"ideType":    "IDE_UNSPECIFIED",
			"platform":   "PLATFORM_UNSPECIFIED",
			"pluginType": "GEMINI",
		},
	}
	var out loadCodeAssistResponse
	if err := r.post(ctx, accessToken, "/v1internal:loadCodeAssist", body, &out); err != nil {
		return nil, fmt.Errorf("oauth: loadCodeAssist: %w", err)
	}
	return &out, nil
}

func (r *ProjectResolver) onboardUser(ctx context.Context, accessToken, tierID string) (string, error) {
	body := map[string]any{
		"tierId": tierID,
		"metadata": map[string]any{
			"ideType":    "IDE_UNSPECIFIED",
			"platform":   "PLATFORM_UNSPECIFIED",
			"pluginType": "GEMINI",
		},
	}

	for attempt := 0; attempt < onboardPollAttempts; attempt++ {
		var out onboardUserResponse
		if err := r.post(ctx, accessToken, "/v1internal:onboardUser", body, &out); err != nil {
			return "", fmt.Errorf("oauth: onboardUser: %w", err)
		}
		if out.Done {
			return extractProjectID(out.Response.CloudaicompanionProject)
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}
		if attempt < onboardPollAttempts-1 {
			r.sleep(onboardPollInterval)
		}
	}
	return "", fmt.Errorf("oauth: onboardUser did not complete after %d polls", onboardPollAttempts)
}

// extractProjectID handles both the flat-string and nested-object shapes
// the long-running operation's response field may take.
func extractProjectID(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", fmt.Errorf("oauth: empty cloudaicompanionProject in onboard response")
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil && asString != "" {
		return asString, nil
	}
	var asObject struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &asObject); err == nil && asObject.ID != "" {
		return asObject.ID, nil
	}
	return "", fmt.Errorf("oauth: unrecognised cloudaicompanionProject shape")
}

func (r *ProjectResolver) post(ctx context.Context, accessToken, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
