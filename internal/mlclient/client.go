// Package mlclient provides an HTTP client for the ML categorization service.
package mlclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Correction is the payload sent when a user overrides a category.
type Correction struct {
	UserID                string `json:"user_id"`
	Description           string `json:"description"`
	OriginalCategoryID    *int   `json:"original_category_id"`
	CorrectedCategoryID   *int   `json:"corrected_category_id"`
	OriginalCategoryName  string `json:"original_category_name"`
	CorrectedCategoryName string `json:"corrected_category_name"`
}

// ModelStatus reports when the user's personal model was last retrained.
// The timestamp is passed through in whatever form the service uses.
type ModelStatus struct {
	LastTrained json.RawMessage `json:"last_trained,omitempty" swaggertype:"string"`
}

// Client communicates with the ML categorization service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new ML service client. baseURL includes the API
// prefix, e.g. http://127.0.0.1:8000/api/v1.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// Categorize asks the service for a category for description.
func (c *Client) Categorize(ctx context.Context, userID, description string) (Prediction, error) {
	body := struct {
		Description string `json:"description"`
		UserID      string `json:"user_id"`
	}{Description: description, UserID: userID}

	resp, err := c.postJSON(ctx, "/categorize", body)
	if err != nil {
		return Prediction{}, fmt.Errorf("categorizing: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return Prediction{}, fmt.Errorf("categorizing: unexpected status %d", resp.StatusCode)
	}

	var p Prediction
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return Prediction{}, fmt.Errorf("decoding categorize response: %w", err)
	}
	return p, nil
}

// SubmitCorrection sends a correction record. The response body is ignored.
func (c *Client) SubmitCorrection(ctx context.Context, correction Correction) error {
	resp, err := c.postJSON(ctx, "/submit-correction", correction)
	if err != nil {
		return fmt.Errorf("submitting correction: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("submitting correction: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// GetModelStatus fetches the training status of the user's model.
func (c *Client) GetModelStatus(ctx context.Context, userID string) (*ModelStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/user-model-status/"+url.PathEscape(userID), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching model status: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching model status: unexpected status %d", resp.StatusCode)
	}

	var status ModelStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decoding model status response: %w", err)
	}
	return &status, nil
}

func (c *Client) postJSON(ctx context.Context, path string, body any) (*http.Response, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.httpClient.Do(req)
}
