// Package shipment talks to the customer's shipment-submission endpoint.
// The endpoint is an external collaborator: one blocking request per
// submit, no internal retry, an opaque confirmation id on success.
package shipment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"skidbuild/models"
)

// Submission is the completed session payload sent to the customer.
type Submission struct {
	OrderNumber string                   `json:"order_number"`
	SessionID   string                   `json:"session_id"`
	Details     []models.ScanDetail      `json:"details"`
	Exceptions  []models.ExceptionRecord `json:"exceptions,omitempty"`
}

// Submitter accepts a completed session and returns an opaque
// confirmation identifier.
type Submitter interface {
	Submit(ctx context.Context, sub Submission) (confirmationID string, err error)
}

// SubmissionError is a failed collaborator call. The message is the
// opaque error text the customer endpoint returned.
type SubmissionError struct {
	Status  int
	Message string
}

func (e *SubmissionError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("shipment submission failed (%d): %s", e.Status, e.Message)
	}
	return "shipment submission failed: " + e.Message
}

// Client submits sessions over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) Submit(ctx context.Context, sub Submission) (string, error) {
	body, err := json.Marshal(sub)
	if err != nil {
		return "", fmt.Errorf("marshal submission: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/shipments", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build submission request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &SubmissionError{Message: err.Error()}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &SubmissionError{Status: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
	}

	var out struct {
		ConfirmationID string `json:"confirmation_id"`
	}
	if err := json.Unmarshal(respBody, &out); err != nil || out.ConfirmationID == "" {
		return "", &SubmissionError{Status: resp.StatusCode, Message: "missing confirmation id in response"}
	}
	return out.ConfirmationID, nil
}
