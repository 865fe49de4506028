package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const errNotRegistered = "NotRegistered"

// FCMNotifier sends collapse-keyed messages through the FCM HTTP gateway.
type FCMNotifier struct {
	client   *http.Client
	endpoint string
	apiKey   string
}

// NewFCMNotifier constructs a notifier for the given gateway endpoint and
// server API key.
func NewFCMNotifier(endpoint, apiKey string) *FCMNotifier {
	return &FCMNotifier{
		client:   &http.Client{Timeout: 10 * time.Second},
		endpoint: endpoint,
		apiKey:   apiKey,
	}
}

type fcmRequest struct {
	RegistrationIDs []string `json:"registration_ids"`
	CollapseKey     string   `json:"collapse_key,omitempty"`
}

type fcmResult struct {
	MessageID      string `json:"message_id"`
	RegistrationID string `json:"registration_id"`
	Error          string `json:"error"`
}

type fcmResponse struct {
	Success      int         `json:"success"`
	Failure      int         `json:"failure"`
	CanonicalIDs int         `json:"canonical_ids"`
	Results      []fcmResult `json:"results"`
}

// Notify posts one multicast message and maps the gateway's index-aligned
// results back onto the input addresses.
func (n *FCMNotifier) Notify(ctx context.Context, addresses []string, collapseKey string) ([]Result, error) {
	if len(addresses) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(fcmRequest{
		RegistrationIDs: addresses,
		CollapseKey:     collapseKey,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "key="+n.apiKey)

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}

	var parsed fcmResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	results := make([]Result, len(addresses))
	for i, addr := range addresses {
		results[i] = Result{Address: addr, Outcome: Delivered}
		if i >= len(parsed.Results) {
			results[i].Outcome = Failed
			continue
		}
		r := parsed.Results[i]
		switch {
		case r.Error == errNotRegistered:
			results[i].Outcome = Invalid
		case r.Error != "":
			results[i].Outcome = Failed
		case r.RegistrationID != "":
			results[i].Outcome = Rotated
			results[i].NewAddress = r.RegistrationID
		}
	}
	return results, nil
}
