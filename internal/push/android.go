package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/walletd-io/walletd/internal/util"
)

// AndroidClient delivers pass update notifications to the Android wallet
// push endpoint as an authenticated JSON POST.
type AndroidClient struct {
	Endpoint   string
	APIKey     string
	HTTPClient *http.Client
}

func NewAndroidClient(endpoint, apiKey string) *AndroidClient {
	return &AndroidClient{
		Endpoint: endpoint,
		APIKey:   apiKey,
		HTTPClient: &http.Client{
			Timeout: defaultPushTimeout,
		},
	}
}

type androidMessage struct {
	PassTypeIdentifier string   `json:"passTypeIdentifier"`
	PushTokens         []string `json:"pushTokens"`
}

func (c *AndroidClient) Push(ctx context.Context, passTypeID, token string) error {
	body, err := json.Marshal(androidMessage{
		PassTypeIdentifier: passTypeID,
		PushTokens:         []string{token},
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("posting to %s: %w", c.Endpoint, err)
	}
	defer util.IgnoreError(res.Body.Close)
	_, _ = io.Copy(io.Discard, res.Body)

	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("push endpoint returned %s", res.Status)
	}
	return nil
}
