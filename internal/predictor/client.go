package predictor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

type ClientConfig struct {
	URL string
	// OAuth2 client credentials; leave ClientID empty for an open endpoint.
	ClientID     string
	ClientSecret string
	TokenURL     string
	Scopes       []string
	Timeout      time.Duration
}

// Client calls a hosted classifier that accepts {"features": [...]} and
// answers {"prediction": <class>} or {"label": "<crop>"}.
type Client struct {
	httpClient *http.Client
	url        string
}

func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("predictor url is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	hc := &http.Client{Timeout: timeout}
	if cfg.ClientID != "" {
		cc := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			Scopes:       cfg.Scopes,
		}
		// Token requests reuse the same bounded client
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Timeout: timeout})
		hc = cc.Client(ctx)
		hc.Timeout = timeout
	}
	return &Client{httpClient: hc, url: cfg.URL}, nil
}

type predictRequest struct {
	Features []float64 `json:"features"`
}

type predictResponse struct {
	Prediction *int   `json:"prediction"`
	Label      string `json:"label"`
}

func (c *Client) Predict(ctx context.Context, s Soil) (Prediction, error) {
	body, err := json.Marshal(predictRequest{Features: s.Features()})
	if err != nil {
		return Prediction{}, err
	}
	var out predictResponse
	if err := c.postJSON(ctx, bytes.NewReader(body), &out); err != nil {
		return Prediction{}, err
	}
	label := strings.ToLower(strings.TrimSpace(out.Label))
	if label == "" && out.Prediction != nil {
		label = Labels[*out.Prediction]
	}
	if label == "" {
		return Prediction{}, ErrUnknownLabel
	}
	return Prediction{Crops: []string{label}, Source: "model"}, nil
}

func (c *Client) postJSON(ctx context.Context, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("predictor %s failed: %d %s", c.url, resp.StatusCode, strings.TrimSpace(string(b)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
