// Package oracle provides clients for the external model services: named
// entity recognition and sentiment scoring. Both models are opaque; the
// clients POST text and decode the labelled output.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultTimeout   = 60 * time.Second
	maxResponseBytes = 16 * 1024 * 1024 // 16 MB
)

// Span is one recognised entity returned by the NER service. Character
// offsets are measured against the submitted text.
type Span struct {
	Text      string `json:"text"`
	Label     string `json:"label"`
	StartChar int    `json:"start_char"`
	EndChar   int    `json:"end_char"`
}

// Sentiment is the label and confidence returned by the sentiment service.
type Sentiment struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

type textRequest struct {
	Text string `json:"text"`
}

// NERClient calls a remote named-entity-recognition service.
type NERClient struct {
	url        string
	httpClient *http.Client
}

// NewNERClient creates an NER client for the given endpoint. A nil
// httpClient gets a default one with a generous model-inference timeout.
func NewNERClient(url string, httpClient *http.Client) *NERClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &NERClient{url: url, httpClient: httpClient}
}

// Recognize submits text and returns the recognised spans.
func (c *NERClient) Recognize(ctx context.Context, text string) ([]Span, error) {
	var out struct {
		Entities []Span `json:"entities"`
	}
	if err := postJSON(ctx, c.httpClient, c.url, textRequest{Text: text}, &out); err != nil {
		return nil, fmt.Errorf("ner request: %w", err)
	}
	return out.Entities, nil
}

// SentimentClient calls a remote sentiment-classification service.
type SentimentClient struct {
	url        string
	httpClient *http.Client
}

// NewSentimentClient creates a sentiment client for the given endpoint.
func NewSentimentClient(url string, httpClient *http.Client) *SentimentClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &SentimentClient{url: url, httpClient: httpClient}
}

// Analyze submits text and returns the model's label and confidence.
func (c *SentimentClient) Analyze(ctx context.Context, text string) (Sentiment, error) {
	var out Sentiment
	if err := postJSON(ctx, c.httpClient, c.url, textRequest{Text: text}, &out); err != nil {
		return Sentiment{}, fmt.Errorf("sentiment request: %w", err)
	}
	return out, nil
}

func postJSON(ctx context.Context, client *http.Client, url string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}
