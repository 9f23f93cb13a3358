package rtcroom

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// maxAnswerSize bounds the SDP answer read from the signalling endpoint.
const maxAnswerSize = 64 << 10

// Signaler exchanges a complete SDP offer for the remote answer.
type Signaler interface {
	Exchange(ctx context.Context, offer string) (answer string, err error)
}

// SignalerFunc adapts a function to a Signaler.
type SignalerFunc func(ctx context.Context, offer string) (string, error)

func (f SignalerFunc) Exchange(ctx context.Context, offer string) (string, error) {
	return f(ctx, offer)
}

// HTTPSignaler posts the offer as application/sdp and reads the answer
// from the response body.
type HTTPSignaler struct {
	URL    string
	Token  string
	Client *http.Client
}

func (s *HTTPSignaler) Exchange(ctx context.Context, offer string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, strings.NewReader(offer))
	if err != nil {
		return "", fmt.Errorf("build signaling request: %w", err)
	}
	req.Header.Set("Content-Type", "application/sdp")
	if s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}

	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("post offer: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxAnswerSize))
	if err != nil {
		return "", fmt.Errorf("read answer: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("signaling returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	if len(body) == 0 {
		return "", fmt.Errorf("signaling returned an empty answer")
	}
	return string(body), nil
}
