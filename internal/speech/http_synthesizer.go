package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"
)

// fallbackSignal is the error code the premium gateway uses to send the
// client to the fallback engine.
const fallbackSignal = "FALLBACK_TO_WEB_TTS"

type synthesizeRequest struct {
	Text     string  `json:"text"`
	VoiceID  string  `json:"voiceId"`
	Speed    float64 `json:"speed"`
	Language string  `json:"language"`
}

type synthesizeResponse struct {
	Audio     string `json:"audio"`
	AudioSize int    `json:"audioSize"`
	Cached    bool   `json:"cached"`
	Error     string `json:"error"`
	Reason    string `json:"reason"`
}

// HTTPSynthesizer calls a premium synthesis gateway that answers with
// base64 audio.
type HTTPSynthesizer struct {
	url      string
	token    string
	speed    float64
	language string
	client   *http.Client
}

func NewHTTPSynthesizer(url, token string, timeout time.Duration) *HTTPSynthesizer {
	return &HTTPSynthesizer{
		url:      url,
		token:    token,
		speed:    1.0,
		language: "hi-IN",
		client:   &http.Client{Timeout: timeout},
	}
}

// WithSpeed sets the playback speed sent to the gateway, clamped to [0.5, 2].
func (h *HTTPSynthesizer) WithSpeed(speed float64) *HTTPSynthesizer {
	h.speed = math.Max(0.5, math.Min(2.0, speed))
	return h
}

func (h *HTTPSynthesizer) Synthesize(ctx context.Context, text, voiceID string) ([]byte, error) {
	body, err := json.Marshal(synthesizeRequest{Text: text, VoiceID: voiceID, Speed: h.speed, Language: h.language})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("synthesis request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("read synthesis response: %w", err)
	}
	var out synthesizeResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode synthesis response (status %d): %w", resp.StatusCode, err)
	}
	if out.Error == fallbackSignal {
		return nil, ErrFallbackRequested
	}
	if out.Error != "" {
		return nil, fmt.Errorf("synthesis failed: %s", out.Error)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("synthesis failed with status %d", resp.StatusCode)
	}
	if out.Audio == "" {
		return nil, errors.New("no audio data received")
	}
	audio, err := base64.StdEncoding.DecodeString(out.Audio)
	if err != nil {
		return nil, fmt.Errorf("decode audio: %w", err)
	}
	return audio, nil
}
