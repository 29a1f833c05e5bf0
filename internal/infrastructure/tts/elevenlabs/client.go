package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kirillkom/ride-progress/internal/core/domain"
	"github.com/kirillkom/ride-progress/internal/infrastructure/resilience"
)

const (
	DefaultBaseURL = "https://api.elevenlabs.io"
	DefaultVoiceID = "JBFqnCBsd6RMkjVDRZzb"
	DefaultModelID = "eleven_turbo_v2_5"

	outputFormat = "mp3_44100_128"
	audioMime    = "audio/mpeg"
	maxAudioSize = 16 << 20
)

type Config struct {
	BaseURL string
	APIKey  string
	VoiceID string
	ModelID string
	Timeout time.Duration
}

type VoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
}

// Synthesizer converts review text into spoken audio. Calls are not retried;
// the breaker still guards the upstream.
type Synthesizer struct {
	cfg        Config
	settings   VoiceSettings
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(cfg Config, executor *resilience.Executor) *Synthesizer {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.VoiceID == "" {
		cfg.VoiceID = DefaultVoiceID
	}
	if cfg.ModelID == "" {
		cfg.ModelID = DefaultModelID
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if executor == nil {
		executor = resilience.NewExecutor(resilience.DefaultConfig().NoRetry())
	} else {
		executor = resilience.NewExecutor(executor.Config().NoRetry()).WithObserver(executor.Observer())
	}
	return &Synthesizer{
		cfg: cfg,
		settings: VoiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.75,
			Style:           0.3,
			UseSpeakerBoost: true,
		},
		httpClient: &http.Client{Timeout: 2 * time.Minute},
		executor:   executor,
	}
}

type synthesizeRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings VoiceSettings `json:"voice_settings"`
}

func (s *Synthesizer) Synthesize(ctx context.Context, text string) ([]byte, string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, "", domain.WrapError(domain.ErrInvalidInput, "synthesize speech", errors.New("empty text"))
	}
	if s.cfg.APIKey == "" {
		return nil, "", domain.WrapError(domain.ErrUnauthorized, "synthesize speech", errors.New("api key is not configured"))
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	audio, err := resilience.Do(ctx, s.executor, "tts.synthesize", func(callCtx context.Context) ([]byte, error) {
		return s.post(callCtx, text)
	}, nil)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || resilience.IsCircuitOpen(err) {
			return nil, "", domain.WrapError(domain.ErrTemporary, "synthesize speech", err)
		}
		return nil, "", err
	}
	return audio, audioMime, nil
}

func (s *Synthesizer) post(ctx context.Context, text string) ([]byte, error) {
	body, err := json.Marshal(synthesizeRequest{Text: text, ModelID: s.cfg.ModelID, VoiceSettings: s.settings})
	if err != nil {
		return nil, fmt.Errorf("marshal tts request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/text-to-speech/%s?output_format=%s", s.cfg.BaseURL, url.PathEscape(s.cfg.VoiceID), outputFormat)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create tts request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", audioMime)
	req.Header.Set("xi-api-key", s.cfg.APIKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tts request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		msg := strings.TrimSpace(string(raw))
		switch resp.StatusCode {
		case http.StatusTooManyRequests:
			return nil, domain.WrapError(domain.ErrRateLimited, "tts", fmt.Errorf("status %s: %s", resp.Status, msg))
		case http.StatusUnauthorized, http.StatusForbidden:
			return nil, domain.WrapError(domain.ErrUnauthorized, "tts", fmt.Errorf("status %s: %s", resp.Status, msg))
		}
		return nil, fmt.Errorf("elevenlabs tts status: %s: %s", resp.Status, msg)
	}

	audio, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioSize))
	if err != nil {
		return nil, fmt.Errorf("read tts audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, errors.New("elevenlabs tts returned empty audio")
	}
	return audio, nil
}
