package voice

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/okoshkin/dubedit/internal/common"
	"github.com/okoshkin/dubedit/internal/filex"
	"github.com/okoshkin/dubedit/internal/logging"
)

// HTTPSynthesizer calls a TTS service over HTTP and writes the returned
// audio under audioDir/<projectID>/. Transient failures (network, 5xx) are
// retried with exponential backoff; client errors are terminal.
type HTTPSynthesizer struct {
	baseURL  string
	apiKey   string
	audioDir string
	client   *http.Client
	log      logging.Logger
}

func NewHTTPSynthesizer(baseURL, apiKey, audioDir string, client *http.Client, log logging.Logger) *HTTPSynthesizer {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &HTTPSynthesizer{
		baseURL:  baseURL,
		apiKey:   apiKey,
		audioDir: audioDir,
		client:   client,
		log:      log,
	}
}

type synthesisRequest struct {
	VoiceID string  `json:"voice_id"`
	Text    string  `json:"text"`
	Speed   float64 `json:"speed,omitempty"`
	Pitch   float64 `json:"pitch,omitempty"`
}

type synthesisResponse struct {
	Audio      string `json:"audio"` // base64 WAV
	DurationMs int64  `json:"duration_ms"`
}

func (s *HTTPSynthesizer) GenerateSingle(ctx context.Context, req Request) (Result, error) {
	if req.VoiceID == "" {
		return Result{}, fmt.Errorf("voice id required: %w", common.ErrNoVoice)
	}

	body, err := json.Marshal(synthesisRequest{
		VoiceID: req.VoiceID,
		Text:    req.Text,
		Speed:   req.SpeedAdjustment,
		Pitch:   req.PitchAdjustment,
	})
	if err != nil {
		return Result{}, fmt.Errorf("encode synthesis request: %w", err)
	}

	var resp synthesisResponse
	backoff := retry.WithMaxRetries(3, retry.NewExponential(500*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
			s.baseURL+"/v1/synthesize", bytes.NewReader(body))
		if err != nil {
			return err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		if s.apiKey != "" {
			httpReq.Header.Set("Authorization", "Bearer "+s.apiKey)
		}

		httpResp, err := s.client.Do(httpReq)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer httpResp.Body.Close()

		if httpResp.StatusCode >= 500 {
			s.log.Warn(ctx, "synthesis server error, retrying",
				"segment", req.SegmentID, "status", httpResp.StatusCode)
			return retry.RetryableError(fmt.Errorf("synthesis service returned %d", httpResp.StatusCode))
		}
		if httpResp.StatusCode != http.StatusOK {
			msg, _ := io.ReadAll(io.LimitReader(httpResp.Body, 4096))
			return fmt.Errorf("synthesis failed with %d: %s", httpResp.StatusCode, msg)
		}

		return json.NewDecoder(httpResp.Body).Decode(&resp)
	})
	if err != nil {
		return Result{}, err
	}

	audio, err := base64.StdEncoding.DecodeString(resp.Audio)
	if err != nil {
		return Result{}, fmt.Errorf("decode synthesis audio: %w", err)
	}

	dir, err := filex.EnsureProjectDir(s.audioDir, req.ProjectID)
	if err != nil {
		return Result{}, err
	}
	path := filepath.Join(dir, req.SegmentID+".wav")
	if err := os.WriteFile(path, audio, 0o660); err != nil {
		return Result{}, fmt.Errorf("write audio file: %w", err)
	}

	return Result{AudioPath: path, DurationMs: resp.DurationMs}, nil
}
