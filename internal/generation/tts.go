package generation

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/jonesrussell/gopost/internal/domain"
	"github.com/jonesrussell/gopost/internal/keys"
	"github.com/jonesrussell/gopost/internal/logger"
)

const (
	ttsTimeout = 45 * time.Second
	// ttsChunkLen is the maximum text length per fallback TTS request.
	ttsChunkLen = 180

	googleTTSEndpoint = "https://translate.google.com/translate_tts"
)

// defaultTTSEndpoints are tried in order within a single credential
// attempt; the provider has a legacy and a v8 streaming host.
var defaultTTSEndpoints = []string{
	"https://api.unrealspeech.com/stream",
	"https://api.v8.unrealspeech.com/stream",
}

type ttsRequest struct {
	Text    string `json:"Text"`
	VoiceID string `json:"VoiceId"`
	Bitrate string `json:"Bitrate"`
	Speed   string `json:"Speed"`
	Pitch   string `json:"Pitch"`
}

// VoiceGenerator renders narration audio. The primary path is the TTS
// provider behind credential failover; when every credential fails it
// falls back to the free translate endpoint, chunking long text.
type VoiceGenerator struct {
	keys      *keys.Service
	client    *http.Client
	assets    *Assets
	logger    logger.Logger
	endpoints []string
	fallback  string
}

// NewVoiceGenerator creates a VoiceGenerator.
func NewVoiceGenerator(keySvc *keys.Service, client *http.Client, assets *Assets, log logger.Logger) *VoiceGenerator {
	if client == nil {
		client = &http.Client{Timeout: ttsTimeout}
	}
	return &VoiceGenerator{
		keys:      keySvc,
		client:    client,
		assets:    assets,
		logger:    log,
		endpoints: defaultTTSEndpoints,
		fallback:  googleTTSEndpoint,
	}
}

// WithEndpoints overrides the provider endpoints; used by tests.
func (v *VoiceGenerator) WithEndpoints(primary []string, fallback string) *VoiceGenerator {
	v.endpoints = primary
	v.fallback = fallback
	return v
}

// GenerateVoiceover renders text to an mp3 file for the job and returns
// its path.
func (v *VoiceGenerator) GenerateVoiceover(ctx context.Context, text, jobID string) (string, error) {
	path, err := keys.WithFailover(ctx, v.keys, domain.ProviderUnrealSpeech,
		func(ctx context.Context, cred domain.Credential) (string, error) {
			return v.generateWithProvider(ctx, cred, text, jobID)
		})
	if err == nil {
		return path, nil
	}

	v.logger.Warn("TTS provider failed; falling back to free TTS", logger.Error(err))
	return v.generateWithFallback(ctx, text, jobID)
}

// generateWithProvider tries each provider endpoint with one credential.
func (v *VoiceGenerator) generateWithProvider(ctx context.Context, cred domain.Credential, text, jobID string) (string, error) {
	var lastErr error

	for _, endpoint := range v.endpoints {
		audio, err := doJSON(ctx, v.client, "tts stream", endpoint, ttsRequest{
			Text:    text,
			VoiceID: "Will",
			Bitrate: "192k",
			Speed:   "0",
			Pitch:   "1.0",
		}, map[string]string{
			"Authorization": "Bearer " + cred.Key,
		})
		if err != nil {
			lastErr = err
			continue
		}

		path := v.assets.AudioPath(jobID)
		if err := os.WriteFile(path, audio, 0o644); err != nil {
			return "", fmt.Errorf("write voiceover: %w", err)
		}
		return path, nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("tts stream: no endpoints configured")
	}
	return "", lastErr
}

// generateWithFallback renders text chunk by chunk via the free
// translate endpoint and concatenates the mp3 parts.
func (v *VoiceGenerator) generateWithFallback(ctx context.Context, text, jobID string) (string, error) {
	var audio []byte

	for _, chunk := range chunkText(text, ttsChunkLen) {
		endpoint := v.fallback + "?" + url.Values{
			"ie":     {"UTF-8"},
			"client": {"tw-ob"},
			"tl":     {"en"},
			"q":      {chunk},
		}.Encode()

		part, err := doGet(ctx, v.client, "fallback tts", endpoint, map[string]string{
			"User-Agent": "Mozilla/5.0",
		})
		if err != nil {
			return "", err
		}
		audio = append(audio, part...)
	}

	path := v.assets.AudioPath(jobID)
	if err := os.WriteFile(path, audio, 0o644); err != nil {
		return "", fmt.Errorf("write voiceover: %w", err)
	}
	return path, nil
}

// chunkText splits text into word-aligned chunks no longer than maxLen.
func chunkText(text string, maxLen int) []string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		if len(text) > maxLen {
			return []string{text[:maxLen]}
		}
		return []string{text}
	}

	chunks := make([]string, 0, len(text)/maxLen+1)
	current := ""

	for _, word := range fields {
		next := word
		if current != "" {
			next = current + " " + word
		}
		if len(next) <= maxLen {
			current = next
			continue
		}
		if current != "" {
			chunks = append(chunks, current)
		}
		current = word
	}
	if current != "" {
		chunks = append(chunks, current)
	}
	return chunks
}
