package generation

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/jonesrussell/gopost/internal/domain"
	"github.com/jonesrussell/gopost/internal/keys"
	"github.com/jonesrussell/gopost/internal/logger"
)

const (
	imageTimeout = 90 * time.Second

	workersAIModel = "@cf/black-forest-labs/flux-1-schnell"

	defaultWorkersAIBase   = "https://api.cloudflare.com/client/v4/accounts"
	defaultPollinationsURL = "https://image.pollinations.ai/prompt"
	defaultPlaceholderURL  = "https://picsum.photos/1080/1920"
)

// accountIDPattern matches a Cloudflare account identifier embedded in a
// credential label.
var accountIDPattern = regexp.MustCompile(`^[0-9a-f]{32}$`)

type workersAIRequest struct {
	Prompt string `json:"prompt"`
}

type workersAIResponse struct {
	Result struct {
		Image string `json:"image"`
	} `json:"result"`
	Success bool `json:"success"`
}

// ImageGenerator renders scene images. Workers AI behind credential
// failover is the primary path; Pollinations and a stock placeholder are
// free fallbacks so a video job never dies on image generation alone.
type ImageGenerator struct {
	keys      *keys.Service
	client    *http.Client
	assets    *Assets
	logger    logger.Logger
	accountID string

	workersBase      string
	pollinationsBase string
	placeholderURL   string
}

// NewImageGenerator creates an ImageGenerator. accountID is the
// Cloudflare account the Workers AI credentials belong to; it may be
// empty when every credential carries the account in its label.
func NewImageGenerator(keySvc *keys.Service, client *http.Client, assets *Assets, accountID string, log logger.Logger) *ImageGenerator {
	if client == nil {
		client = &http.Client{Timeout: imageTimeout}
	}
	return &ImageGenerator{
		keys:             keySvc,
		client:           client,
		assets:           assets,
		logger:           log,
		accountID:        accountID,
		workersBase:      defaultWorkersAIBase,
		pollinationsBase: defaultPollinationsURL,
		placeholderURL:   defaultPlaceholderURL,
	}
}

// WithEndpoints overrides the upstream endpoints; used by tests.
func (g *ImageGenerator) WithEndpoints(workersBase, pollinationsBase, placeholderURL string) *ImageGenerator {
	g.workersBase = workersBase
	g.pollinationsBase = pollinationsBase
	g.placeholderURL = placeholderURL
	return g
}

// GenerateImage renders one scene image and returns the file path.
func (g *ImageGenerator) GenerateImage(ctx context.Context, prompt, jobID string, sceneIdx int) (string, error) {
	data, err := keys.WithFailover(ctx, g.keys, domain.ProviderWorkersAI,
		func(ctx context.Context, cred domain.Credential) ([]byte, error) {
			return g.generateWithWorkersAI(ctx, cred, prompt)
		})
	if err != nil {
		g.logger.Warn("Workers AI image failed; trying free generator",
			logger.Int("scene", sceneIdx), logger.Error(err))
		data, err = g.generateWithPollinations(ctx, prompt)
	}
	if err != nil {
		g.logger.Warn("free image generator failed; using placeholder",
			logger.Int("scene", sceneIdx), logger.Error(err))
		data, err = doGet(ctx, g.client, "placeholder image", g.placeholderURL, nil)
	}
	if err != nil {
		return "", err
	}

	return g.assets.WriteImage(jobID, sceneIdx, data)
}

// accountFor resolves the Cloudflare account for a credential. A 32-hex
// credential name wins over the configured account.
func (g *ImageGenerator) accountFor(cred domain.Credential) (string, error) {
	if accountIDPattern.MatchString(cred.Name) {
		return cred.Name, nil
	}
	if g.accountID != "" {
		return g.accountID, nil
	}
	return "", fmt.Errorf("image generation: no Cloudflare account id configured")
}

func (g *ImageGenerator) generateWithWorkersAI(ctx context.Context, cred domain.Credential, prompt string) ([]byte, error) {
	account, err := g.accountFor(cred)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/%s/ai/run/%s", g.workersBase, account, workersAIModel)
	raw, err := doJSON(ctx, g.client, "workers ai image", endpoint, workersAIRequest{
		Prompt: prompt,
	}, map[string]string{
		"Authorization": "Bearer " + cred.Key,
	})
	if err != nil {
		return nil, err
	}

	var parsed workersAIResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("workers ai image: decode response: %w", err)
	}
	if !parsed.Success || parsed.Result.Image == "" {
		return nil, fmt.Errorf("workers ai image: empty result")
	}
	return decodeBase64Image(parsed.Result.Image)
}

// decodeBase64Image decodes the base64 payload Workers AI returns for
// image models.
func decodeBase64Image(encoded string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("workers ai image: decode payload: %w", err)
	}
	return data, nil
}

func (g *ImageGenerator) generateWithPollinations(ctx context.Context, prompt string) ([]byte, error) {
	endpoint := g.pollinationsBase + "/" + url.PathEscape(prompt) + "?" + url.Values{
		"width":   {"1080"},
		"height":  {"1920"},
		"nologo":  {"true"},
		"enhance": {"true"},
	}.Encode()

	return doGet(ctx, g.client, "pollinations image", endpoint, nil)
}
