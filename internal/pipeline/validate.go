package pipeline

import (
	"context"
	"fmt"
	"regexp"

	"github.com/jonesrussell/gopost/internal/domain"
	"github.com/jonesrussell/gopost/internal/store"
)

// requiredProviders lists the credential providers each content kind
// needs before a job may run.
var requiredProviders = map[domain.ContentKind][]domain.Provider{
	domain.KindVideo: {domain.ProviderCerebras, domain.ProviderUnrealSpeech, domain.ProviderWorkersAI},
	domain.KindPost:  {domain.ProviderCerebras, domain.ProviderWorkersAI},
}

var hexAccountPattern = regexp.MustCompile(`^[0-9a-f]{32}$`)

// validateRequiredConfig checks every prerequisite for a job up front
// and aggregates all the missing pieces into one ValidationError, so the
// operator fixes the configuration in one pass instead of replaying the
// job once per gap.
func (r *Runner) validateRequiredConfig(ctx context.Context, sched domain.Schedule) (domain.Page, domain.Settings, error) {
	var missing []string

	for _, provider := range requiredProviders[sched.Kind] {
		active, err := r.keys.Active(ctx, provider)
		if err != nil {
			return domain.Page{}, domain.Settings{}, fmt.Errorf("load %s keys: %w", provider, err)
		}
		if len(active) == 0 {
			missing = append(missing, "api_key:"+string(provider))
			continue
		}
		if provider == domain.ProviderWorkersAI && !r.hasCloudflareAccount(active) {
			missing = append(missing, "cloudflare_account_id")
		}
	}

	page, found, err := r.findPage(ctx, sched.PageID)
	if err != nil {
		return domain.Page{}, domain.Settings{}, err
	}
	switch {
	case !found:
		missing = append(missing, "page:"+sched.PageID)
	case page.AccessToken == "":
		missing = append(missing, "page_token:"+sched.PageID)
	}

	settings, err := store.Read[domain.Settings](ctx, r.store, store.KeySettings)
	if err != nil {
		return domain.Page{}, domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}
	if sched.Kind == domain.KindVideo && settings.CatboxHash == "" {
		missing = append(missing, "catbox_hash")
	}

	if len(missing) > 0 {
		return domain.Page{}, domain.Settings{}, &domain.ValidationError{Missing: missing}
	}
	return page, settings, nil
}

// hasCloudflareAccount reports whether image generation can resolve a
// Cloudflare account, either from configuration or from a credential
// named with the account id.
func (r *Runner) hasCloudflareAccount(creds []domain.Credential) bool {
	if r.cloudflareAccountID != "" {
		return true
	}
	for _, cred := range creds {
		if hexAccountPattern.MatchString(cred.Name) {
			return true
		}
	}
	return false
}

// findPage looks up a connected page by ID.
func (r *Runner) findPage(ctx context.Context, pageID string) (domain.Page, bool, error) {
	pages, err := store.Read[[]domain.Page](ctx, r.store, store.KeyPages)
	if err != nil {
		return domain.Page{}, false, fmt.Errorf("load pages: %w", err)
	}
	for _, page := range pages {
		if page.ID == pageID {
			return page, true, nil
		}
	}
	return domain.Page{}, false, nil
}
