package domain

import "time"

// Provider identifies an external generation service category.
type Provider string

const (
	ProviderCerebras     Provider = "cerebras"     // LLM script generation
	ProviderUnrealSpeech Provider = "unrealspeech" // TTS voiceover
	ProviderWorkersAI    Provider = "workers-ai"   // image generation
)

// Providers lists all registered provider categories.
var Providers = []Provider{ProviderCerebras, ProviderUnrealSpeech, ProviderWorkersAI}

// ValidProvider reports whether p names a registered provider.
func ValidProvider(p Provider) bool {
	for _, known := range Providers {
		if known == p {
			return true
		}
	}
	return false
}

// Credential status values. Deactivation is a manual status flip; the
// failover layer never changes status on its own.
const (
	CredentialActive   = "active"
	CredentialInactive = "inactive"
)

// Credential is one registered API key for a provider. Usage counters
// are monotonically non-decreasing and only updated by failover attempts.
type Credential struct {
	ID           string     `json:"id"`
	Provider     Provider   `json:"provider"`
	Name         string     `json:"name"`
	Key          string     `json:"key"`
	LastUsed     *time.Time `json:"lastUsed,omitempty"`
	SuccessCount int        `json:"successCount"`
	FailCount    int        `json:"failCount"`
	Status       string     `json:"status"`
}

// Active reports whether the credential participates in failover.
func (c Credential) Active() bool {
	return c.Status == CredentialActive
}
