package driving

import "github.com/Qingzhee/rag-engine/internal/core/domain"

// SettingsService resolves the effective configuration.
type SettingsService interface {
	// Load merges defaults, the config file and environment overrides, then validates.
	Load() (domain.Config, error)

	// Set persists a single dot-notation key to the config file.
	Set(key string, value any) error

	// GetDefaults returns default settings.
	GetDefaults() domain.Config
}
