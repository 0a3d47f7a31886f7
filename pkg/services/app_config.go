package services

import (
	"context"
	"encoding/json"

	"collab-tracker-backend/pkg/database"
	"collab-tracker-backend/pkg/models"

	"go.uber.org/zap"
)

// App config keys stored in app_config.
const (
	KeyAppName           = "app_name"
	KeyOrganizationName  = "organization_name"
	KeyOrganizationShort = "organization_short"
	KeyLogoURL           = "logo_url"
	KeyDefaultColumns    = "default_columns"
)

// AppConfigService reads branding and the installation-wide default columns.
type AppConfigService struct {
	base
	defaults models.AppConfig
}

// NewAppConfigService uses defaults for every key missing from the store.
func NewAppConfigService(store database.DatabaseInterface, defaults models.AppConfig, opts ...Option) *AppConfigService {
	if len(defaults.DefaultColumns) == 0 {
		defaults.DefaultColumns = models.DefaultColumns()
	}
	return &AppConfigService{base: newBase(store, opts), defaults: defaults}
}

// Load never fails: store errors and undecodable values fall back to the
// defaults and are logged.
func (s *AppConfigService) Load(ctx context.Context) models.AppConfig {
	cfg := s.defaults
	cfg.DefaultColumns = models.CloneColumns(s.defaults.DefaultColumns)

	rows, err := s.store.ListAppConfig(ctx)
	if err != nil {
		s.log.Warn("app config unavailable, using defaults", zap.Error(err))
		return cfg
	}

	strs := map[string]*string{
		KeyAppName:           &cfg.AppName,
		KeyOrganizationName:  &cfg.OrganizationName,
		KeyOrganizationShort: &cfg.OrganizationShort,
		KeyLogoURL:           &cfg.LogoURL,
	}
	for key, dst := range strs {
		raw, ok := rows[key]
		if !ok {
			continue
		}
		var v string
		if err := json.Unmarshal(raw, &v); err != nil || v == "" {
			s.log.Warn("ignoring app config value", zap.String("key", key), zap.Error(err))
			continue
		}
		*dst = v
	}

	if raw, ok := rows[KeyDefaultColumns]; ok {
		var cols []models.Column
		if err := json.Unmarshal(raw, &cols); err != nil || len(cols) == 0 {
			s.log.Warn("ignoring app config value", zap.String("key", KeyDefaultColumns), zap.Error(err))
		} else {
			cfg.DefaultColumns = cols
		}
	}
	return cfg
}
