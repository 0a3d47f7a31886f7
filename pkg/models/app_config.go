package models

// AppConfig is the branding and default-schema configuration stored in app_config.
type AppConfig struct {
	AppName           string   `json:"app_name" yaml:"app_name"`
	OrganizationName  string   `json:"organization_name" yaml:"organization_name"`
	OrganizationShort string   `json:"organization_short" yaml:"organization_short"`
	LogoURL           string   `json:"logo_url" yaml:"logo_url"`
	DefaultColumns    []Column `json:"default_columns" yaml:"default_columns"`
}

// DefaultAppConfig returns the configuration used when app_config is empty or unreachable.
func DefaultAppConfig() AppConfig {
	return AppConfig{
		AppName:           "Tableau de Bord FEG",
		OrganizationName:  "Fédération des Entreprises du Gabon",
		OrganizationShort: "FEG",
		LogoURL:           "/images/logo-feg.png",
		DefaultColumns:    DefaultColumns(),
	}
}
