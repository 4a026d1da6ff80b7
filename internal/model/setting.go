package model

// Setting names accepted by the admin settings endpoint.
const (
	SettingAllowRegistration   = "allowRegistration"
	SettingRequireVerification = "requireVerification"
)

// KnownSetting reports whether name is a recognised setting.
func KnownSetting(name string) bool {
	return name == SettingAllowRegistration || name == SettingRequireVerification
}

// Settings is the resolved view of app_settings. Missing rows default to true.
type Settings struct {
	AllowRegistration   bool `json:"allowRegistration"`
	RequireVerification bool `json:"requireVerification"`
}

// DefaultSettings is used when app_settings has no row for a name.
func DefaultSettings() Settings {
	return Settings{AllowRegistration: true, RequireVerification: true}
}

// UserStats backs the admin dashboard counters.
type UserStats struct {
	Total    int `db:"total" json:"total"`
	Active   int `db:"active" json:"active"`
	Admins   int `db:"admins" json:"admins"`
	Verified int `db:"verified" json:"verified"`
}
