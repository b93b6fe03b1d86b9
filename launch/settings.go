package launch

import (
	"github.com/kbukum/primepos-supervisor/config"
	"github.com/kbukum/primepos-supervisor/logger"
	"github.com/kbukum/primepos-supervisor/util"
)

// DefaultMode is used when NODE_ENV is not set.
const DefaultMode = "development"

// Settings is the typed view of the variables the server reads.
type Settings struct {
	Mode        string `mapstructure:"node_env"`
	Port        string `mapstructure:"port"`
	DatabaseURL string `mapstructure:"database_url"`
}

// DecodeSettings reads Settings out of env. Missing values are not an error;
// use Missing to report them.
func DecodeSettings(env *Environment) (Settings, error) {
	var s Settings
	if err := config.DecodeEnviron(env.vars, &s); err != nil {
		return Settings{}, err
	}
	if s.Mode == "" {
		s.Mode = DefaultMode
	}
	return s, nil
}

// IsProduction reports whether the server runs in production mode.
func (s Settings) IsProduction() bool {
	return s.Mode == "production"
}

// Missing lists the variables the server expects but did not get.
func (s Settings) Missing() []string {
	var missing []string
	if s.Port == "" {
		missing = append(missing, "PORT")
	}
	if s.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	return missing
}

// LogFields returns the settings as log fields with the database URL masked.
func (s Settings) LogFields() map[string]interface{} {
	fields := logger.Fields("mode", s.Mode, "port", s.Port)
	if s.DatabaseURL != "" {
		fields["database_url"] = util.MaskURL(s.DatabaseURL)
	}
	return fields
}
