package bootstrap

import (
	"github.com/kbukum/primepos-supervisor/config"
)

// Config is the interface constraint for application configuration types.
// Any struct that embeds config.ServiceConfig (value embedding) automatically
// satisfies this interface via promoted methods.
//
// Example:
//
//	type Ecosystem struct {
//	    config.ServiceConfig `yaml:",inline" mapstructure:",squash"`
//	    Apps []AppSpec `yaml:"apps" mapstructure:"apps"`
//	}
//
//	app, err := bootstrap.NewApp[*Ecosystem](eco)
type Config interface {
	GetServiceConfig() *config.ServiceConfig
	ApplyDefaults()
	Validate() error
}
