// Package diff provides the comparison service application.
package diff

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/kart-io/revdiff/pkg/options/database"
	diffopts "github.com/kart-io/revdiff/pkg/options/diff"
	httpopts "github.com/kart-io/revdiff/pkg/options/http"
	llmopts "github.com/kart-io/revdiff/pkg/options/llm"
	logopts "github.com/kart-io/revdiff/pkg/options/logger"
	redisopts "github.com/kart-io/revdiff/pkg/options/redis"
)

// Options contains all comparison service options.
type Options struct {
	// HTTP contains the HTTP server configuration.
	HTTP *httpopts.Options `json:"http" mapstructure:"http"`

	// Log contains logger configuration.
	Log *logopts.Options `json:"log" mapstructure:"log"`

	// DB contains database configuration.
	DB *database.Options `json:"db" mapstructure:"db"`

	// Redis contains the optional Redis cache backend configuration.
	Redis *redisopts.Options `json:"redis" mapstructure:"redis"`

	// LLM contains the AI gateway configuration.
	LLM *llmopts.GatewayOptions `json:"llm" mapstructure:"llm"`

	// Diff contains the comparison pipeline configuration.
	Diff *diffopts.Options `json:"diff" mapstructure:"diff"`
}

// NewOptions creates Options with defaults.
func NewOptions() *Options {
	return &Options{
		HTTP:  httpopts.NewOptions(),
		Log:   logopts.NewOptions(),
		DB:    database.NewOptions(),
		Redis: redisopts.NewOptions(),
		LLM:   llmopts.NewGatewayOptions(),
		Diff:  diffopts.NewOptions(),
	}
}

// AddFlags adds all service flags to the flagset.
func (o *Options) AddFlags(fs *pflag.FlagSet) {
	o.HTTP.AddFlags(fs)
	o.Log.AddFlags(fs)
	o.DB.AddFlags(fs)
	o.Redis.AddFlags(fs)
	o.LLM.AddFlags(fs)
	o.Diff.AddFlags(fs)
}

// Validate validates all sections.
func (o *Options) Validate() error {
	if err := o.HTTP.Validate(); err != nil {
		return err
	}
	if err := o.Log.Validate(); err != nil {
		return err
	}
	if err := o.DB.Validate(); err != nil {
		return err
	}
	if err := o.Redis.Validate(); err != nil {
		return err
	}
	if errs := o.LLM.Validate(); len(errs) > 0 {
		return fmt.Errorf("invalid llm options: %v", errs)
	}
	return o.Diff.Validate()
}

// Complete fills in defaults that depend on other values.
func (o *Options) Complete() error {
	if err := o.Log.Complete(); err != nil {
		return err
	}
	return o.LLM.Complete()
}
