// Package options defines the generic options interface and common utilities
// shared by all configuration sections.
package options

import (
	"strings"

	"github.com/spf13/pflag"
)

// Join concatenates prefixes with "." and appends a trailing "." when the
// result is non-empty. Used to build flag names like "db.host" or
// "prefix.db.host".
func Join(prefixes ...string) string {
	joined := strings.Join(prefixes, ".")
	if joined != "" {
		joined += "."
	}
	return joined
}

// IOptions defines methods a configuration section must implement.
type IOptions interface {
	// Validate validates all the required options.
	// It may also complete options if needed.
	Validate() []error

	// AddFlags adds flags related to the given flagset.
	AddFlags(fs *pflag.FlagSet, prefixes ...string)
}
