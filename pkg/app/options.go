package app

import "github.com/spf13/pflag"

// CliOptions is the contract an options aggregate must satisfy to drive the
// application lifecycle: flags are registered before parse, Complete fills in
// derived defaults, Validate runs last.
type CliOptions interface {
	AddFlags(fs *pflag.FlagSet)
	Complete() error
	Validate() error
}
