package logging

import "github.com/spf13/pflag"

// Flag names for the logging options.
const (
	LevelFlagName = "log-level"
	FileFlagName  = "log-file"
)

// AddFlags registers the logging flags on the given flag set.
func AddFlags(set *pflag.FlagSet) {
	set.String(LevelFlagName, "info", "Log level: debug, info, warn or error.")
	set.String(FileFlagName, "stdout", "Log file, or 'stdout'/'stderr'.")
}
