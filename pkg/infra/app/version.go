package app

import (
	"github.com/kart-io/version"
	"github.com/spf13/pflag"
)

// GetVersion returns the git version injected at build time, used in the
// startup banner and the service.version log field.
func GetVersion() string {
	return version.Get().GitVersion
}

// AddVersionFlags registers --version on fs.
func AddVersionFlags(fs *pflag.FlagSet) {
	version.AddFlags(fs)
}

// PrintAndExitIfRequested prints the version and exits when --version is set.
func PrintAndExitIfRequested() {
	version.PrintAndExitIfRequested()
}
