package version

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Package returns the overall, canonical project import path under
// which the package was built.
func Package() string {
	return mainpkg
}

// Version returns the module version the running binary was built from.
func Version() string {
	return version
}

// Revision returns the VCS (e.g. git) revision being used to build
// the program at linking time.
func Revision() string {
	return revision
}

// UserAgent is the default User-Agent sent to portals, e.g.
// "skynet-go/v0.1.0".
func UserAgent() string {
	return "skynet-go/" + strings.TrimSuffix(Version(), "+unknown")
}

// FprintVersion outputs the version string to the writer, in the following
// format, followed by a newline:
//
//	<cmd> <project> <version>
//
// For example, a binary "skynet" built from github.com/skynetlabs/skynet
// with version "v0.1.0" would print the following:
//
//	skynet github.com/skynetlabs/skynet v0.1.0
func FprintVersion(w io.Writer) {
	fmt.Fprintln(w, os.Args[0], Package(), Version())
}
