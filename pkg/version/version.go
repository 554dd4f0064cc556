// Package version carries the build identity stamped into the domaintools
// binary. Release builds override the defaults via -ldflags.
package version

import "fmt"

var (
	Version = "v0.0.0-dev"
	Commit  = "HEAD"
)

// Info is the shape returned by the version command and the API root.
type Info struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
}

func Get() Info {
	return Info{
		Version: Version,
		Commit:  Commit,
	}
}

func (i Info) String() string {
	return fmt.Sprintf("%s (%s)", i.Version, i.Commit)
}
