package release

import (
	"path"
	"regexp"
)

const (
	// LatestVersion asks for a fresh dev release to be built.
	LatestVersion = "latest"

	// localURLScheme prefixes urls that point at a host release directory.
	localURLScheme = "dir+bosh://"

	// guestURLScheme prefixes urls of releases synced to the guest.
	guestURLScheme = "dir://"
)

// localURLPattern captures the host directory of a locally buildable release.
var localURLPattern = regexp.MustCompile(`\A` + regexp.QuoteMeta(localURLScheme) + `(.+)\z`)

// Reference is one entry of a manifest's release list.
// It is implemented by Local and Remote only.
type Reference interface {
	// ReleaseName returns the manifest name of the release.
	ReleaseName() string

	isReference()
}

// Local is a release whose url points at a directory on the host.
type Local struct {
	Name    string
	Version string
	HostDir string
}

// Remote is any release the resolver must leave alone.
type Remote struct {
	Name    string
	Version string
	URL     string
}

// ReleaseName implements Reference.
func (l Local) ReleaseName() string { return l.Name }

// ReleaseName implements Reference.
func (r Remote) ReleaseName() string { return r.Name }

func (Local) isReference()  {}
func (Remote) isReference() {}

// ParseReference classifies a manifest entry by its url.
func ParseReference(name, version, url string) Reference {
	if m := localURLPattern.FindStringSubmatch(url); m != nil {
		return Local{Name: name, Version: version, HostDir: m[1]}
	}

	return Remote{Name: name, Version: version, URL: url}
}

// Uploadable is a Local release paired with its destination on the guest.
type Uploadable struct {
	Name     string
	Version  string
	HostDir  string
	GuestDir string
}

// NewUploadable places l under guestRoot, one directory per release name.
func NewUploadable(l Local, guestRoot string) Uploadable {
	return Uploadable{
		Name:     l.Name,
		Version:  l.Version,
		HostDir:  l.HostDir,
		GuestDir: path.Join(guestRoot, l.Name),
	}
}

// NeedsBuild reports whether a dev release has to be created first.
func (u Uploadable) NeedsBuild() bool {
	return u.Version == LatestVersion
}

// Uploaded is a release that now lives on the guest under a concrete version.
type Uploaded struct {
	Name     string
	Version  string
	GuestDir string
}

// Fragment is what an Uploaded release writes back into the manifest.
type Fragment struct {
	Name    string
	Version string
	URL     string
}

// Fragment returns the manifest entry that points at the synced release.
func (u Uploaded) Fragment() Fragment {
	return Fragment{
		Name:    u.Name,
		Version: u.Version,
		URL:     guestURLScheme + u.GuestDir,
	}
}
