package models

import "strings"

// Product describes one installable firmware product. The catalog is
// loaded from the store and immutable during a session.
type Product struct {
	Name          string
	DisplayName   string
	RepoURL       string
	DefaultBranch string
	// SupportedBoards lists the FQBNs (or FQBN prefixes) the product can
	// be built for.
	SupportedBoards []string
	// RequiredConfigFiles is the minimum set of configuration files the
	// compile step needs in the sketch directory.
	RequiredConfigFiles []string
}

// SupportsBoard reports whether the product can target the given FQBN.
// A catalog entry matches either exactly or as a prefix, so
// "arduino:avr:nano" covers "arduino:avr:nano:cpu=atmega328".
func (p Product) SupportsBoard(fqbn string) bool {
	for _, b := range p.SupportedBoards {
		if fqbn == b || strings.HasPrefix(fqbn, b+":") {
			return true
		}
	}
	return false
}

// ReleaseChannel distinguishes production from development tags.
type ReleaseChannel string

const (
	ChannelProduction  ReleaseChannel = "Prod"
	ChannelDevelopment ReleaseChannel = "Devel"
)

// Release is one version tag of a product repository, following the
// vX.Y.Z-Prod|Devel naming scheme. Tags outside the scheme are excluded
// at discovery time.
type Release struct {
	Tag     string
	Channel ReleaseChannel
}

// LatestByChannel returns the first release of the given channel from a
// newest-first list.
func LatestByChannel(releases []Release, channel ReleaseChannel) (Release, bool) {
	for _, r := range releases {
		if r.Channel == channel {
			return r, true
		}
	}
	return Release{}, false
}

// VersionSelection records a resolved checkout of a product release.
// It is valid only after a successful clone and checkout.
type VersionSelection struct {
	Product string
	Ref     string
	Path    string
}
