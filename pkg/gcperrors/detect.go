// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of gcp-utils-go.
//
// gcp-utils-go is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package gcperrors

import "regexp"

// Detector matches a single reason-string template. It reports false when the
// reason does not match; it never panics on malformed input.
type Detector func(reason string) (Error, bool)

// Templates are anchored at the start of the reason and case-sensitive: they
// mirror the exact phrasing of Google's error messages. A template only has to
// match a prefix of the reason.
var (
	permissionDeniedPattern = regexp.MustCompile(
		`^Permission '(?P<permission>[a-zA-Z0-9\.]*)' denied for resource '(?P<resource>.*)'\.`)
	notFoundPattern = regexp.MustCompile(
		`^(?P<resource_type>[a-zA-Z0-9_]+) (?P<resource>.+) not found\.`)
	alreadyExistsPattern = regexp.MustCompile(
		`^(?P<what>.*) already exists\.`)
)

const (
	someResource = "some resource"
	something    = "something"
)

// DefaultDetectors returns the built-in detectors in priority order.
func DefaultDetectors() []Detector {
	return []Detector{
		DetectResourcePermissionDenied,
		DetectResourceNotFound,
		DetectAlreadyExists,
	}
}

// DetectResourcePermissionDenied matches
// "Permission '<permission>' denied for resource '<resource>'.".
func DetectResourcePermissionDenied(reason string) (Error, bool) {
	m := permissionDeniedPattern.FindStringSubmatch(reason)
	if m == nil {
		return nil, false
	}
	// A capture that cannot be read leaves the field unknown.
	permission, _ := group(permissionDeniedPattern, m, "permission")
	resource, _ := group(permissionDeniedPattern, m, "resource")
	return NewResourcePermissionDenied(resource, permission), true
}

// DetectResourceNotFound matches "<resource_type> <resource> not found.". The
// resource type is only used for matching.
func DetectResourceNotFound(reason string) (Error, bool) {
	m := notFoundPattern.FindStringSubmatch(reason)
	if m == nil {
		return nil, false
	}
	resource, ok := group(notFoundPattern, m, "resource")
	if !ok {
		resource = someResource
	}
	return NewResourceNotFound(resource), true
}

// DetectAlreadyExists matches "<what> already exists.".
func DetectAlreadyExists(reason string) (Error, bool) {
	m := alreadyExistsPattern.FindStringSubmatch(reason)
	if m == nil {
		return nil, false
	}
	what, ok := group(alreadyExistsPattern, m, "what")
	if !ok {
		what = something
	}
	return NewAlreadyExists(what), true
}

// group returns the named capture from a successful match. It reports false
// when the group is not part of the pattern or absent from the match.
func group(re *regexp.Regexp, match []string, name string) (string, bool) {
	i := re.SubexpIndex(name)
	if i < 0 || i >= len(match) {
		return "", false
	}
	return match[i], true
}
