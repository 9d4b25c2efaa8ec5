// Package semver models the versions published to a crate registry and the
// requirement strings written in Cargo manifests.
//
// # Versions
//
// [Version] is a strict semantic version (MAJOR.MINOR.PATCH with optional
// prerelease and build metadata). Ordering follows SemVer precedence: the
// numeric triple first, a prerelease below its release, prerelease
// identifiers compared element-wise, build metadata ignored.
//
// # Requirements
//
// [Requirement] keeps the text exactly as written in the manifest and answers
// two questions: does it admit a candidate version, and what is the lowest
// version it names. A bare version ("0.8") is a caret requirement, as Cargo
// treats it.
//
//	req, _ := semver.ParseRequirement("0.8")
//	req.Admits(semver.MustParseVersion("0.8.5"))  // true
//	req.Admits(semver.MustParseVersion("0.9.0"))  // false
//
// Both types are thin wrappers around github.com/Masterminds/semver/v3.
package semver
