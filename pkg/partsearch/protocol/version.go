package protocol

import (
	"fmt"

	"golang.org/x/mod/semver"
)

// Version is the wire protocol version spoken by coordinator and workers.
const Version = "v1.0.0"

// IsCompatibleVersion checks if a worker version is compatible with the coordinator version.
// Compatibility rules:
// - Major version must match exactly.
// - Minor and patch versions can differ.
func IsCompatibleVersion(workerVersion, coordinatorVersion string) (bool, error) {
	if !semver.IsValid(workerVersion) {
		return false, fmt.Errorf("invalid worker version: %s", workerVersion)
	}
	if !semver.IsValid(coordinatorVersion) {
		return false, fmt.Errorf("invalid coordinator version: %s", coordinatorVersion)
	}

	return semver.Major(workerVersion) == semver.Major(coordinatorVersion), nil
}

// CompatibilityError describes a version mismatch, wrapping ErrIncompatibleVersion.
func CompatibilityError(workerVersion, coordinatorVersion string) error {
	return fmt.Errorf(
		"%w: worker %s, coordinator %s, required %s.x.x",
		ErrIncompatibleVersion, workerVersion, coordinatorVersion, semver.Major(coordinatorVersion),
	)
}
