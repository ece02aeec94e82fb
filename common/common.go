// Package common holds process-wide helpers shared by the binaries: build
// version, package name used for metrics, and logger setup.
package common

var (
	// Version is overridden at build time with -ldflags "-X .../common.Version=..."
	Version = "dev"

	// PackageName prefixes exported metric names.
	PackageName = "fhe_identity_auth"
)
