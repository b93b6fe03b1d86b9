// Package version reports the build version of the launcher and supervisor
// binaries.
//
// Version, git commit, branch, and build time are set at compile time
// via -ldflags:
//
//	go build -ldflags "-X github.com/kbukum/primepos-supervisor/version.Version=1.4.0" ./cmd/...
//
// Values left empty fall back to the VCS stamp the Go toolchain embeds.
package version
