// Package buildinfo reports the version of the running binary.
//
// Release builds inject values with ldflags:
//
//	go build -ldflags "-X github.com/celerix-dev/celerix-store/internal/infra/buildinfo.Version=v1.2.0"
//
// Development builds fall back to the VCS stamp recorded by the Go
// toolchain.
package buildinfo
