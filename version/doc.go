// Package version reports build information for the permgate binary.
//
// Values are injected at link time:
//
//	go build -ldflags "-X github.com/kbukum/permgate/version.Version=1.2.0 \
//	  -X github.com/kbukum/permgate/version.Commit=$(git rev-parse --short HEAD)"
//
// Anything left unset falls back to the module's embedded VCS settings.
package version
