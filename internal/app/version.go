package app

import "fmt"

// Version and Commit can be overridden at build time:
// go build -ldflags "-X sagashark/internal/app.Version=v0.3.1 -X sagashark/internal/app.Commit=abcdef0" ./cmd/saga
var (
	Version = "v0.3.0"
	Commit  = "dev"
)

func VersionString() string {
	return fmt.Sprintf("sagashark %s (%s)", Version, Commit)
}
