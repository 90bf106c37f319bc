package version

import "runtime"

const (
	AppName        = "Sir Sounds-a-lot"
	AppDescription = "Plays audio from YouTube into your voice channel, one track at a time, with a queue anyone in the channel can shape."
)

// Set at build time:
//
//	go build -ldflags "-X github.com/keshon/sirsoundsalot/internal/version.BuildDate=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	BuildDate = ""
	GoVersion = runtime.Version()
)
