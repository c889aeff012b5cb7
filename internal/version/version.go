package version

// Version is overridable at build time via -ldflags "-X codenav/internal/version.Version=...".
var Version = "0.3.0-dev"

func String() string { return Version }
