package types

// Version is overwritten at build time via -ldflags
var Version = "dev"

// DefaultRef is the branch archived when none is given
const DefaultRef = "master"
