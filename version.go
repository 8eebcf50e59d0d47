package glaucoscan

import (
	_ "embed"
	"strings"
)

//go:embed VERSION
var rawVersion string

// Version is the released version of GlaucoScan.
var Version = strings.TrimSpace(rawVersion)
