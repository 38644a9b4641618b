package assets

import (
	_ "embed"
)

// DefaultConfigHeader is the commented preamble written above a freshly
// generated config file.
//
//go:embed defaults/config_header.yaml
var DefaultConfigHeader []byte
