//go:build tools

// Package tools pins build-time code generators in go.mod so `go mod tidy`
// doesn't drop them. Nothing here is linked into the kernel binary.
package tools

import (
	_ "golang.org/x/tools/cmd/stringer"
)
