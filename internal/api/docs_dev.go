//go:build !embed_openapi

package api

import "os"

// openAPILoad reads the spec from the repo checkout (dev mode). Build with
// -tags embed_openapi to compile it into the binary instead.
func openAPILoad() ([]byte, error) { return os.ReadFile("openapi/openapi.yaml") }
