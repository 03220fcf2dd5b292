// Package spec embeds the OpenAPI document of the medtrack API, served at
// /openapi.yaml so the published contract always matches the running binary.
package spec

import _ "embed"

//go:embed openapi.yaml
var OpenAPI []byte
