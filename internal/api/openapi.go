package api

import _ "embed"

// OpenAPIDocument describes the /api/v1 surface. The router validates
// requests against it when validation is enabled.
//
//go:embed openapi.yaml
var OpenAPIDocument []byte
