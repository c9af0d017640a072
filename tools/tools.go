//go:build tools
// +build tools

// Pins oapi-codegen to the same release as the runtime package the v1
// handlers bind query parameters with. Excluded from normal builds by the
// 'tools' tag above.

package tools

import (
	_ "github.com/oapi-codegen/oapi-codegen/v2/cmd/oapi-codegen"
)
