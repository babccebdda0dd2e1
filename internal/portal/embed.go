// ABOUTME: Embeds the public site's HTML templates into the binary using go:embed
// ABOUTME: Provides templateFS for the page renderer

package portal

import "embed"

//go:embed templates/*.html
var templateFS embed.FS
