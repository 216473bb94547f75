package schema

import "strings"

// DefaultTheme is the default terminal theme name.
const DefaultTheme ThemeName = "parchment"

var themeNames = []ThemeName{
	"parchment",
	"gruvbox",
	"tokyo-midnight",
	"plain",
}

// AvailableThemes returns the supported theme names.
func AvailableThemes() []ThemeName {
	out := make([]ThemeName, len(themeNames))
	copy(out, themeNames)
	return out
}

// NormalizeThemeName returns a canonical theme name if supported.
func NormalizeThemeName(name string) (ThemeName, bool) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	normalized = strings.ReplaceAll(normalized, "_", "-")
	switch normalized {
	case "parchment", "":
		return "parchment", true
	case "gruvbox":
		return "gruvbox", true
	case "tokyo-midnight", "tokyo":
		return "tokyo-midnight", true
	case "plain", "none", "mono":
		return "plain", true
	default:
		return "", false
	}
}
