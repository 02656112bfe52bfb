package playground

const (
	DefaultThemeName  = "amber"
	DefaultThemeShade = "500"
	// DefaultThemeColor is amber-500, used when nothing else resolves.
	DefaultThemeColor = "#f59e0b"
)

// Palette maps a colour name to its shades, e.g. palette["cyan"]["500"].
type Palette map[string]map[string]string

// ThemeColors are the names offered to the user.
var ThemeColors = []string{"cyan", "green", "amber", "blue", "violet", "rose", "pink", "teal"}

var DefaultPalette = Palette{
	"cyan":   {"500": "#06b6d4", "900": "#164e63"},
	"green":  {"500": "#22c55e", "900": "#14532d"},
	"amber":  {"500": "#f59e0b", "900": "#78350f"},
	"blue":   {"500": "#3b82f6", "900": "#1e3a8a"},
	"violet": {"500": "#8b5cf6", "900": "#4c1d95"},
	"rose":   {"500": "#f43f5e", "900": "#881337"},
	"pink":   {"500": "#ec4899", "900": "#831843"},
	"teal":   {"500": "#14b8a6", "900": "#134e4a"},
	"gray":   {"500": "#6b7280", "900": "#111827"},
}

// ResolveThemeColor returns the 500 shade of name from palette, falling back
// to amber and then to DefaultThemeColor. A nil palette is allowed.
func ResolveThemeColor(palette Palette, name string) string {
	if name == "" {
		name = DefaultThemeName
	}
	if palette == nil {
		return DefaultThemeColor
	}
	if c := palette[name][DefaultThemeShade]; c != "" {
		return c
	}
	if c := palette[DefaultThemeName][DefaultThemeShade]; c != "" {
		return c
	}
	return DefaultThemeColor
}
