package preference

// Theme is a terminal colour scheme.
type Theme struct {
	Name                string     `json:"name"`
	Dark                bool       `json:"dark"`
	Foreground          string     `json:"foreground"`
	Background          string     `json:"background"`
	Cursor              string     `json:"cursor"`
	SelectionBackground string     `json:"selectionBackground"`
	ANSI                [16]string `json:"ansi"`
}

// DefaultTheme names the theme used when a preference names none or an
// unknown one.
const DefaultTheme = "dark"

var themes = map[string]Theme{
	"dark": {
		Name:                "dark",
		Dark:                true,
		Foreground:          "#ffffff",
		Background:          "#1a1a1a",
		Cursor:              "#3b82f6",
		SelectionBackground: "#404040",
		ANSI: [16]string{
			"#000000", "#cd3131", "#0dbc79", "#e5e510", "#2472c8", "#bc3fbc", "#11a8cd", "#e5e5e5",
			"#666666", "#f14c4c", "#23d18b", "#f5f543", "#3b8eea", "#d670d6", "#29b8db", "#ffffff",
		},
	},
	"light": {
		Name:                "light",
		Dark:                false,
		Foreground:          "#1a1a1a",
		Background:          "#ffffff",
		Cursor:              "#3b82f6",
		SelectionBackground: "#e0e0e0",
		ANSI: [16]string{
			"#000000", "#cd3131", "#00bc00", "#949800", "#0451a5", "#bc05bc", "#0598bc", "#555555",
			"#666666", "#cd3131", "#14ce14", "#b5ba00", "#0451a5", "#bc05bc", "#0598bc", "#a5a5a5",
		},
	},
	"high-contrast": {
		Name:                "high-contrast",
		Dark:                true,
		Foreground:          "#ffffff",
		Background:          "#000000",
		Cursor:              "#00ffff",
		SelectionBackground: "#ffffff",
		ANSI: [16]string{
			"#000000", "#ff0000", "#00ff00", "#ffff00", "#0000ff", "#ff00ff", "#00ffff", "#ffffff",
			"#808080", "#ff0000", "#00ff00", "#ffff00", "#0000ff", "#ff00ff", "#00ffff", "#ffffff",
		},
	},
}

// LookupTheme returns the named built-in theme.
func LookupTheme(name string) (Theme, bool) {
	t, ok := themes[name]
	return t, ok
}

// ThemeOf resolves the display theme, falling back to DefaultTheme.
func ThemeOf(d Display) Theme {
	if t, ok := themes[d.Theme]; ok {
		return t
	}
	return themes[DefaultTheme]
}

// ThemeNames lists the built-in themes.
func ThemeNames() []string {
	return []string{"dark", "light", "high-contrast"}
}
