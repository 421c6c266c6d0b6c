package preference

// Preference is a read-only snapshot of the user's terminal settings.
// Consumers read the fields they need at the point of use and never write
// back; a Store hands out copies.
type Preference struct {
	Display  Display  `json:"display" yaml:"display" toml:"display"`
	Interact Interact `json:"interact" yaml:"interact" toml:"interact"`
	Plugins  Plugins  `json:"plugins" yaml:"plugins" toml:"plugins"`
	Session  Session  `json:"session" yaml:"session" toml:"session"`
}

// Display controls how the surface draws text.
type Display struct {
	FontFamily  string  `json:"fontFamily" yaml:"fontFamily" toml:"fontFamily"`
	FontSize    int     `json:"fontSize" yaml:"fontSize" toml:"fontSize"`
	LineHeight  float64 `json:"lineHeight" yaml:"lineHeight" toml:"lineHeight"`
	FontWeight  string  `json:"fontWeight" yaml:"fontWeight" toml:"fontWeight"`
	CursorStyle string  `json:"cursorStyle" yaml:"cursorStyle" toml:"cursorStyle"`
	CursorBlink bool    `json:"cursorBlink" yaml:"cursorBlink" toml:"cursorBlink"`
	Theme       string  `json:"theme" yaml:"theme" toml:"theme"`
}

// Interact controls bell, clipboard and mouse behaviour.
type Interact struct {
	EnableBell            bool   `json:"enableBell" yaml:"enableBell" toml:"enableBell"`
	SelectionChangeCopy   bool   `json:"selectionChangeCopy" yaml:"selectionChangeCopy" toml:"selectionChangeCopy"`
	PasteAutoTrim         bool   `json:"pasteAutoTrim" yaml:"pasteAutoTrim" toml:"pasteAutoTrim"`
	CopyAutoTrim          bool   `json:"copyAutoTrim" yaml:"copyAutoTrim" toml:"copyAutoTrim"`
	RightClickPaste       bool   `json:"rightClickPaste" yaml:"rightClickPaste" toml:"rightClickPaste"`
	RightClickSelectsWord bool   `json:"rightClickSelectsWord" yaml:"rightClickSelectsWord" toml:"rightClickSelectsWord"`
	EnableRightClickMenu  bool   `json:"enableRightClickMenu" yaml:"enableRightClickMenu" toml:"enableRightClickMenu"`
	WordSeparator         string `json:"wordSeparator" yaml:"wordSeparator" toml:"wordSeparator"`
	FastScrollModifier    bool   `json:"fastScrollModifier" yaml:"fastScrollModifier" toml:"fastScrollModifier"`
	AltClickMovesCursor   bool   `json:"altClickMovesCursor" yaml:"altClickMovesCursor" toml:"altClickMovesCursor"`
}

// Plugins toggles optional surface capabilities.
type Plugins struct {
	EnableWeblinkPlugin bool `json:"enableWeblinkPlugin" yaml:"enableWeblinkPlugin" toml:"enableWeblinkPlugin"`
	EnableWebglPlugin   bool `json:"enableWebglPlugin" yaml:"enableWebglPlugin" toml:"enableWebglPlugin"`
	EnableImagePlugin   bool `json:"enableImagePlugin" yaml:"enableImagePlugin" toml:"enableImagePlugin"`
}

// Session holds per-session buffer settings.
type Session struct {
	ScrollBackLine int `json:"scrollBackLine" yaml:"scrollBackLine" toml:"scrollBackLine"`
}

// DefaultWordSeparator is the set of characters that end a word for
// double-click and right-click selection.
const DefaultWordSeparator = "/\\()\"'` -.,:;<>~!@#$%^&*|+=[]{}~?│"

// Default returns the settings used when no preference file is supplied.
func Default() Preference {
	return Preference{
		Display: Display{
			FontFamily:  "_",
			FontSize:    15,
			LineHeight:  1.0,
			FontWeight:  "normal",
			CursorStyle: "bar",
			CursorBlink: true,
			Theme:       DefaultTheme,
		},
		Interact: Interact{
			EnableRightClickMenu: true,
			WordSeparator:        DefaultWordSeparator,
			FastScrollModifier:   true,
			AltClickMovesCursor:  true,
		},
		Plugins: Plugins{
			EnableWeblinkPlugin: true,
			EnableWebglPlugin:   false,
			EnableImagePlugin:   false,
		},
		Session: Session{
			ScrollBackLine: 1000,
		},
	}
}
