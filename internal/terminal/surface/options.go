package surface

import "github.com/GriffinCanCode/AgentOS/terminal/internal/terminal/preference"

// FontFamilySuffix is appended to the configured font so hosts always have a
// monospace fallback.
const FontFamilySuffix = ", courier-new, courier, monospace"

// Option names understood by SetOption and Option.
const (
	OptionCursorBlink         = "cursorBlink"
	OptionCursorStyle         = "cursorStyle"
	OptionFontFamily          = "fontFamily"
	OptionFontSize            = "fontSize"
	OptionLineHeight          = "lineHeight"
	OptionFontWeight          = "fontWeight"
	OptionScrollback          = "scrollback"
	OptionTheme               = "theme"
	OptionFastScrollModifier  = "fastScrollModifier"
	OptionAltClickMovesCursor = "altClickMovesCursor"
	OptionRightClickSelects   = "rightClickSelectsWord"
	OptionWordSeparator       = "wordSeparator"
)

// Options configures a new surface.
type Options struct {
	FontFamily            string
	FontSize              int
	LineHeight            float64
	FontWeight            string
	CursorStyle           string
	CursorBlink           bool
	Theme                 preference.Theme
	Scrollback            int
	FastScrollModifier    string
	AltClickMovesCursor   bool
	RightClickSelectsWord bool
	WordSeparator         string
}

// OptionsFrom derives surface options from a preference snapshot.
func OptionsFrom(p preference.Preference) Options {
	fastScroll := "none"
	if p.Interact.FastScrollModifier {
		fastScroll = "alt"
	}
	return Options{
		FontFamily:            p.Display.FontFamily + FontFamilySuffix,
		FontSize:              p.Display.FontSize,
		LineHeight:            p.Display.LineHeight,
		FontWeight:            p.Display.FontWeight,
		CursorStyle:           p.Display.CursorStyle,
		CursorBlink:           p.Display.CursorBlink,
		Theme:                 preference.ThemeOf(p.Display),
		Scrollback:            p.Session.ScrollBackLine,
		FastScrollModifier:    fastScroll,
		AltClickMovesCursor:   p.Interact.AltClickMovesCursor,
		RightClickSelectsWord: p.Interact.RightClickSelectsWord,
		WordSeparator:         p.Interact.WordSeparator,
	}
}

// Get returns the named option, or nil.
func (o *Options) Get(name string) any {
	switch name {
	case OptionCursorBlink:
		return o.CursorBlink
	case OptionCursorStyle:
		return o.CursorStyle
	case OptionFontFamily:
		return o.FontFamily
	case OptionFontSize:
		return o.FontSize
	case OptionLineHeight:
		return o.LineHeight
	case OptionFontWeight:
		return o.FontWeight
	case OptionScrollback:
		return o.Scrollback
	case OptionTheme:
		return o.Theme
	case OptionFastScrollModifier:
		return o.FastScrollModifier
	case OptionAltClickMovesCursor:
		return o.AltClickMovesCursor
	case OptionRightClickSelects:
		return o.RightClickSelectsWord
	case OptionWordSeparator:
		return o.WordSeparator
	}
	return nil
}

// Set assigns the named option. Values of the wrong type are rejected.
func (o *Options) Set(name string, value any) error {
	next := *o
	var ok bool
	switch name {
	case OptionCursorBlink:
		next.CursorBlink, ok = value.(bool)
	case OptionCursorStyle:
		next.CursorStyle, ok = value.(string)
	case OptionFontFamily:
		next.FontFamily, ok = value.(string)
	case OptionFontSize:
		next.FontSize, ok = value.(int)
	case OptionLineHeight:
		next.LineHeight, ok = value.(float64)
	case OptionFontWeight:
		next.FontWeight, ok = value.(string)
	case OptionScrollback:
		next.Scrollback, ok = value.(int)
	case OptionTheme:
		switch v := value.(type) {
		case preference.Theme:
			next.Theme, ok = v, true
		case string:
			next.Theme, ok = preference.LookupTheme(v)
		}
	case OptionFastScrollModifier:
		next.FastScrollModifier, ok = value.(string)
	case OptionAltClickMovesCursor:
		next.AltClickMovesCursor, ok = value.(bool)
	case OptionRightClickSelects:
		next.RightClickSelectsWord, ok = value.(bool)
	case OptionWordSeparator:
		next.WordSeparator, ok = value.(string)
	default:
		return ErrUnknownOption
	}
	if !ok {
		return &OptionError{Name: name, Value: value}
	}
	*o = next
	return nil
}

// OptionError reports a value of the wrong type for an option.
type OptionError struct {
	Name  string
	Value any
}

func (e *OptionError) Error() string {
	return "invalid value for surface option " + e.Name
}
