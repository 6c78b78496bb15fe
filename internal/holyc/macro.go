package holyc

import "fmt"

// MacroTable is the shared `#define` table consumed by the lexer: a
// flat name->text map populated by directives ahead of the main parse
// and consulted during expansion.
type MacroTable struct {
	defs map[string]string
}

// NewMacroTable returns a table pre-populated with the builtin macros:
// boolean constants, palette constants, and key constants.
func NewMacroTable() *MacroTable {
	m := &MacroTable{defs: map[string]string{}}
	for k, v := range builtinMacros {
		m.defs[k] = v
	}
	return m
}

// Define records NAME=value, overwriting any prior definition (later
// #define wins, matching the original preprocessor).
func (m *MacroTable) Define(name, value string) {
	m.defs[name] = value
}

// Lookup returns a macro's replacement text.
func (m *MacroTable) Lookup(name string) (string, bool) {
	v, ok := m.defs[name]
	return v, ok
}

// builtinMacros are pre-populated before any #define runs: "TRUE=1",
// "FALSE=0", a handful of palette constants, and the key constants.
var builtinMacros = map[string]string{
	"TRUE":  "1",
	"FALSE": "0",
	"NULL":  "0",

	// Palette constants (index into the 256-entry palette).
	"BLACK":      "0",
	"BLUE":       "1",
	"GREEN":      "2",
	"CYAN":       "3",
	"RED":        "4",
	"MAGENTA":    "5",
	"BROWN":      "6",
	"LTGRAY":     "7",
	"GRAY":       "8",
	"LTBLUE":     "9",
	"LTGREEN":    "10",
	"LTCYAN":     "11",
	"LTRED":      "12",
	"LTMAGENTA":  "13",
	"YELLOW":     "14",
	"WHITE":      "15",

	// Key constants.
	"KEY_ESC":        "27",
	"KEY_SHIFT_ESC":  "28",
	"KEY_ENTER":      "13",
	"KEY_TAB":        "9",
	"KEY_BACKSPACE":  "8",
	"KEY_DELETE":     "127",
	"KEY_CTRL_C":     "3",
	"KEY_UP":         "256",
	"KEY_DOWN":       "257",
	"KEY_LEFT":       "258",
	"KEY_RIGHT":      "259",
	"KEY_HOME":       "260",
	"KEY_END":        "261",
	"KEY_PGUP":       "262",
	"KEY_PGDN":       "263",
	"KEY_INSERT":     "264",
}

// MaxMacroDepth bounds recursive macro expansion depth.
const MaxMacroDepth = 64

// macroCycleError reports re-expansion of a name already active on the
// expansion stack: a name cannot re-expand itself while it is still
// being expanded.
type macroCycleError struct {
	Name string
}

func (e *macroCycleError) Error() string {
	return fmt.Sprintf("macro %q re-expands itself", e.Name)
}
