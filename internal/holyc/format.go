package holyc

import (
	"fmt"
	"strconv"
	"strings"
)

// Sprintf implements the HolyC printf format-string dialect:
// %d/%u/%x/%X/%c/%Nc/%*c/%s/%f/%f.Nprecision/%e/%g/%n (engineering), %z
// (list-item lookup), comma-grouped integers via %,d or the %h?
// aux-flag spelling, and width-from-argument via %*d. Hand-rolls the
// verb scanner rather than reaching for text/template, following the
// %-verb state machine shape common across CLI-flag/log formatters
// instead of reimplementing fmt.Sprintf's verb table.
func (m *Machine) Sprintf(format string, args []Value) (string, error) {
	var sb strings.Builder
	ai := 0
	next := func() (Value, error) {
		if ai >= len(args) {
			return Value{}, fmt.Errorf("printf: too few arguments for format %q", format)
		}
		v := args[ai]
		ai++
		return v, nil
	}

	runes := []rune(format)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		if c != '%' {
			sb.WriteRune(c)
			continue
		}
		i++
		if i >= len(runes) {
			sb.WriteByte('%')
			break
		}
		comma := false
		if runes[i] == ',' {
			comma = true
			i++
		}
		// "h" introduces an auxiliary value ahead of the verb: h<digits>
		// and h* behave exactly like bare width/width-from-arg (e.g.
		// "%h5c" repeats a char 5 times same as "%5c"); h? is the aux
		// spelling of the comma-group flag ("%h?d" same as "%,d").
		if i < len(runes) && runes[i] == 'h' {
			i++
			if i < len(runes) && runes[i] == '?' {
				comma = true
				i++
			}
		}
		width := -1
		widthFromArg := false
		if i < len(runes) && runes[i] == '*' {
			widthFromArg = true
			i++
		} else {
			start := i
			for i < len(runes) && runes[i] >= '0' && runes[i] <= '9' {
				i++
			}
			if i > start {
				width, _ = strconv.Atoi(string(runes[start:i]))
			}
		}
		prec := -1
		if i < len(runes) && runes[i] == '.' {
			i++
			start := i
			for i < len(runes) && runes[i] >= '0' && runes[i] <= '9' {
				i++
			}
			if i > start {
				prec, _ = strconv.Atoi(string(runes[start:i]))
			}
		}
		if i >= len(runes) {
			return "", fmt.Errorf("printf: truncated format verb")
		}
		verb := runes[i]

		if widthFromArg {
			wv, err := next()
			if err != nil {
				return "", err
			}
			width = int(wv.AsInt())
		}

		switch verb {
		case '%':
			sb.WriteByte('%')
		case 'd', 'u':
			v, err := next()
			if err != nil {
				return "", err
			}
			s := strconv.FormatInt(v.AsInt(), 10)
			if verb == 'u' {
				s = strconv.FormatUint(uint64(v.AsInt()), 10)
			}
			if comma {
				s = groupThousands(s)
			}
			sb.WriteString(padLeft(s, width))
		case 'x':
			v, err := next()
			if err != nil {
				return "", err
			}
			sb.WriteString(padLeft(strconv.FormatUint(uint64(v.AsInt()), 16), width))
		case 'X':
			v, err := next()
			if err != nil {
				return "", err
			}
			sb.WriteString(padLeft(strings.ToUpper(strconv.FormatUint(uint64(v.AsInt()), 16)), width))
		case 'c':
			v, err := next()
			if err != nil {
				return "", err
			}
			n := 1
			if width > 0 {
				n = width
			}
			sb.WriteString(strings.Repeat(string(rune(v.AsInt())), n))
		case 's':
			v, err := next()
			if err != nil {
				return "", err
			}
			sb.WriteString(padLeft(v.String(), width))
		case 'f':
			v, err := next()
			if err != nil {
				return "", err
			}
			p := 6
			if prec >= 0 {
				p = prec
			}
			sb.WriteString(padLeft(strconv.FormatFloat(v.AsFloat(), 'f', p, 64), width))
		case 'e':
			v, err := next()
			if err != nil {
				return "", err
			}
			sb.WriteString(strconv.FormatFloat(v.AsFloat(), 'e', 6, 64))
		case 'g':
			v, err := next()
			if err != nil {
				return "", err
			}
			sb.WriteString(strconv.FormatFloat(v.AsFloat(), 'g', -1, 64))
		case 'n':
			v, err := next()
			if err != nil {
				return "", err
			}
			sb.WriteString(engineeringNotation(v.AsFloat()))
		case 'z':
			idxV, err := next()
			if err != nil {
				return "", err
			}
			listV, err := next()
			if err != nil {
				return "", err
			}
			sb.WriteString(listItem(listV.String(), int(idxV.AsInt())))
		default:
			sb.WriteByte('%')
			sb.WriteRune(verb)
		}
	}
	return sb.String(), nil
}

func padLeft(s string, width int) string {
	if width <= len(s) {
		return s
	}
	return strings.Repeat(" ", width-len(s)) + s
}

// listItem indexes into a NUL-delimited catalog string, the way %z
// resolves an enum/flag value to its display name, out-of-range
// indices yielding "".
func listItem(catalog string, idx int) string {
	items := strings.Split(strings.TrimSuffix(catalog, "\x00"), "\x00")
	if idx < 0 || idx >= len(items) {
		return ""
	}
	return items[idx]
}

// groupThousands inserts ',' every 3 digits from the right, preserving a
// leading '-'.
func groupThousands(s string) string {
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	n := len(s)
	if n <= 3 {
		if neg {
			return "-" + s
		}
		return s
	}
	var sb strings.Builder
	lead := n % 3
	if lead == 0 {
		lead = 3
	}
	sb.WriteString(s[:lead])
	for i := lead; i < n; i += 3 {
		sb.WriteByte(',')
		sb.WriteString(s[i : i+3])
	}
	out := sb.String()
	if neg {
		return "-" + out
	}
	return out
}

var engSuffixes = []string{"a", "f", "p", "n", "u", "m", "", "k", "M", "G", "T", "P", "E"}

// engineeringNotation renders f with an SI magnitude suffix at the
// nearest power-of-1000 exponent.
func engineeringNotation(f float64) string {
	if f == 0 {
		return "0"
	}
	neg := f < 0
	if neg {
		f = -f
	}
	exp := 0
	for f >= 1000 && exp < 6 {
		f /= 1000
		exp++
	}
	for f < 1 && exp > -6 {
		f *= 1000
		exp--
	}
	idx := exp + 6
	if idx < 0 || idx >= len(engSuffixes) {
		idx = 6
	}
	s := strconv.FormatFloat(f, 'f', 3, 64)
	if neg {
		s = "-" + s
	}
	return s + engSuffixes[idx]
}
