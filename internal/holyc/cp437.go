package holyc

// CP437 maps bytes 0x80-0xFF to their Code Page 437 runes. Bytes 0x00-0x7F
// are ASCII and pass through unchanged. TempleOS sources are written in
// CP437, and identifiers/strings/char literals may contain bytes >= 128
//; the lexer decodes them through this table so a HolyC
// source file round-trips through Go strings without mangling box-drawing
// glyphs and other high-half characters used by vendored sprites/fonts.
var cp437 = [128]rune{
	'Ç', 'ü', 'é', 'â', 'ä', 'à', 'å', 'ç', 'ê', 'ë', 'è', 'ï', 'î', 'ì', 'Ä', 'Å',
	'É', 'æ', 'Æ', 'ô', 'ö', 'ò', 'û', 'ù', 'ÿ', 'Ö', 'Ü', '¢', '£', '¥', '₧', 'ƒ',
	'á', 'í', 'ó', 'ú', 'ñ', 'Ñ', 'ª', 'º', '¿', '⌐', '¬', '½', '¼', '¡', '«', '»',
	'░', '▒', '▓', '│', '┤', '╡', '╢', '╖', '╕', '╣', '║', '╗', '╝', '╜', '╛', '┐',
	'└', '┴', '┬', '├', '─', '┼', '╞', '╟', '╚', '╔', '╩', '╦', '╠', '═', '╬', '╧',
	'╨', '╤', '╥', '╙', '╘', '╒', '╓', '╫', '╪', '┘', '┌', '█', '▄', '▌', '▐', '▀',
	'α', 'ß', 'Γ', 'π', 'Σ', 'σ', 'µ', 'τ', 'Φ', 'Θ', 'Ω', 'δ', '∞', 'φ', 'ε', '∩',
	'≡', '±', '≥', '≤', '⌠', '⌡', '÷', '≈', '°', '∙', '·', '√', 'ⁿ', '²', '■', ' ',
}

// CP437Decode decodes a single CP437-encoded byte to its rune.
func CP437Decode(b byte) rune {
	if b < 0x80 {
		return rune(b)
	}
	return cp437[b-0x80]
}

// CP437DecodeString decodes a byte slice that may contain high-half CP437
// bytes into a Go string of the corresponding runes.
func CP437DecodeString(b []byte) string {
	rs := make([]rune, len(b))
	for i, c := range b {
		rs[i] = CP437Decode(c)
	}
	return string(rs)
}

// IsIdentByte reports whether b may appear inside a HolyC identifier:
// ASCII alphanumerics, underscore, or any byte >= 128.
func IsIdentByte(b byte) bool {
	return b == '_' || (b >= '0' && b <= '9') || (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z') || b >= 0x80
}

// IsIdentStartByte reports whether b may start an identifier (same rule,
// but digits are excluded so numeric literals are not ambiguous).
func IsIdentStartByte(b byte) bool {
	return b == '_' || (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z') || b >= 0x80
}
