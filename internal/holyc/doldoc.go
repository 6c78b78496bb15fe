package holyc

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// DocBin is one CDocBin record: a 16-byte header (num, flags, size,
// reserved, all little-endian u32) followed by size bytes of payload.
type DocBin struct {
	Num     uint32
	Flags   uint32
	Payload []byte
}

const docBinHeaderSize = 16

// SplitDocFile splits a TempleOS "doc" binary into its textual prefix
// (everything up to the first NUL byte) and its CDocBin tail, parsed
// robustly: the parser scans for plausible headers rather than trusting
// declared sizes blindly, so a single corrupted record does not abort
// the whole file.
func SplitDocFile(data []byte) (text []byte, bins map[uint32][]byte) {
	nul := indexByte(data, 0)
	if nul < 0 {
		return data, nil
	}
	text = data[:nul]
	tail := data[nul+1:]
	bins = parseDocBinTail(tail)
	return text, bins
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}

// parseDocBinTail scans tail for CDocBin records. A record is accepted
// when its declared size fits within the remaining bytes and its flags
// look plausible (low 8 bits only, per vendored content); otherwise the
// scanner advances one byte and retries, which is what makes this
// "robust" rather than a strict sequential reader.
func parseDocBinTail(tail []byte) map[uint32][]byte {
	out := map[uint32][]byte{}
	i := 0
	for i+docBinHeaderSize <= len(tail) {
		num := binary.LittleEndian.Uint32(tail[i:])
		flags := binary.LittleEndian.Uint32(tail[i+4:])
		size := binary.LittleEndian.Uint32(tail[i+8:])
		// reserved field at tail[i+12:] is ignored.
		remaining := len(tail) - (i + docBinHeaderSize)
		if flags <= 0xff && uint64(size) <= uint64(remaining) {
			payload := tail[i+docBinHeaderSize : i+docBinHeaderSize+int(size)]
			out[num] = append([]byte(nil), payload...)
			i += docBinHeaderSize + int(size)
			continue
		}
		i++
	}
	return out
}

// EncodeDocBin serializes a single CDocBin record, used by tests and by
// any builtin that writes DolDoc files back out.
func EncodeDocBin(num, flags uint32, payload []byte) []byte {
	buf := make([]byte, docBinHeaderSize+len(payload))
	binary.LittleEndian.PutUint32(buf[0:], num)
	binary.LittleEndian.PutUint32(buf[4:], flags)
	binary.LittleEndian.PutUint32(buf[8:], uint32(len(payload)))
	binary.LittleEndian.PutUint32(buf[12:], 0)
	copy(buf[16:], payload)
	return buf
}

// DocCommand is one parsed "$CMD[+FLAG...][,ARGS]$" directive.
type DocCommand struct {
	Name  string
	Flags []string
	Args  []string
}

// ParseDocCommand parses the payload between the delimiting "$...$" of a
// DolDoc command token (the delimiters themselves are stripped by the
// lexer, see TokDocCmd). Grammar: NAME("+"FLAG)*(","ARG)*, where ARG may
// itself be NAME="value" for a handful of commands (LK A="...", MA-X
// LM="...").
func ParseDocCommand(payload string) (DocCommand, error) {
	parts := strings.Split(payload, ",")
	head := parts[0]
	nameFlags := strings.Split(head, "+")
	cmd := DocCommand{Name: nameFlags[0], Flags: nameFlags[1:]}
	cmd.Args = parts[1:]
	if !isKnownDocCommand(cmd.Name) {
		return cmd, fmt.Errorf("unsupported")
	}
	return cmd, nil
}

var knownDocCommands = map[string]bool{
	"FG": true, "BG": true, "WW": true, "CM": true, "CM-RE": true,
	"BK": true, "IV": true, "HL": true, "UL": true, "ID": true,
	"AN": true, "TR": true, "LK": true, "TX": true, "HC": true,
	"SO": true, "SP": true, "IB": true, "IS": true, "MA": true, "MA-X": true,
}

func isKnownDocCommand(name string) bool {
	return knownDocCommands[name]
}

// Attr extracts the value of a NAME="value" argument, used for LK's "A"
// attribute and MA-X's "LM" attribute.
func (c DocCommand) Attr(name string) (string, bool) {
	prefix := name + "=\""
	for _, a := range c.Args {
		a = strings.TrimSpace(a)
		if strings.HasPrefix(a, prefix) && strings.HasSuffix(a, "\"") {
			return a[len(prefix) : len(a)-1], true
		}
	}
	return "", false
}

// MacroAction is a parsed MA-X "LM" restricted macro action: a small
// recognized sub-grammar rather than an open-ended script.
type MacroAction struct {
	Kind string // "cd", "dir", "view", "infile", "keymap", "unsupported"
	Arg  string
}

// ParseMacroAction parses the restricted LM="..." sub-grammar: Cd("..."),
// Dir, View, InFile, KeyMap; anything else is "unsupported" and must be
// displayed as such rather than executed.
func ParseMacroAction(lm string) MacroAction {
	lm = strings.TrimSpace(lm)
	switch {
	case strings.HasPrefix(lm, "Cd(\"") && strings.HasSuffix(lm, "\")"):
		return MacroAction{Kind: "cd", Arg: lm[len("Cd(\"") : len(lm)-2]}
	case lm == "Dir":
		return MacroAction{Kind: "dir"}
	case lm == "View":
		return MacroAction{Kind: "view"}
	case lm == "InFile":
		return MacroAction{Kind: "infile"}
	case lm == "KeyMap":
		return MacroAction{Kind: "keymap"}
	default:
		return MacroAction{Kind: "unsupported", Arg: lm}
	}
}
