package holyc

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/templelinux/templelinux/internal/logx"
)

// SourceSegment is a canonical label, a 1-based starting line, and the
// raw bytes after #include expansion and CDocBin-tail stripping.
// Identity is the (label, start line) pair.
type SourceSegment struct {
	Label     string
	StartLine int
	Src       []byte
}

// Preprocessor expands an entry file into an ordered sequence of source
// segments, trying a short ordered list of candidate roots before
// giving up.
type Preprocessor struct {
	TempleRoot   string
	TempleOSRoot string
	Macros       *MacroTable

	// Bins accumulates per-file CDocBin maps discovered while expanding.
	Bins map[string]map[uint32][]byte

	visiting map[string]bool // include-cycle guard
}

// NewPreprocessor returns a Preprocessor with the builtin macro set
// pre-populated.
func NewPreprocessor(templeRoot, templeOSRoot string) *Preprocessor {
	return &Preprocessor{
		TempleRoot:   templeRoot,
		TempleOSRoot: templeOSRoot,
		Macros:       NewMacroTable(),
		Bins:         map[string]map[uint32][]byte{},
		visiting:     map[string]bool{},
	}
}

// IncludeError reports an include directive that failed to resolve,
// carrying the file/line of the #include site.
type IncludeError struct {
	Site Span
	Path string
	Err  error
}

func (e *IncludeError) Error() string {
	return fmt.Sprintf("%s: #include %q: %v", e.Site, e.Path, e.Err)
}
func (e *IncludeError) Unwrap() error { return e.Err }

// Expand reads entryLogicalPath and recursively expands #include
// directives, returning the ordered segment sequence. #define lines are
// collected into p.Macros as they are encountered; they take effect for
// all subsequently lexed text, matching the original single-pass
// preprocessor (a #define only affects text textually after it).
func (p *Preprocessor) Expand(entryLogicalPath string) ([]SourceSegment, error) {
	return p.expandFile(entryLogicalPath, Span{File: entryLogicalPath, Line: 0})
}

func (p *Preprocessor) expandFile(logicalPath string, site Span) ([]SourceSegment, error) {
	host, label, err := p.resolveInclude(logicalPath, filepath.Dir(site.File))
	if err != nil {
		return nil, &IncludeError{Site: site, Path: logicalPath, Err: err}
	}
	if p.visiting[label] {
		return nil, &IncludeError{Site: site, Path: logicalPath, Err: fmt.Errorf("include cycle")}
	}
	p.visiting[label] = true
	defer delete(p.visiting, label)

	raw, err := os.ReadFile(host)
	if err != nil {
		return nil, &IncludeError{Site: site, Path: logicalPath, Err: err}
	}
	logx.Tracef("preprocess: expanding %s (%s)", label, host)

	text, bins := SplitDocFile(raw)
	if len(bins) > 0 {
		p.Bins[label] = bins
	}

	var segments []SourceSegment
	cur := []byte{}
	curStart := 1
	line := 1
	sc := bufio.NewScanner(strings.NewReader(string(text)))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		raw := sc.Text()
		trimmed := strings.TrimSpace(raw)
		switch {
		case strings.HasPrefix(trimmed, "#include"):
			if len(cur) > 0 {
				segments = append(segments, SourceSegment{Label: label, StartLine: curStart, Src: cur})
			}
			path, err := parseIncludeDirective(trimmed)
			if err != nil {
				return nil, &IncludeError{Site: Span{File: label, Line: line}, Path: trimmed, Err: err}
			}
			sub, err := p.expandFile(path, Span{File: label, Line: line})
			if err != nil {
				return nil, err
			}
			segments = append(segments, sub...)
			cur = nil
			curStart = line + 1
		case strings.HasPrefix(trimmed, "#define"):
			name, val, err := parseDefineDirective(trimmed)
			if err != nil {
				return nil, &IncludeError{Site: Span{File: label, Line: line}, Path: trimmed, Err: err}
			}
			p.Macros.Define(name, val)
			cur = append(cur, '\n')
		default:
			cur = append(cur, raw...)
			cur = append(cur, '\n')
		}
		line++
	}
	if err := sc.Err(); err != nil {
		return nil, &IncludeError{Site: site, Path: logicalPath, Err: err}
	}
	if len(cur) > 0 {
		segments = append(segments, SourceSegment{Label: label, StartLine: curStart, Src: cur})
	}
	return segments, nil
}

func parseIncludeDirective(line string) (string, error) {
	line = strings.TrimPrefix(line, "#include")
	line = strings.TrimSpace(line)
	if len(line) < 2 || line[0] != '"' || line[len(line)-1] != '"' {
		return "", fmt.Errorf("expected #include \"path\"")
	}
	return line[1 : len(line)-1], nil
}

func parseDefineDirective(line string) (name, value string, err error) {
	line = strings.TrimPrefix(line, "#define")
	line = strings.TrimSpace(line)
	i := strings.IndexAny(line, " \t")
	if i < 0 {
		return line, "", nil
	}
	return line[:i], strings.TrimSpace(line[i+1:]), nil
}

// resolveInclude tries, in order: (a) the including file's directory,
// (b) TempleRoot, (c) TempleOSRoot; a "::/" path is rooted directly at
// TempleOSRoot. It returns the host path and the
// canonical logical label recorded as the segment's file identity.
func (p *Preprocessor) resolveInclude(logicalPath, includerDir string) (host, label string, err error) {
	if strings.HasPrefix(logicalPath, "::/") {
		if p.TempleOSRoot == "" {
			return "", "", fmt.Errorf("::/ path but TEMPLEOS_ROOT is unset")
		}
		rel := strings.TrimPrefix(logicalPath, "::/")
		host = filepath.Join(p.TempleOSRoot, filepath.FromSlash(rel))
		return host, logicalPath, statOK(host)
	}
	candidates := []string{
		filepath.Join(includerDir, logicalPath),
	}
	if p.TempleRoot != "" {
		candidates = append(candidates, filepath.Join(p.TempleRoot, logicalPath))
	}
	if p.TempleOSRoot != "" {
		candidates = append(candidates, filepath.Join(p.TempleOSRoot, logicalPath))
	}
	for _, c := range candidates {
		if statErr := statOK(c); statErr == nil {
			return c, logicalPath, nil
		}
	}
	return "", "", os.ErrNotExist
}

func statOK(path string) error {
	_, err := os.Stat(path)
	return err
}
