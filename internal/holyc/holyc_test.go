package holyc

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/templelinux/templelinux/internal/config"
)

func testConfig() config.Config {
	seed := int64(1)
	return config.Config{Seed: &seed}
}

func mustLex(t *testing.T, src string) []Token {
	t.Helper()
	l := NewLexer("t.HC", 1, []byte(src), NewMacroTable())
	var toks []Token
	for {
		tok, err := l.Next()
		if err != nil {
			t.Fatalf("lex error: %v", err)
		}
		if tok.K == TokEOF {
			break
		}
		toks = append(toks, tok)
	}
	return toks
}

func TestLexerIdentsAndNumbers(t *testing.T) {
	toks := mustLex(t, `I64 x = 0x1F + 10;`)
	want := []TokenKind{TokIdent, TokIdent, TokSymbol, TokInt, TokSymbol, TokInt, TokSymbol}
	if len(toks) != len(want) {
		t.Fatalf("got %d tokens, want %d: %+v", len(toks), len(want), toks)
	}
	for i, k := range want {
		if toks[i].K != k {
			t.Errorf("token %d: got %v, want %v", i, toks[i].K, k)
		}
	}
	if toks[3].I != 0x1F {
		t.Errorf("hex literal: got %d, want 31", toks[3].I)
	}
}

func TestLexerMacroExpansion(t *testing.T) {
	m := NewMacroTable()
	m.Define("FOO", "123")
	l := NewLexer("t.HC", 1, []byte("FOO"), m)
	tok, err := l.Next()
	if err != nil {
		t.Fatal(err)
	}
	if tok.K != TokInt || tok.I != 123 {
		t.Fatalf("got %+v, want int 123", tok)
	}
}

func TestLexerMacroCycleDetected(t *testing.T) {
	m := NewMacroTable()
	m.Define("A", "B")
	m.Define("B", "A")
	l := NewLexer("t.HC", 1, []byte("A"), m)
	_, err := l.Next()
	if err == nil {
		t.Fatal("expected a macro cycle error")
	}
}

func parseProgram(t *testing.T, src string) *Program {
	t.Helper()
	p, err := NewParser([]SourceSegment{{Label: "t.HC", StartLine: 1, Src: []byte(src)}}, NewMacroTable())
	if err != nil {
		t.Fatalf("new parser: %v", err)
	}
	prog, err := p.ParseProgram()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return prog
}

func TestParseFunctionAndCall(t *testing.T) {
	prog := parseProgram(t, `
U0 Greet(I64 n) {
  "hi %d\n", n;
}
Greet(3);
`)
	if _, ok := prog.Functions["Greet"]; !ok {
		t.Fatalf("expected function Greet, got %v", prog.Functions)
	}
	if len(prog.TopLevel) != 1 {
		t.Fatalf("expected 1 top-level statement, got %d", len(prog.TopLevel))
	}
}

func TestParseCompareChain(t *testing.T) {
	prog := parseProgram(t, `I64 a; if (0 <= a < 10) a = 1;`)
	ifs, ok := prog.TopLevel[1].(*IfStmt)
	if !ok {
		t.Fatalf("expected IfStmt, got %T", prog.TopLevel[1])
	}
	if _, ok := ifs.Cond.(*CompareChain); !ok {
		t.Fatalf("expected CompareChain condition, got %T", ifs.Cond)
	}
}

func TestParseSwitchGroup(t *testing.T) {
	prog := parseProgram(t, `
I64 x;
switch (x) {
start:
  case 1:
    x = 1;
  case 2:
    x = 2;
end:
}
`)
	sw, ok := prog.TopLevel[1].(*SwitchStmt)
	if !ok {
		t.Fatalf("expected SwitchStmt, got %T", prog.TopLevel[1])
	}
	if len(sw.Arms) != 1 || !sw.Arms[0].Group {
		t.Fatalf("expected one group arm, got %+v", sw.Arms)
	}
	if len(sw.Arms[0].Nested) != 2 {
		t.Fatalf("expected 2 nested arms, got %d", len(sw.Arms[0].Nested))
	}
}

func runProgram(t *testing.T, src string) string {
	t.Helper()
	prog := parseProgram(t, src)
	var buf bytes.Buffer
	m := NewMachine(prog, nil, testConfig(), &buf, nil)
	env := NewEnv()
	m.globalEnv = env
	if err := m.bindEnumsAndGlobals(env); err != nil {
		t.Fatalf("bind enums: %v", err)
	}
	if err := m.RunProgram(env); err != nil {
		t.Fatalf("run: %v", err)
	}
	return buf.String()
}

func TestExecPrintStmt(t *testing.T) {
	out := runProgram(t, `"hello %d\n", 1+2;`)
	if out != "hello 3\n" {
		t.Fatalf("got %q", out)
	}
}

func TestExecWhileBreakContinue(t *testing.T) {
	out := runProgram(t, `
I64 i = 0;
I64 sum = 0;
while (i < 10) {
  i++;
  if (i == 5) continue;
  if (i > 8) break;
  sum += i;
  "%d,", sum;
}
`)
	if !strings.HasSuffix(out, "31,") {
		t.Fatalf("got %q", out)
	}
}

func TestCompareChainFalseWhenLastPairFails(t *testing.T) {
	out := runProgram(t, `
I64 a = 5, b = 5, c = 3;
if (a == b == c)
  "yes";
else
  "no";
`)
	if out != "no" {
		t.Fatalf("got %q", out)
	}
}

func TestPointerArithmetic(t *testing.T) {
	out := runProgram(t, `
U8 *p = MAlloc(8);
*p = 65;
*(p+1) = 66;
"%c%c", *p, *(p+1);
`)
	if out != "AB" {
		t.Fatalf("got %q", out)
	}
}

func TestClassFieldsAndSizeof(t *testing.T) {
	out := runProgram(t, `
class Point { I64 x; I64 y; };
Point p;
p.x = 3;
p.y = 4;
"%d %d %d", p.x, p.y, sizeof(Point);
`)
	if out != "3 4 16" {
		t.Fatalf("got %q", out)
	}
}

func TestSwitchAutoIncrementCaseAndFallthrough(t *testing.T) {
	out := runProgram(t, `
I64 x = 1;
switch (x) {
  case 0:
  case:
    "matched\n";
  case 5:
    "five\n";
}
`)
	if out != "matched\nfive\n" {
		t.Fatalf("got %q", out)
	}
}

func TestTryCatchThrow(t *testing.T) {
	out := runProgram(t, `
try {
  throw;
  "unreached";
} catch {
  "caught";
}
`)
	if out != "caught" {
		t.Fatalf("got %q", out)
	}
}

func TestFormatCommaGrouping(t *testing.T) {
	out := runProgram(t, `"%,d", 1234567;`)
	if out != "1,234,567" {
		t.Fatalf("got %q", out)
	}
}

func TestEnumAutoIncrement(t *testing.T) {
	out := runProgram(t, `
enum { A, B, C = 10, D };
"%d %d %d %d", A, B, C, D;
`)
	if out != "0 1 10 11" {
		t.Fatalf("got %q", out)
	}
}

func TestSpriteParseSimpleBitmap(t *testing.T) {
	payload := make([]byte, 0, 128)
	payload = append(payload, sptBitmap)
	payload = append(payload, le32bytes(0)...)
	payload = append(payload, le32bytes(0)...)
	payload = append(payload, le32bytes(16)...)
	payload = append(payload, le32bytes(8)...)
	payload = append(payload, make([]byte, 2*8*8)...) // ceil(16/8)*8*8 = 128
	payload = append(payload, sptEnd)

	elems, err := ParseSprite(payload)
	if err != nil {
		t.Fatalf("parse sprite: %v", err)
	}
	if len(elems) != 1 || elems[0].Op != sptBitmap {
		t.Fatalf("got %+v", elems)
	}
	b := ComputeSpriteBounds(elems)
	if b.MinX != 0 || b.MinY != 0 || b.MaxX != 16 || b.MaxY != 8 {
		t.Fatalf("got bounds %+v", b)
	}
}

func TestSpriteParseCorruptTrailingFF(t *testing.T) {
	payload := make([]byte, 0, 128)
	payload = append(payload, sptBitmap)
	payload = append(payload, le32bytes(0)...)
	payload = append(payload, le32bytes(0)...)
	payload = append(payload, le32bytes(16)...)
	payload = append(payload, le32bytes(8)...)
	payload = append(payload, make([]byte, 2*8*8)...)
	payload = append(payload, 0xff) // corrupted END

	elems, err := ParseSprite(payload)
	if err != nil {
		t.Fatalf("parse corrupt sprite: %v", err)
	}
	b := ComputeSpriteBounds(elems)
	if b.MaxX != 16 || b.MaxY != 8 {
		t.Fatalf("got bounds %+v", b)
	}
}

func TestSpriteBoundsStableAcrossReparse(t *testing.T) {
	payload := make([]byte, 0, 128)
	payload = append(payload, sptBitmap)
	payload = append(payload, le32bytes(0)...)
	payload = append(payload, le32bytes(0)...)
	payload = append(payload, le32bytes(16)...)
	payload = append(payload, le32bytes(8)...)
	payload = append(payload, make([]byte, 2*8*8)...)
	payload = append(payload, sptEnd)

	elems1, err := ParseSprite(payload)
	if err != nil {
		t.Fatalf("parse 1: %v", err)
	}
	elems2, err := ParseSprite(payload)
	if err != nil {
		t.Fatalf("parse 2: %v", err)
	}
	if diff := cmp.Diff(ComputeSpriteBounds(elems1), ComputeSpriteBounds(elems2)); diff != "" {
		t.Fatalf("bounds differ across identical reparses (-first +second):\n%s", diff)
	}
}

func TestFormatOutputMatchesGolden(t *testing.T) {
	got := runProgram(t, `"%,d widgets at %f each\n", 1234567, 3.5;`)
	want := "1,234,567 widgets at 3.500000 each\n"
	if got != want {
		dmp := diffmatchpatch.New()
		diffs := dmp.DiffMain(want, got, false)
		t.Fatalf("format output mismatch:\n%s", dmp.DiffPrettyText(diffs))
	}
}

func TestFormatRepeatCharWithAuxNumber(t *testing.T) {
	out := runProgram(t, `"%h5c", 'x';`)
	if out != "xxxxx" {
		t.Fatalf("got %q", out)
	}
}

func TestFormatRepeatCharWithAuxFromArg(t *testing.T) {
	out := runProgram(t, `"%h*c", 3, 'y';`)
	if out != "yyy" {
		t.Fatalf("got %q", out)
	}
}

func TestFormatCommasViaAuxFlag(t *testing.T) {
	out := runProgram(t, `"%h?d", 123456789;`)
	if out != "123,456,789" {
		t.Fatalf("got %q", out)
	}
}

func TestFormatListItemWithZ(t *testing.T) {
	out := runProgram(t, `"%z", 3, "NULL\0OUTPUT\0INPUT\0NOT\0AND\0";`)
	if out != "NOT" {
		t.Fatalf("got %q", out)
	}
}

func TestFormatFloatWidthAndPrecision(t *testing.T) {
	out := runProgram(t, `"%8.2f", 3.14159;`)
	if out != "    3.14" {
		t.Fatalf("got %q", out)
	}
}

func TestPackUnpackCDateRoundTrip(t *testing.T) {
	days := int64(19500)
	ticks := int64(12345)
	packed := (days << 32) | int64(uint32(ticks))
	t0 := unpackCDate(packed)
	if got := packCDate(t0); (got>>32) != days {
		t.Fatalf("days mismatch: got %d want %d", got>>32, days)
	}
}

func le32bytes(v uint32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}
