package lexer

import (
	"soma/internal/token"
	"testing"
)

func TestNextToken(t *testing.T) {
	input := `42 -7 +3 (hello world) { >print } !a.b a.b. _ _.x
) a comment line
>choose !_. - 23 + 23 > ! >! !> a>b
(\48\\69\) >{ 1 }`

	tests := []struct {
		expectedType    token.TokenType
		expectedLiteral string
	}{
		{token.INT, "42"},
		{token.INT, "-7"},
		{token.INT, "+3"},
		{token.STRING, "hello world"},
		{token.LBRACE, "{"},
		{token.EXEC, ">"},
		{token.PATH, "print"},
		{token.RBRACE, "}"},
		{token.STORE, "!"},
		{token.PATH, "a.b"},
		{token.PATH, "a.b."},
		{token.PATH, "_"},
		{token.PATH, "_.x"},
		{token.EXEC, ">"},
		{token.PATH, "choose"},
		{token.STORE, "!"},
		{token.PATH, "_."},
		{token.PATH, "-"},
		{token.INT, "23"},
		{token.PATH, "+"},
		{token.INT, "23"},
		{token.PATH, ">"},
		{token.PATH, "!"},
		{token.EXEC, ">"},
		{token.PATH, "!"},
		{token.STORE, "!"},
		{token.PATH, ">"},
		{token.PATH, "a>b"},
		{token.STRING, "Hi"},
		{token.EXEC, ">"},
		{token.LBRACE, "{"},
		{token.INT, "1"},
		{token.RBRACE, "}"},
		{token.EOF, ""},
	}

	l := New(input)

	for i, tt := range tests {
		tok := l.NextToken()

		if tok.Type != tt.expectedType {
			t.Fatalf("tests[%d] - tokentype wrong. expected=%q, got=%q (%q)",
				i, tt.expectedType, tok.Type, tok.Literal)
		}

		if tok.Literal != tt.expectedLiteral {
			t.Fatalf("tests[%d] - literal wrong. expected=%q, got=%q",
				i, tt.expectedLiteral, tok.Literal)
		}
	}
}

func TestIllegalTokens(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"digits followed by dash", "23-5"},
		{"digits followed by comma", "23,"},
		{"digits followed by exec", "23>print"},
		{"store to numeric", "!+34"},
		{"exec numeric", ">5"},
		{"double store", "!!a"},
		{"store exec", "!>stdout"},
		{"double exec", ">>foo"},
		{"store to block", "!{ 1 }"},
		{"modifier on string", ">(text)"},
		{"unterminated string", "(never closed"},
		{"unterminated escape", `(abc\41`},
		{"empty escape", `(a\\b)`},
		{"non-hex escape", `(a\zz\b)`},
		{"raw NUL", "\x00"},
		{"raw NUL in string", "(a\x00b)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok := New(tt.input).NextToken()
			if tok.Type != token.ILLEGAL {
				t.Fatalf("expected ILLEGAL for %q, got %q (%q)", tt.input, tok.Type, tok.Literal)
			}
		})
	}
}

func TestPositions(t *testing.T) {
	l := New("a\n  >b")
	toks := l.Tokens()
	want := []int{0, 4, 5, 6}
	if len(toks) != len(want) {
		t.Fatalf("expected %d tokens, got %d", len(want), len(toks))
	}
	for i, pos := range want {
		if toks[i].Position != pos {
			t.Fatalf("token %d: expected position %d, got %d", i, pos, toks[i].Position)
		}
	}
}

func TestNumberMayCloseBlock(t *testing.T) {
	toks := New("{ 1}").Tokens()
	if toks[1].Type != token.INT || toks[2].Type != token.RBRACE {
		t.Fatalf("expected INT then RBRACE, got %v", toks)
	}
}

func TestNULIsNotEOF(t *testing.T) {
	toks := New("1 \x00 2").Tokens()
	types := make([]token.TokenType, len(toks))
	for i, tok := range toks {
		types[i] = tok.Type
	}
	want := []token.TokenType{token.INT, token.ILLEGAL, token.INT, token.EOF}
	if len(types) != len(want) {
		t.Fatalf("expected %v, got %v", want, types)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, types)
		}
	}
	if toks[1].Position != 2 {
		t.Fatalf("NUL reported at %d, want 2", toks[1].Position)
	}
}
