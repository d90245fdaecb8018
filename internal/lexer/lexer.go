package lexer

import (
	"fmt"
	"soma/internal/token"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

type Lexer struct {
	input        string
	position     int  // current byte position in input (points to start of current rune)
	readPosition int  // next byte position in input (start of next rune)
	ch           rune // current rune under examination; 0 at EOF, see atEOF
}

func New(input string) *Lexer {
	l := &Lexer{input: input}
	l.readChar()
	return l
}

// NextToken returns the next token. Lexical errors are reported as ILLEGAL
// tokens whose literal is the error message; the lexer then resumes at the
// next whitespace.
func (l *Lexer) NextToken() token.Token {
	l.skipWhitespace()
	start := l.position

	switch {
	case l.atEOF():
		return token.Token{Type: token.EOF, Literal: "", Position: start}
	case l.ch == 0:
		l.readChar()
		return token.Token{Type: token.ILLEGAL, Literal: "illegal NUL character", Position: start}
	case l.ch == '{':
		l.readChar()
		return token.Token{Type: token.LBRACE, Literal: "{", Position: start}
	case l.ch == '}':
		l.readChar()
		return token.Token{Type: token.RBRACE, Literal: "}", Position: start}
	case l.ch == '(':
		return l.readString()
	case l.ch == '>' || l.ch == '!':
		return l.readModifier()
	case isNumberStart(l.ch, l.peekChar()):
		return l.readNumber()
	default:
		return token.Token{Type: token.PATH, Literal: l.readWord(), Position: start}
	}
}

// Tokens drains the lexer, including the trailing EOF token.
func (l *Lexer) Tokens() []token.Token {
	var out []token.Token
	for {
		tok := l.NextToken()
		out = append(out, tok)
		if tok.Type == token.EOF {
			return out
		}
	}
}

func (l *Lexer) illegal(start int, format string, a ...any) token.Token {
	l.skipWord()
	return token.Token{Type: token.ILLEGAL, Literal: fmt.Sprintf(format, a...), Position: start}
}

// readModifier handles '>' and '!'. Standing alone they are ordinary path
// names (the store may bind a block at ">"), attached to the next token they
// become the execute and store modifiers.
func (l *Lexer) readModifier() token.Token {
	start := l.position
	ch := l.ch
	next := l.peekChar()

	if next == 0 || isWhitespace(next) || next == '}' {
		l.readChar()
		return token.Token{Type: token.PATH, Literal: string(ch), Position: start}
	}

	if next == '(' {
		return l.illegal(start, "modifier '%c' cannot target a string literal", ch)
	}
	if ch == '!' && next == '{' {
		return l.illegal(start, "modifier '!' cannot target a block")
	}
	if isNumberStart(next, l.peekTwoChars()) {
		return l.illegal(start, "modifier '%c' cannot target numeric-like token", ch)
	}
	if next == '>' || next == '!' {
		after := l.peekTwoChars()
		if after != 0 && !isWhitespace(after) && after != '{' && after != '}' {
			return l.illegal(start, "modifier '%c' cannot target '%c'...", ch, next)
		}
	}

	l.readChar()
	if ch == '>' {
		return token.Token{Type: token.EXEC, Literal: ">", Position: start}
	}
	return token.Token{Type: token.STORE, Literal: "!", Position: start}
}

func (l *Lexer) readNumber() token.Token {
	start := l.position
	if l.ch == '+' || l.ch == '-' {
		l.readChar()
	}
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch != 0 && !isWhitespace(l.ch) && l.ch != '}' {
		return l.illegal(start, "illegal numeric literal starting at '%s'",
			l.input[start:l.readPosition])
	}
	return token.Token{Type: token.INT, Literal: l.input[start:l.position], Position: start}
}

// readString reads a parenthesised string. The only escape is \HEX\ which
// inserts the unicode code point HEX.
func (l *Lexer) readString() token.Token {
	start := l.position
	var out strings.Builder
	l.readChar() // opening '('

	for {
		if l.atEOF() {
			return token.Token{Type: token.ILLEGAL, Literal: "unterminated string literal", Position: start}
		}
		switch l.ch {
		case 0:
			nul := l.position
			l.skipString()
			return token.Token{Type: token.ILLEGAL, Literal: "illegal NUL character in string", Position: nul}
		case ')':
			l.readChar()
			return token.Token{Type: token.STRING, Literal: out.String(), Position: start}
		case '\\':
			escStart := l.position
			l.readChar()
			hexStart := l.position
			for l.ch != '\\' && !l.atEOF() {
				l.readChar()
			}
			if l.atEOF() {
				return token.Token{Type: token.ILLEGAL, Literal: "unterminated unicode escape in string", Position: escStart}
			}
			r, msg := decodeEscape(l.input[hexStart:l.position])
			if msg != "" {
				l.skipString()
				return token.Token{Type: token.ILLEGAL, Literal: msg, Position: escStart}
			}
			out.WriteRune(r)
			l.readChar() // closing '\'
		default:
			out.WriteRune(l.ch)
			l.readChar()
		}
	}
}

func decodeEscape(hex string) (rune, string) {
	if hex == "" {
		return 0, "empty unicode escape in string"
	}
	for _, c := range hex {
		if !strings.ContainsRune("0123456789abcdefABCDEF", c) {
			return 0, "non-hex digit in unicode escape in string"
		}
	}
	cp, err := strconv.ParseUint(hex, 16, 32)
	if err != nil || cp > unicode.MaxRune || !utf8.ValidRune(rune(cp)) {
		return 0, "invalid unicode codepoint in string"
	}
	return rune(cp), ""
}

func (l *Lexer) readWord() string {
	start := l.position
	l.skipWord()
	return l.input[start:l.position]
}

func (l *Lexer) skipWord() {
	for l.ch != 0 && !isWhitespace(l.ch) && l.ch != '{' && l.ch != '}' {
		l.readChar()
	}
}

func (l *Lexer) skipString() {
	for !l.atEOF() && l.ch != ')' {
		l.readChar()
	}
	if l.ch == ')' {
		l.readChar()
	}
}

// skipWhitespace also drops comments: a ')' at the start of a token comments
// out the rest of the line.
func (l *Lexer) skipWhitespace() {
	for {
		switch {
		case isWhitespace(l.ch):
			l.readChar()
		case l.ch == ')':
			for l.ch != '\n' && !l.atEOF() {
				l.readChar()
			}
		default:
			return
		}
	}
}

// atEOF reports whether the input is exhausted. A NUL rune in the input is
// not the end of it.
func (l *Lexer) atEOF() bool {
	return l.position >= len(l.input)
}

// readChar advances by one UTF-8 rune, updating byte positions
func (l *Lexer) readChar() {
	if l.readPosition >= len(l.input) {
		l.ch = 0
		l.position = l.readPosition
		return
	}
	r, size := utf8.DecodeRuneInString(l.input[l.readPosition:])
	l.ch = r
	l.position = l.readPosition
	l.readPosition += size
}

// peekChar returns the next rune without advancing; returns 0 at EOF
func (l *Lexer) peekChar() rune {
	if l.readPosition >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPosition:])
	return r
}

// peekTwoChars returns the rune after next without advancing; returns 0 if unavailable
func (l *Lexer) peekTwoChars() rune {
	if l.readPosition >= len(l.input) {
		return 0
	}
	_, size := utf8.DecodeRuneInString(l.input[l.readPosition:])
	next := l.readPosition + size
	if next >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[next:])
	return r
}

func isWhitespace(ch rune) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r'
}

func isDigit(ch rune) bool {
	return '0' <= ch && ch <= '9'
}

func isNumberStart(ch, next rune) bool {
	return isDigit(ch) || ((ch == '+' || ch == '-') && isDigit(next))
}
