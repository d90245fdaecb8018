package token

type TokenType string

const (
	ILLEGAL = "ILLEGAL"
	EOF     = "EOF"

	// Literals
	INT    = "INT"    // 42, -7, +3
	STRING = "STRING" // (hello world)

	// Paths: a.b.c, a.b. (reference), _ and _.x (register), +, <, ...
	PATH = "PATH"

	// Modifiers, only when attached to the following token
	EXEC  = ">"
	STORE = "!"

	// Delimiters
	LBRACE = "{"
	RBRACE = "}"
)

type Token struct {
	Type     TokenType
	Literal  string
	Position int // the src index of the token
}
