package parser

import (
	"errors"
	"fmt"
	"soma/internal/lexer"
	"soma/internal/object"
	"soma/internal/token"
	"soma/internal/util"
	"strconv"
	"strings"
)

// Parser groups the token stream into Blocks. Every nested {...} is resolved
// into its own *object.Block at parse time, so executing a Block never
// re-reads source.
type Parser struct {
	l      *lexer.Lexer
	src    string
	errors []string
	first  int // position of the first error, -1 when none

	curToken  token.Token
	peekToken token.Token
}

func New(l *lexer.Lexer, source string) *Parser {
	p := &Parser{l: l, src: source, first: -1}

	// Read two tokens, so curToken and peekToken are both set
	p.nextToken()
	p.nextToken()

	return p
}

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
}

func (p *Parser) curTokenIs(t token.TokenType) bool {
	return p.curToken.Type == t
}

func (p *Parser) peekTokenIs(t token.TokenType) bool {
	return p.peekToken.Type == t
}

func (p *Parser) addErrorAt(pos int, message string, args ...interface{}) {
	line, col := util.GetLineAndColumn(p.src, pos)
	m := fmt.Sprintf(message, args...)
	msg := fmt.Sprintf("[%3d:%2d] %s", line, col, m)
	p.errors = append(p.errors, msg)
	if p.first < 0 {
		p.first = pos
	}
}

func (p *Parser) addError(message string, args ...interface{}) {
	p.addErrorAt(p.curToken.Position, message, args...)
}

// ParseProgram parses the whole input as the top-level Block.
func (p *Parser) ParseProgram() *object.Block {
	instrs := p.parseInstrs(false)
	return object.NewBlock(instrs...)
}

// parseInstrs reads instructions until EOF, or until the closing brace when
// nested. On return curToken is the terminating token.
func (p *Parser) parseInstrs(nested bool) []object.Instr {
	instrs := []object.Instr{}
	open := p.curToken.Position

	for {
		switch {
		case p.curTokenIs(token.EOF):
			if nested {
				p.addErrorAt(open, "unterminated block: missing '}'")
			}
			return instrs
		case p.curTokenIs(token.RBRACE):
			if nested {
				return instrs
			}
			p.addError("unexpected '}' without matching '{'")
		default:
			if in, ok := p.parseInstr(); ok {
				instrs = append(instrs, in)
			}
		}
		p.nextToken()
	}
}

func (p *Parser) parseInstr() (object.Instr, bool) {
	switch p.curToken.Type {
	case token.INT:
		return p.parseInteger()
	case token.STRING:
		return p.at(object.Push(&object.String{Value: p.curToken.Literal})), true
	case token.LBRACE:
		return p.parseBlockLiteral()
	case token.PATH:
		return p.parsePath()
	case token.EXEC:
		return p.parseExec()
	case token.STORE:
		return p.parseStore()
	case token.ILLEGAL:
		p.addError("%s", p.curToken.Literal)
	default:
		p.addError("unexpected token %s", p.curToken.Type)
	}
	return object.Instr{}, false
}

// at stamps the current token's source location on in.
func (p *Parser) at(in object.Instr) object.Instr {
	in.Line, in.Col = util.GetLineAndColumn(p.src, p.curToken.Position)
	return in
}

func (p *Parser) parseInteger() (object.Instr, bool) {
	value, err := strconv.ParseInt(p.curToken.Literal, 10, 64)
	if err != nil {
		p.addError("integer literal %s out of range", p.curToken.Literal)
		return object.Instr{}, false
	}
	return p.at(object.Push(&object.Integer{Value: value})), true
}

func (p *Parser) parseBlock() (*object.Block, bool) {
	errs := len(p.errors)
	p.nextToken() // consume '{'
	instrs := p.parseInstrs(true)
	if len(p.errors) > errs {
		return nil, false
	}
	return object.NewBlock(instrs...), true
}

func (p *Parser) parseBlockLiteral() (object.Instr, bool) {
	in := p.at(object.Instr{Op: object.OpPush})
	block, ok := p.parseBlock()
	if !ok {
		return object.Instr{}, false
	}
	in.Value = block
	return in, true
}

func (p *Parser) path() (object.Path, bool, bool) {
	path, ref, err := object.ParsePath(p.curToken.Literal)
	if err != nil {
		p.addError("%s", err)
		return object.Path{}, false, false
	}
	return path, ref, true
}

func (p *Parser) parsePath() (object.Instr, bool) {
	path, ref, ok := p.path()
	if !ok {
		return object.Instr{}, false
	}
	if ref {
		return p.at(object.ReadRef(path)), true
	}
	return p.at(object.Read(path)), true
}

func (p *Parser) parseExec() (object.Instr, bool) {
	in := p.at(object.Instr{Op: object.OpExec})
	switch {
	case p.peekTokenIs(token.LBRACE):
		p.nextToken()
		block, ok := p.parseBlock()
		if !ok {
			return object.Instr{}, false
		}
		in.Op = object.OpExecBlock
		in.Value = block
		return in, true
	case p.peekTokenIs(token.PATH):
		p.nextToken()
		path, ref, ok := p.path()
		if !ok {
			return object.Instr{}, false
		}
		if ref {
			p.addError("cannot execute reference path '%s'", p.curToken.Literal)
			return object.Instr{}, false
		}
		in.Path = path
		return in, true
	}
	p.addError("expected path or block after '>', got %s", p.peekToken.Type)
	return object.Instr{}, false
}

func (p *Parser) parseStore() (object.Instr, bool) {
	in := p.at(object.Instr{Op: object.OpWrite})
	if !p.peekTokenIs(token.PATH) {
		p.addError("expected path after '!', got %s", p.peekToken.Type)
		return object.Instr{}, false
	}
	p.nextToken()
	path, ref, ok := p.path()
	if !ok {
		return object.Instr{}, false
	}
	if ref {
		in.Op = object.OpWriteReplace
	}
	in.Path = path
	return in, true
}

// Error is returned by Parse and carries every message collected while
// parsing together with the location of the first one.
type Error struct {
	Messages []string
	Position int
	Line     int
	Col      int
}

func (e *Error) Error() string {
	return "parse error: " + strings.Join(e.Messages, "; ")
}

// Context renders the source lines leading up to the first error.
func (e *Error) Context(src string) string {
	return util.GetContextLines(src, e.Line, e.Col, e.Position)
}

// Parse lexes and parses source into its top-level Block.
func Parse(source string) (*object.Block, error) {
	p := New(lexer.New(source), source)
	block := p.ParseProgram()
	if len(p.errors) > 0 {
		line, col := util.GetLineAndColumn(source, p.first)
		return nil, &Error{Messages: p.errors, Position: p.first, Line: line, Col: col}
	}
	return block, nil
}

// IsIncomplete reports whether err only says the input ended too early, as
// with an open block or string. Interactive front ends use it to keep
// reading lines.
func IsIncomplete(err error) bool {
	var pe *Error
	if !errors.As(err, &pe) || len(pe.Messages) == 0 {
		return false
	}
	for _, m := range pe.Messages {
		if !strings.Contains(m, "unterminated block") && !strings.Contains(m, "unterminated string literal") {
			return false
		}
	}
	return true
}
