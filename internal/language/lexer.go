package language

import "fmt"

// TokenType is the kind of a lexical token.
type TokenType int

const (
	EOF TokenType = iota
	ILLEGAL

	IDENT // name, optionally with a bracketed argument
	MU
	NU

	PAR      // "||"
	RDIAMOND // "|>"
	LDIAMOND // "<|"
	BAR      // "|"
	LT       // "<"
	GT       // ">"
	SEMI     // ";"
	LPAREN   // "("
	RPAREN   // ")"
	COMMA    // ","
	DOT      // "."
)

var tokenNames = map[TokenType]string{
	EOF:      "end of input",
	ILLEGAL:  "illegal",
	IDENT:    "identifier",
	MU:       "mu",
	NU:       "nu",
	PAR:      "||",
	RDIAMOND: "|>",
	LDIAMOND: "<|",
	BAR:      "|",
	LT:       "<",
	GT:       ">",
	SEMI:     ";",
	LPAREN:   "(",
	RPAREN:   ")",
	COMMA:    ",",
	DOT:      ".",
}

func (t TokenType) String() string {
	if s, ok := tokenNames[t]; ok {
		return s
	}
	return fmt.Sprintf("token(%d)", int(t))
}

// Token is a lexeme with its position. For IDENT, Text is the name and Arg
// the bracketed argument when HasArg is set.
type Token struct {
	Type   TokenType
	Text   string
	Arg    string
	HasArg bool
	Pos    Position
}

func (t Token) literal() string {
	switch {
	case t.Type == EOF:
		return ""
	case t.HasArg:
		return t.Text + "[" + t.Arg + "]"
	default:
		return t.Text
	}
}

type lexer struct {
	src  string
	off  int
	line int
	col  int
}

func isIdentByte(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

func (l *lexer) pos() Position { return Position{Offset: l.off, Line: l.line, Column: l.col} }

func (l *lexer) advance(n int) {
	for ; n > 0 && l.off < len(l.src); n-- {
		if l.src[l.off] == '\n' {
			l.line++
			l.col = 1
		} else {
			l.col++
		}
		l.off++
	}
}

func (l *lexer) peekByte(k int) byte {
	if l.off+k < len(l.src) {
		return l.src[l.off+k]
	}
	return 0
}

// Tokenize splits src into tokens, ending with EOF.
func Tokenize(src string) ([]Token, error) {
	l := &lexer{src: src, line: 1, col: 1}
	var toks []Token
	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
		if tok.Type == EOF {
			return toks, nil
		}
	}
}

func (l *lexer) next() (Token, error) {
	for l.off < len(l.src) {
		switch l.src[l.off] {
		case ' ', '\t', '\r', '\n':
			l.advance(1)
			continue
		}
		break
	}
	start := l.pos()
	if l.off >= len(l.src) {
		return Token{Type: EOF, Pos: start}, nil
	}
	punct := func(t TokenType, n int) (Token, error) {
		text := l.src[l.off : l.off+n]
		l.advance(n)
		return Token{Type: t, Text: text, Pos: start}, nil
	}
	switch c := l.src[l.off]; {
	case c == '|' && l.peekByte(1) == '|':
		return punct(PAR, 2)
	case c == '|' && l.peekByte(1) == '>':
		return punct(RDIAMOND, 2)
	case c == '<' && l.peekByte(1) == '|':
		return punct(LDIAMOND, 2)
	case c == '|':
		return punct(BAR, 1)
	case c == '<':
		return punct(LT, 1)
	case c == '>':
		return punct(GT, 1)
	case c == ';':
		return punct(SEMI, 1)
	case c == '(':
		return punct(LPAREN, 1)
	case c == ')':
		return punct(RPAREN, 1)
	case c == ',':
		return punct(COMMA, 1)
	case c == '.':
		return punct(DOT, 1)
	case isIdentByte(c):
		return l.ident(start)
	default:
		return Token{}, &SyntaxError{Pos: start, Token: string(c), Message: "unexpected character"}
	}
}

func (l *lexer) ident(start Position) (Token, error) {
	begin := l.off
	for l.off < len(l.src) && isIdentByte(l.src[l.off]) {
		l.advance(1)
	}
	tok := Token{Type: IDENT, Text: l.src[begin:l.off], Pos: start}
	switch tok.Text {
	case "mu":
		tok.Type = MU
		return tok, nil
	case "nu":
		tok.Type = NU
		return tok, nil
	}
	if l.peekByte(0) != '[' {
		return tok, nil
	}
	open := l.pos()
	l.advance(1)
	argStart := l.off
	for l.off < len(l.src) {
		switch l.src[l.off] {
		case ']':
			tok.Arg, tok.HasArg = l.src[argStart:l.off], true
			l.advance(1)
			return tok, nil
		case '[', '\n':
			return Token{}, &SyntaxError{Pos: l.pos(), Token: string(l.src[l.off]), Message: "unterminated argument of " + tok.Text}
		}
		l.advance(1)
	}
	return Token{}, &SyntaxError{Pos: open, Token: tok.Text + "[", Message: "unterminated argument"}
}
