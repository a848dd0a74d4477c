package language

import "fmt"

type parser struct {
	toks  []Token
	i     int
	scope []string
}

// Parse parses formula text into an expression tree.
func Parse(src string) (Expr, error) {
	toks, err := Tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	e, err := p.expr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.Type != EOF {
		if t.Type == RPAREN {
			return nil, p.errorf(t, "unbalanced parentheses")
		}
		return nil, p.errorf(t, "unexpected %s", t.Type)
	}
	return e, nil
}

// MustParse is Parse for formulas known to be valid.
func MustParse(src string) Expr {
	e, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return e
}

func (p *parser) peek() Token { return p.toks[p.i] }

func (p *parser) peekAt(k int) Token {
	if p.i+k < len(p.toks) {
		return p.toks[p.i+k]
	}
	return p.toks[len(p.toks)-1]
}

func (p *parser) next() Token {
	t := p.toks[p.i]
	if t.Type != EOF {
		p.i++
	}
	return t
}

func (p *parser) errorf(t Token, format string, args ...any) error {
	return &SyntaxError{Pos: t.Pos, Token: t.literal(), Message: fmt.Sprintf(format, args...)}
}

func (p *parser) need(tt TokenType, what string) (Token, error) {
	t := p.peek()
	if t.Type != tt {
		return t, p.errorf(t, "expected %s", what)
	}
	return p.next(), nil
}

// name reads an operator name, keeping its argument in key form.
func (p *parser) name(what string) (string, error) {
	t, err := p.need(IDENT, what)
	if err != nil {
		return "", err
	}
	return t.literal(), nil
}

func (p *parser) bound(name string) bool {
	for i := len(p.scope) - 1; i >= 0; i-- {
		if p.scope[i] == name {
			return true
		}
	}
	return false
}

func (p *parser) expr() (Expr, error) {
	start := p.peek()
	first, err := p.seq()
	if err != nil {
		return nil, err
	}
	if p.peek().Type != PAR {
		return first, nil
	}
	par := &Parallel{Children: []Expr{first}, Pos: start.Pos}
	for p.peek().Type == PAR {
		p.next()
		c, err := p.seq()
		if err != nil {
			return nil, err
		}
		par.Children = append(par.Children, c)
	}
	return par, nil
}

func (p *parser) seq() (Expr, error) {
	start := p.peek()
	left, err := p.unary()
	if err != nil {
		return nil, err
	}
	for p.peek().Type == SEMI {
		p.next()
		right, err := p.unary()
		if err != nil {
			return nil, err
		}
		left = &Sequential{Left: left, Right: right, Pos: start.Pos}
	}
	return left, nil
}

func (p *parser) unary() (Expr, error) {
	t := p.peek()
	switch t.Type {
	case RDIAMOND:
		p.next()
		sigma, err := p.name("aggregation name")
		if err != nil {
			return nil, err
		}
		return &RightDiamond{Sigma: sigma, Pos: t.Pos}, nil

	case LDIAMOND:
		p.next()
		sigma, err := p.name("aggregation name")
		if err != nil {
			return nil, err
		}
		return &LeftDiamond{Sigma: sigma, Pos: t.Pos}, nil

	case BAR:
		// | phi > sigma, or | > sigma written with a space.
		p.next()
		var phi string
		if p.peek().Type == IDENT {
			phi, _ = p.name("")
		}
		if _, err := p.need(GT, "'>' closing right diamond"); err != nil {
			return nil, err
		}
		sigma, err := p.name("aggregation name")
		if err != nil {
			return nil, err
		}
		return &RightDiamond{Sigma: sigma, Phi: phi, Pos: t.Pos}, nil

	case LT:
		p.next()
		var phi string
		if p.peek().Type == IDENT {
			phi, _ = p.name("")
		}
		if _, err := p.need(BAR, "'|' closing left diamond"); err != nil {
			return nil, err
		}
		sigma, err := p.name("aggregation name")
		if err != nil {
			return nil, err
		}
		return &LeftDiamond{Sigma: sigma, Phi: phi, Pos: t.Pos}, nil

	case LPAREN:
		p.next()
		if p.peek().Type == RPAREN {
			return nil, p.errorf(p.peek(), "empty sub-expression")
		}
		e, err := p.expr()
		if err != nil {
			return nil, err
		}
		if c := p.peek(); c.Type != RPAREN {
			if c.Type == EOF {
				return nil, p.errorf(t, "unbalanced parentheses")
			}
			return nil, p.errorf(c, "expected ')'")
		}
		p.next()
		return e, nil

	case MU, NU:
		return p.fixpoint()

	case IDENT:
		if p.peekAt(1).Type == IDENT && p.peekAt(2).Type == COMMA {
			return nil, p.errorf(t, "unknown binder keyword %q", t.Text)
		}
		p.next()
		if !t.HasArg && p.bound(t.Text) {
			return &Variable{Name: t.Text, Pos: t.Pos}, nil
		}
		return &Atom{Name: t.Text, Arg: t.Arg, HasArg: t.HasArg, Pos: t.Pos}, nil

	case EOF:
		return nil, p.errorf(t, "empty sub-expression")
	case RPAREN:
		return nil, p.errorf(t, "empty sub-expression")
	}
	return nil, p.errorf(t, "unexpected %s", t.Type)
}

func (p *parser) fixpoint() (Expr, error) {
	kw := p.next()
	v, err := p.need(IDENT, "bound variable")
	if err != nil {
		return nil, err
	}
	if v.HasArg {
		return nil, p.errorf(v, "bound variable takes no argument")
	}
	if _, err := p.need(COMMA, "','"); err != nil {
		return nil, err
	}
	base, err := p.name("fixpoint configuration name")
	if err != nil {
		return nil, err
	}
	if _, err := p.need(DOT, "'.'"); err != nil {
		return nil, err
	}
	p.scope = append(p.scope, v.Text)
	body, err := p.unary()
	p.scope = p.scope[:len(p.scope)-1]
	if err != nil {
		return nil, err
	}
	return &FixPoint{Least: kw.Type == MU, Var: v.Text, Base: base, Body: body, Pos: kw.Pos}, nil
}
