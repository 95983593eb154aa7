package units

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

type tokKind int

const (
	tokEOF tokKind = iota
	tokNum
	tokIdent
	tokMul
	tokDiv
	tokPow
	tokLParen
	tokRParen
)

type token struct {
	kind tokKind
	text string
	num  float64
	exp  int // trailing digit exponent of an identifier: dm3
}

func isIdentRune(r rune) bool {
	return unicode.IsLetter(r) || r == '°' || r == '%' || r == '_' || r == 'µ'
}

func tokenize(s string) ([]token, error) {
	var out []token
	rs := []rune(s)
	for i := 0; i < len(rs); {
		r := rs[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '*' && i+1 < len(rs) && rs[i+1] == '*':
			out = append(out, token{kind: tokPow})
			i += 2
		case r == '*' || r == '·':
			out = append(out, token{kind: tokMul})
			i++
		case r == '/':
			out = append(out, token{kind: tokDiv})
			i++
		case r == '^':
			out = append(out, token{kind: tokPow})
			i++
		case r == '(':
			out = append(out, token{kind: tokLParen})
			i++
		case r == ')':
			out = append(out, token{kind: tokRParen})
			i++
		case unicode.IsDigit(r) || r == '.' || r == '-' || r == '+':
			j := i + 1
			for j < len(rs) && (unicode.IsDigit(rs[j]) || rs[j] == '.' ||
				((rs[j] == 'e' || rs[j] == 'E') && j+1 < len(rs) && (unicode.IsDigit(rs[j+1]) || rs[j+1] == '-'))) {
				if rs[j] == 'e' || rs[j] == 'E' {
					j++
				}
				j++
			}
			f, err := strconv.ParseFloat(string(rs[i:j]), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: bad number %q", ErrUndefinedUnit, string(rs[i:j]))
			}
			out = append(out, token{kind: tokNum, num: f, text: string(rs[i:j])})
			i = j
		case isIdentRune(r):
			j := i + 1
			for j < len(rs) && isIdentRune(rs[j]) {
				j++
			}
			t := token{kind: tokIdent, text: string(rs[i:j]), exp: 1}
			k := j
			for k < len(rs) && unicode.IsDigit(rs[k]) {
				k++
			}
			if k > j {
				t.exp, _ = strconv.Atoi(string(rs[j:k]))
			}
			out = append(out, t)
			i = k
		default:
			return nil, fmt.Errorf("%w: unexpected %q in %q", ErrUndefinedUnit, r, s)
		}
	}
	return append(out, token{kind: tokEOF}), nil
}

type exprParser struct {
	reg  *Registry
	toks []token
	pos  int
}

func (p *exprParser) peek() token { return p.toks[p.pos] }
func (p *exprParser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

// Parse evaluates a unit expression such as "mg / (1l)", "uS/cm", "cfu/100ml"
// or "mol*dm^-3". Juxtaposition multiplies and binds tighter than "/".
func (r *Registry) Parse(expr string) (Quantity, error) {
	if strings.TrimSpace(expr) == "" {
		return Quantity{}, fmt.Errorf("%w: empty unit", ErrUndefinedUnit)
	}
	toks, err := tokenize(expr)
	if err != nil {
		return Quantity{}, err
	}
	p := &exprParser{reg: r, toks: toks}
	q, err := p.expr()
	if err != nil {
		return Quantity{}, err
	}
	if p.peek().kind != tokEOF {
		return Quantity{}, fmt.Errorf("%w: trailing input in %q", ErrUndefinedUnit, expr)
	}
	return q, nil
}

func (p *exprParser) expr() (Quantity, error) {
	q, err := p.product()
	if err != nil {
		return q, err
	}
	for {
		switch p.peek().kind {
		case tokMul:
			p.next()
			o, err := p.product()
			if err != nil {
				return q, err
			}
			q = q.mul(o)
		case tokDiv:
			p.next()
			o, err := p.product()
			if err != nil {
				return q, err
			}
			q = q.div(o)
		default:
			return q, nil
		}
	}
}

func (p *exprParser) product() (Quantity, error) {
	q, err := p.power()
	if err != nil {
		return q, err
	}
	for {
		switch p.peek().kind {
		case tokNum, tokIdent, tokLParen:
			o, err := p.power()
			if err != nil {
				return q, err
			}
			q = q.mul(o)
		default:
			return q, nil
		}
	}
}

func (p *exprParser) power() (Quantity, error) {
	q, err := p.atom()
	if err != nil {
		return q, err
	}
	if p.peek().kind != tokPow {
		return q, nil
	}
	p.next()
	t := p.next()
	if t.kind != tokNum || t.num != float64(int(t.num)) {
		return q, fmt.Errorf("%w: exponent must be an integer", ErrUndefinedUnit)
	}
	return q.pow(int(t.num)), nil
}

func (p *exprParser) atom() (Quantity, error) {
	t := p.next()
	switch t.kind {
	case tokNum:
		return Quantity{Scale: t.num}, nil
	case tokIdent:
		q, err := p.reg.Lookup(t.text)
		if err != nil {
			return q, err
		}
		return q.pow(t.exp), nil
	case tokLParen:
		q, err := p.expr()
		if err != nil {
			return q, err
		}
		if p.next().kind != tokRParen {
			return q, fmt.Errorf("%w: missing \")\"", ErrUndefinedUnit)
		}
		return q, nil
	default:
		return Quantity{}, fmt.Errorf("%w: unexpected token", ErrUndefinedUnit)
	}
}
