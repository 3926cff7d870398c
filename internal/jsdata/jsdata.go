// Package jsdata decodes the JavaScript data scripts Doxygen writes next to its
// HTML output. Those scripts are nothing but `var NAME = <literal>;`
// statements, so only literal syntax is accepted: arrays, objects, strings,
// numbers, null and booleans.
//
// Decoded values use the same shapes as encoding/json: nil, bool, float64,
// string, []any and map[string]any.
package jsdata

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/js"
)

// File holds the variables declared by one data script, in declaration order.
type File struct {
	Names []string
	Vars  map[string]any
}

// Var returns the value bound to name.
func (f *File) Var(name string) (any, bool) {
	v, ok := f.Vars[name]
	return v, ok
}

// SyntaxError reports where decoding stopped.
type SyntaxError struct {
	Offset int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("jsdata: offset %d: %s", e.Offset, e.Msg)
}

// Parse decodes every variable declaration in src.
func Parse(src []byte) (*File, error) {
	return parseVars(src, false)
}

// ParseLeading decodes the declarations at the top of a script that goes on
// to define code, such as search/search.js in older Doxygen releases. It
// stops at the first statement that is not a var, let or const declaration,
// or at the first declaration whose value is not a literal.
func ParseLeading(src []byte) (*File, error) {
	return parseVars(src, true)
}

func parseVars(src []byte, leading bool) (*File, error) {
	p := &parser{lex: js.NewLexer(parse.NewInputBytes(src))}
	if err := p.next(); err != nil {
		return nil, err
	}

	f := &File{Vars: make(map[string]any)}
	for !p.eof() {
		if p.tok.data == ";" {
			if err := p.next(); err != nil {
				return nil, err
			}
			continue
		}

		switch p.tok.data {
		case "var", "let", "const":
			if err := p.next(); err != nil {
				return nil, err
			}
		default:
			if leading {
				return f, nil
			}
		}

		name := p.tok.data
		if !isIdentifier(name) {
			return nil, p.errorf("expected variable name, got %q", name)
		}
		if err := p.next(); err != nil {
			return nil, err
		}
		if err := p.expect("="); err != nil {
			return nil, err
		}

		val, err := p.value()
		if err != nil {
			if leading {
				return f, nil
			}
			return nil, fmt.Errorf("decoding %s: %w", name, err)
		}
		if _, dup := f.Vars[name]; !dup {
			f.Names = append(f.Names, name)
		}
		f.Vars[name] = val
	}
	return f, nil
}

type token struct {
	tt     js.TokenType
	data   string
	offset int
}

type parser struct {
	lex    *js.Lexer
	offset int
	tok    token
}

func (p *parser) next() error {
	for {
		tt, data := p.lex.Next()
		off := p.offset
		p.offset += len(data)

		if tt == js.ErrorToken {
			if err := p.lex.Err(); err != nil && !errors.Is(err, io.EOF) {
				return &SyntaxError{Offset: off, Msg: err.Error()}
			}
			p.tok = token{tt: tt, offset: off}
			return nil
		}
		if skippable(tt, data) {
			continue
		}
		p.tok = token{tt: tt, data: string(data), offset: off}
		return nil
	}
}

func skippable(tt js.TokenType, data []byte) bool {
	switch tt {
	case js.WhitespaceToken, js.LineTerminatorToken, js.CommentToken:
		return true
	}
	s := string(data)
	return strings.HasPrefix(s, "//") || strings.HasPrefix(s, "/*") || strings.TrimSpace(s) == ""
}

func (p *parser) eof() bool {
	return p.tok.tt == js.ErrorToken
}

func (p *parser) errorf(format string, args ...any) error {
	return &SyntaxError{Offset: p.tok.offset, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) expect(punct string) error {
	if p.tok.data != punct {
		if p.eof() {
			return p.errorf("expected %q, got end of input", punct)
		}
		return p.errorf("expected %q, got %q", punct, p.tok.data)
	}
	return p.next()
}

func (p *parser) value() (any, error) {
	if p.eof() {
		return nil, p.errorf("unexpected end of input")
	}

	tok := p.tok
	switch {
	case tok.data == "[":
		return p.array()
	case tok.data == "{":
		return p.object()
	case tok.tt == js.StringToken:
		s, err := Unquote(tok.data)
		if err != nil {
			return nil, &SyntaxError{Offset: tok.offset, Msg: err.Error()}
		}
		return s, p.next()
	case tok.data == "-":
		if err := p.next(); err != nil {
			return nil, err
		}
		n, err := p.number()
		if err != nil {
			return nil, err
		}
		return -n, nil
	case isNumberStart(tok.data):
		return p.number()
	case tok.data == "null" || tok.data == "undefined":
		return nil, p.next()
	case tok.data == "true":
		return true, p.next()
	case tok.data == "false":
		return false, p.next()
	}
	return nil, p.errorf("unexpected token %q", tok.data)
}

func (p *parser) number() (float64, error) {
	tok := p.tok
	if !isNumberStart(tok.data) {
		return 0, p.errorf("expected number, got %q", tok.data)
	}
	n, err := parseNumber(tok.data)
	if err != nil {
		return 0, &SyntaxError{Offset: tok.offset, Msg: err.Error()}
	}
	return n, p.next()
}

func (p *parser) array() ([]any, error) {
	if err := p.expect("["); err != nil {
		return nil, err
	}
	list := []any{}
	for {
		switch p.tok.data {
		case "]":
			return list, p.next()
		case ",":
			// Doxygen never emits holes, but trailing commas are common.
			if err := p.next(); err != nil {
				return nil, err
			}
			continue
		}

		v, err := p.value()
		if err != nil {
			return nil, err
		}
		list = append(list, v)

		switch p.tok.data {
		case ",":
			if err := p.next(); err != nil {
				return nil, err
			}
		case "]":
		default:
			return nil, p.errorf("expected \",\" or \"]\" in array, got %q", p.tok.data)
		}
	}
}

func (p *parser) object() (map[string]any, error) {
	if err := p.expect("{"); err != nil {
		return nil, err
	}
	obj := make(map[string]any)
	for {
		if p.tok.data == "}" {
			return obj, p.next()
		}
		if p.eof() {
			return nil, p.errorf("unterminated object")
		}

		var key string
		switch {
		case p.tok.tt == js.StringToken:
			k, err := Unquote(p.tok.data)
			if err != nil {
				return nil, p.errorf("%v", err)
			}
			key = k
		case isNumberStart(p.tok.data):
			n, err := parseNumber(p.tok.data)
			if err != nil {
				return nil, p.errorf("%v", err)
			}
			key = strconv.FormatFloat(n, 'f', -1, 64)
		case isIdentifier(p.tok.data):
			key = p.tok.data
		default:
			return nil, p.errorf("invalid object key %q", p.tok.data)
		}
		if err := p.next(); err != nil {
			return nil, err
		}
		if err := p.expect(":"); err != nil {
			return nil, err
		}

		v, err := p.value()
		if err != nil {
			return nil, err
		}
		obj[key] = v

		switch p.tok.data {
		case ",":
			if err := p.next(); err != nil {
				return nil, err
			}
		case "}":
		default:
			return nil, p.errorf("expected \",\" or \"}\" in object, got %q", p.tok.data)
		}
	}
}

func isNumberStart(s string) bool {
	if s == "" {
		return false
	}
	c := s[0]
	return (c >= '0' && c <= '9') || (c == '.' && len(s) > 1)
}

func parseNumber(s string) (float64, error) {
	clean := strings.ReplaceAll(s, "_", "")
	if i, err := strconv.ParseInt(clean, 0, 64); err == nil {
		return float64(i), nil
	}
	f, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return f, nil
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || r == '$':
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
