package namedsql

import (
	"strings"

	"github.com/bxshcn/geesql/dialect"
	"github.com/pkg/errors"
)

// ErrUnterminated is returned when a string literal, quoted identifier,
// dollar-quoted constant or block comment is not closed.
var ErrUnterminated = errors.New("unterminated quoted literal or comment")

func isIdentStart(b byte) bool {
	return (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z') || b == '_'
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func isIdentChar(b byte) bool {
	return isIdentStart(b) || isDigit(b)
}

// scanner walks a SQL string once, left to right. Text outside of
// parameter tokens is handed to text unchanged, parameter tokens to param
// without the leading colon.
type scanner struct {
	sql    string
	syntax dialect.Syntax
	text   func(s string)
	param  func(name string)
}

func (s *scanner) run() error {
	sql := s.sql
	start := 0
	flush := func(end int) {
		if end > start {
			s.text(sql[start:end])
		}
		start = end
	}
	for i := 0; i < len(sql); {
		c := sql[i]
		var (
			end int
			err error
		)
		switch {
		case c == '\'' || strings.IndexByte(s.syntax.StringQuotes, c) >= 0:
			end, err = s.skipString(i, c)
		case strings.IndexByte(s.syntax.IdentifierQuotes, c) >= 0:
			end, err = s.skipQuotedIdentifier(i, c)
		case c == '[' && s.syntax.BracketIdentifiers:
			end, err = s.skipBracketIdentifier(i)
		case c == '-' && i+1 < len(sql) && sql[i+1] == '-':
			end = s.skipLineComment(i + 2)
		case c == '#' && s.syntax.HashComments:
			end = s.skipLineComment(i + 1)
		case c == '/' && i+1 < len(sql) && sql[i+1] == '*':
			end, err = s.skipBlockComment(i)
		case c == '$' && s.syntax.DollarQuotes:
			end, err = s.skipDollarQuoted(i)
		case c == ':' && i+1 < len(sql) && sql[i+1] == ':':
			// type cast, e.g. x::int
			end = i + 2
		case c == ':' && i+1 < len(sql) && isIdentStart(sql[i+1]):
			flush(i)
			j := i + 2
			for j < len(sql) && isIdentChar(sql[j]) {
				j++
			}
			s.param(sql[i+1 : j])
			start, i = j, j
			continue
		default:
			end = i + 1
		}
		if err != nil {
			return err
		}
		i = end
	}
	flush(len(sql))
	return nil
}

func (s *scanner) skipString(pos int, quote byte) (int, error) {
	sql := s.sql
	escapes := s.syntax.BackslashEscapes
	// postgres escape string constants: E'...'
	if !escapes && quote == '\'' && pos > 0 && (sql[pos-1] == 'E' || sql[pos-1] == 'e') && (pos == 1 || !isIdentChar(sql[pos-2])) {
		escapes = true
	}
	for i := pos + 1; i < len(sql); i++ {
		switch sql[i] {
		case '\\':
			if escapes {
				i++
			}
		case quote:
			if i+1 < len(sql) && sql[i+1] == quote {
				i++
				continue
			}
			return i + 1, nil
		}
	}
	return 0, errors.Wrapf(ErrUnterminated, "string literal at offset %d", pos)
}

func (s *scanner) skipQuotedIdentifier(pos int, quote byte) (int, error) {
	sql := s.sql
	for i := pos + 1; i < len(sql); i++ {
		if sql[i] == quote {
			if i+1 < len(sql) && sql[i+1] == quote {
				i++
				continue
			}
			return i + 1, nil
		}
	}
	return 0, errors.Wrapf(ErrUnterminated, "quoted identifier at offset %d", pos)
}

// skipBracketIdentifier skips [identifier]; the closing bracket cannot be
// escaped.
func (s *scanner) skipBracketIdentifier(pos int) (int, error) {
	if idx := strings.IndexByte(s.sql[pos+1:], ']'); idx >= 0 {
		return pos + 1 + idx + 1, nil
	}
	return 0, errors.Wrapf(ErrUnterminated, "bracketed identifier at offset %d", pos)
}

func (s *scanner) skipLineComment(pos int) int {
	if idx := strings.IndexByte(s.sql[pos:], '\n'); idx >= 0 {
		return pos + idx + 1
	}
	return len(s.sql)
}

func (s *scanner) skipBlockComment(pos int) (int, error) {
	sql := s.sql
	level := 1
	for i := pos + 2; i < len(sql)-1; i++ {
		if sql[i] == '*' && sql[i+1] == '/' {
			level--
			if level == 0 || !s.syntax.NestedComments {
				return i + 2, nil
			}
			i++
		} else if s.syntax.NestedComments && sql[i] == '/' && sql[i+1] == '*' {
			level++
			i++
		}
	}
	return 0, errors.Wrapf(ErrUnterminated, "block comment at offset %d", pos)
}

// skipDollarQuoted skips $tag$...$tag$. A '$' that does not open a tag
// (for example a $1 positional parameter) is consumed as plain text.
func (s *scanner) skipDollarQuoted(pos int) (int, error) {
	sql := s.sql
	j := pos + 1
	if j < len(sql) && isDigit(sql[j]) {
		return pos + 1, nil
	}
	for j < len(sql) && isIdentChar(sql[j]) {
		j++
	}
	if j >= len(sql) || sql[j] != '$' {
		return pos + 1, nil
	}
	tag := sql[pos : j+1]
	idx := strings.Index(sql[j+1:], tag)
	if idx < 0 {
		return 0, errors.Wrapf(ErrUnterminated, "dollar-quoted constant at offset %d", pos)
	}
	return j + 1 + idx + len(tag), nil
}
