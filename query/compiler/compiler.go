// Package compiler turns {ARG} templates into engine-ready statements.
package compiler

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2/lexer"

	"github.com/satishbabariya/anybase/query"
	"github.com/satishbabariya/anybase/query/cache"
)

// Placeholder marks one positional argument in a template.
const Placeholder = "{ARG}"

// castPattern matches a PostgreSQL type name after "::": the multi-word SQL
// standard names, or one identifier. Either may carry a modifier such as
// (255) or (10,2) and array brackets.
const castPattern = `::(?:(?i:double\s+precision|character\s+varying|bit\s+varying|` +
	`(?:timestamp|time)(?:\s*\(\d+\))?\s+with(?:out)?\s+time\s+zone)|[A-Za-z_][A-Za-z0-9_]*)` +
	`(?:\s*\(\s*\d+(?:\s*,\s*\d+)?\s*\))?(?:\[\])*`

// templateLexer splits a template into placeholders, cast suffixes and
// everything else. Rules are tried in order, so "{ARG}" wins over a bare
// brace and "{ARGS}" is plain text.
var templateLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Placeholder", Pattern: `\{ARG\}`},
	{Name: "Cast", Pattern: castPattern},
	{Name: "Text", Pattern: `[^{:]+`},
	{Name: "Punct", Pattern: `[{:]`},
})

var (
	placeholderType = templateLexer.Symbols()["Placeholder"]
	castType        = templateLexer.Symbols()["Cast"]
)

// Marker renders the bind marker for the 1-based parameter position.
type Marker func(position int) string

// QuestionMarker renders "?" (MySQL).
func QuestionMarker(int) string { return "?" }

// NumberedQuestionMarker renders "?N" (SQLite).
func NumberedQuestionMarker(position int) string { return "?" + strconv.Itoa(position) }

// DollarMarker renders "$N" (PostgreSQL).
func DollarMarker(position int) string { return "$" + strconv.Itoa(position) }

// Mode selects how arguments reach the engine.
type Mode int

const (
	// Bind replaces placeholders with native bind markers.
	Bind Mode = iota
	// Escaped substitutes escaped argument text directly into the statement.
	Escaped
)

func (m Mode) String() string {
	if m == Escaped {
		return "escape"
	}
	return "bind"
}

// Compiler compiles templates for one engine.
type Compiler struct {
	// Marker renders bind markers in Bind mode. Defaults to QuestionMarker.
	Marker Marker
	// Mode selects native binding or the escaping fallback.
	Mode Mode
	// StripCasts removes "::type" suffixes that directly follow a placeholder.
	StripCasts bool
}

// Compile validates the argument count and produces a statement.
func (c Compiler) Compile(template string, args []*string) (query.Statement, error) {
	tokens, err := tokenize(template)
	if err != nil {
		return query.Statement{}, err
	}
	if c.StripCasts {
		tokens = stripCasts(tokens)
	}
	if err := checkCount(tokens, len(args)); err != nil {
		return query.Statement{}, err
	}
	if c.Mode == Escaped {
		return query.Statement{Text: substitute(tokens, args)}, nil
	}
	marker := c.Marker
	if marker == nil {
		marker = QuestionMarker
	}
	return bind(tokens, args, marker), nil
}

// Compile binds args into template with the given marker style.
func Compile(template string, args []*string, marker Marker) (query.Statement, error) {
	return Compiler{Marker: marker}.Compile(template, args)
}

// CompileEscaped substitutes escaped args into template. It is the legacy
// path for engines without parameter binding; prefer Compile.
func CompileEscaped(template string, args []*string) (string, error) {
	stmt, err := Compiler{Mode: Escaped}.Compile(template, args)
	return stmt.Text, err
}

// Count returns the number of placeholders in template.
func Count(template string) (int, error) {
	tokens, err := tokenize(template)
	if err != nil {
		return 0, err
	}
	return countPlaceholders(tokens), nil
}

// StripCasts collapses "{ARG}::type[::type...]" back to "{ARG}".
// Casts that do not follow a placeholder are kept.
func StripCasts(template string) (string, error) {
	tokens, err := tokenize(template)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	sb.Grow(len(template))
	for _, tok := range stripCasts(tokens) {
		sb.WriteString(tok.Value)
	}
	return sb.String(), nil
}

// Escape prefixes each of \ ' " ` % with a backslash. It is not
// idempotent: escaping an escaped string doubles the backslashes. The result
// is only safe inside quotes on engines that treat a backslash as an escape
// character, such as MySQL; SQLite and PostgreSQL do not.
func Escape(arg string) string {
	if arg == "" {
		return ""
	}
	var sb strings.Builder
	sb.Grow(len(arg) + 5)
	for _, ch := range arg {
		if strings.ContainsRune("\\'\"`%", ch) {
			sb.WriteByte('\\')
		}
		sb.WriteRune(ch)
	}
	return sb.String()
}

// TemplateCacheSize bounds the number of tokenized templates kept in memory.
const TemplateCacheSize = 1024

// templates holds tokenized templates. Cached slices are read-only.
var templates = cache.New[[]lexer.Token](TemplateCacheSize)

// CacheStats reports hit and miss counts of the template cache.
func CacheStats() cache.Stats {
	return templates.GetStats()
}

func tokenize(template string) ([]lexer.Token, error) {
	return templates.GetOrAdd(template, func() ([]lexer.Token, error) {
		return lexTemplate(template)
	})
}

func lexTemplate(template string) ([]lexer.Token, error) {
	lex, err := templateLexer.LexString("", template)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
	}
	tokens, err := lexer.ConsumeAll(lex)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
	}
	// drop EOF
	return tokens[:len(tokens)-1], nil
}

func stripCasts(tokens []lexer.Token) []lexer.Token {
	out := make([]lexer.Token, 0, len(tokens))
	afterPlaceholder := false
	for _, tok := range tokens {
		switch {
		case tok.Type == placeholderType:
			afterPlaceholder = true
		case tok.Type == castType && afterPlaceholder:
			continue
		default:
			afterPlaceholder = false
		}
		out = append(out, tok)
	}
	return out
}

func countPlaceholders(tokens []lexer.Token) int {
	n := 0
	for _, tok := range tokens {
		if tok.Type == placeholderType {
			n++
		}
	}
	return n
}

func checkCount(tokens []lexer.Token, args int) error {
	if n := countPlaceholders(tokens); n != args {
		return &MismatchError{Placeholders: n, Arguments: args}
	}
	return nil
}

func bind(tokens []lexer.Token, args []*string, marker Marker) query.Statement {
	var sb strings.Builder
	values := make([]any, 0, len(args))
	for _, tok := range tokens {
		if tok.Type != placeholderType {
			sb.WriteString(tok.Value)
			continue
		}
		arg := args[len(values)]
		if arg == nil {
			values = append(values, nil)
		} else {
			values = append(values, *arg)
		}
		sb.WriteString(marker(len(values)))
	}
	return query.Statement{Text: sb.String(), Values: values}
}

// substitute works on tokens of the original template, so placeholder text
// inside an argument is never picked up by a later substitution.
func substitute(tokens []lexer.Token, args []*string) string {
	var sb strings.Builder
	next := 0
	for _, tok := range tokens {
		if tok.Type != placeholderType {
			sb.WriteString(tok.Value)
			continue
		}
		if arg := args[next]; arg != nil {
			sb.WriteString(Escape(*arg))
		}
		next++
	}
	return sb.String()
}
