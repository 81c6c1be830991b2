package dsl

import (
	"fmt"
	"io"
	"strconv"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

var (
	notesLexer = lexer.MustSimple([]lexer.SimpleRule{
		{Name: "Comment", Pattern: `//[^\n]*`},
		{Name: "Whitespace", Pattern: `[ \t\r]+`},
		{Name: "Newline", Pattern: `\n+`},
		{Name: "Color", Pattern: `#(?:[0-9A-Fa-f]{6}|[0-9A-Fa-f]{3})`},
		{Name: "Number", Pattern: `\d+(?:\.\d+)?(?:pt|mm|cm|in|x)?`},
		{Name: "String", Pattern: `"(?:\\.|[^"\\])*"`},
		{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_-]*`},
		{Name: "Punct", Pattern: `[{}\[\]:;,]`},
	})

	tokenNames  = map[lexer.TokenType]string{}
	tokNewline  = tokenType("Newline")
	tokString   = tokenType("String")
	tokPunct    = tokenType("Punct")
	notesParser = participle.MustBuild[Document](
		participle.Lexer(notesLexer),
		participle.Elide("Whitespace", "Comment"),
	)
)

func init() {
	for name, tt := range notesLexer.Symbols() {
		tokenNames[tt] = name
	}
}

// Document is the root of a notes manifest:
//
//	notes <name> <version> { <section>* }
type Document struct {
	Pos      lexer.Position `parser:"" json:"-"`
	Name     string         `parser:"Newline* 'notes' @Ident"`
	Version  string         `parser:"@Ident"`
	Sections []*Section     `parser:"'{' Newline* ( @@ Newline* )* '}' Newline*"`
}

// Section is one of meta/instruction/fonts/page/images.
type Section struct {
	Meta        *MetaSection        `parser:"  @@"`
	Instruction *InstructionSection `parser:"| @@"`
	Fonts       *FontsSection       `parser:"| @@"`
	Page        *PageSection        `parser:"| @@"`
	Images      *ImagesSection      `parser:"| @@"`
}

// Kind returns the section keyword.
func (s *Section) Kind() string {
	switch {
	case s == nil:
		return "unknown"
	case s.Meta != nil:
		return "meta"
	case s.Instruction != nil:
		return "instruction"
	case s.Fonts != nil:
		return "fonts"
	case s.Page != nil:
		return "page"
	case s.Images != nil:
		return "images"
	default:
		return "unknown"
	}
}

type MetaSection struct {
	Block *Block `parser:"'meta' @@"`
}

// InstructionSection carries the custom request sent along with every image.
type InstructionSection struct {
	Text StringLiteral `parser:"'instruction' @String"`
}

// FontsSection assigns font sources to the title and body text (title: "embed:serif-bold").
type FontsSection struct {
	Block *Block `parser:"'fonts' @@"`
}

// PageSection describes page geometry (header tokens) and typography (block).
type PageSection struct {
	Spec  PageSpec `parser:"'page' @@"`
	Block *Block   `parser:"@@?"`
}

// PageSpec stores header tokens, eg: letter landscape margin 20pt.
type PageSpec struct {
	Size   string    `parser:"@Ident"`
	Params []*Lexeme `parser:"@@*"`
}

type ImagesSection struct {
	Block *Block `parser:"'images' @@"`
}

// Block is a braced list of statements separated by newlines or ';'.
type Block struct {
	Statements []*Statement `parser:"'{' Newline* ( @@ ( ';' | Newline )* )* '}'"`
}

// Statement is either `key: value` or `name arg...`.
type Statement struct {
	Pos        lexer.Position `parser:"" json:"-"`
	Assignment *Assignment    `parser:"  @@"`
	Command    *Command       `parser:"| @@"`
}

type Assignment struct {
	Key   string `parser:"@Ident"`
	Value *Value `parser:"':' Newline* @@"`
}

// Command is a keyword followed by arguments up to the end of the line.
type Command struct {
	Pos  lexer.Position `parser:"" json:"-"`
	Name string         `parser:"@Ident"`
	Args []*Lexeme      `parser:"@@*"`
}

// Value is a scalar or a `[ ... ]` list of values.
type Value struct {
	String *StringLiteral `parser:"  @String"`
	Number *string        `parser:"| @Number"`
	Color  *string        `parser:"| @Color"`
	Word   *string        `parser:"| @Ident"`
	Array  *ArrayValue    `parser:"| @@"`
}

// ArrayValue items are separated by ',' or newlines.
type ArrayValue struct {
	Values []*Value `parser:"'[' Newline* ( @@ ( ( ',' | Newline ) Newline* @@ )* )? Newline* ','? Newline* ']'"`
}

// Lexeme is one command argument token; string arguments are unquoted into Value.
type Lexeme struct {
	Type  string         `json:"type"`
	Value string         `json:"value"`
	Raw   string         `json:"raw"`
	Pos   lexer.Position `json:"-"`
}

// Parse implements participle.Parseable: it takes one token unless the line ends.
func (l *Lexeme) Parse(lex *lexer.PeekingLexer) error {
	if endsArgs(lex.Peek()) {
		return participle.NextMatch
	}
	tok := lex.Next()
	value := tok.Value
	if tok.Type == tokString {
		s, err := strconv.Unquote(value)
		if err != nil {
			return participle.Errorf(tok.Pos, "invalid string %s: %v", value, err)
		}
		value = s
	}
	*l = Lexeme{Type: tokenNames[tok.Type], Value: value, Raw: tok.Value, Pos: tok.Pos}
	return nil
}

// 参数在换行、';' 或花括号处结束
func endsArgs(tok *lexer.Token) bool {
	if tok == nil || tok.EOF() || tok.Type == tokNewline {
		return true
	}
	if tok.Type != tokPunct {
		return false
	}
	switch tok.Value {
	case ";", "{", "}":
		return true
	}
	return false
}

// StringLiteral unquotes Go-style strings on capture.
type StringLiteral string

// Capture implements participle.Capture.
func (s *StringLiteral) Capture(values []string) error {
	if len(values) == 0 {
		return fmt.Errorf("string literal capture requires value")
	}
	val, err := strconv.Unquote(values[0])
	if err != nil {
		return err
	}
	*s = StringLiteral(val)
	return nil
}

// Parse parses a manifest from an io.Reader.
func Parse(r io.Reader) (*Document, error) {
	return notesParser.Parse("", r)
}

// ParseString parses a manifest from a string.
func ParseString(input string) (*Document, error) {
	return notesParser.ParseString("", input)
}

func tokenType(name string) lexer.TokenType {
	tt, ok := notesLexer.Symbols()[name]
	if !ok {
		panic(fmt.Sprintf("token %s not defined", name))
	}
	return tt
}
