package dsl

import (
	"fmt"
	"os"
	"strings"
)

// ParseFile parses the manifest at path; error positions carry the file name.
func ParseFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return notesParser.Parse(path, f)
}

// Text flattens a scalar value into its string form. Arrays yield "".
func (v *Value) Text() string {
	if v == nil {
		return ""
	}
	switch {
	case v.String != nil:
		return string(*v.String)
	case v.Number != nil:
		return *v.Number
	case v.Color != nil:
		return *v.Color
	case v.Word != nil:
		return *v.Word
	default:
		return ""
	}
}

// Strings returns array items as strings; a scalar becomes a single-element slice.
func (v *Value) Strings() []string {
	if v == nil {
		return nil
	}
	if v.Array != nil {
		out := make([]string, 0, len(v.Array.Values))
		for _, item := range v.Array.Values {
			if s := item.Text(); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	if s := v.Text(); s != "" {
		return []string{s}
	}
	return nil
}

// Assignments collects `key: value` statements of a block. Keys are lower-cased;
// later assignments win.
func (b *Block) Assignments() map[string]*Value {
	out := map[string]*Value{}
	if b == nil {
		return out
	}
	for _, stmt := range b.Statements {
		if stmt.Assignment == nil {
			continue
		}
		out[strings.ToLower(stmt.Assignment.Key)] = stmt.Assignment.Value
	}
	return out
}

// Commands returns the commands called name, in order.
func (b *Block) Commands(name string) []*Command {
	if b == nil {
		return nil
	}
	var out []*Command
	for _, stmt := range b.Statements {
		if stmt.Command != nil && stmt.Command.Name == name {
			out = append(out, stmt.Command)
		}
	}
	return out
}

// Options turns trailing `key value` argument pairs into a map, starting at args[from].
func (c *Command) Options(from int) map[string]string {
	out := map[string]string{}
	if c == nil {
		return out
	}
	for i := from; i+1 < len(c.Args); i += 2 {
		out[strings.ToLower(c.Args[i].Value)] = c.Args[i+1].Value
	}
	return out
}

// Errorf prefixes an error with the command's source position.
func (c *Command) Errorf(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if c == nil {
		return fmt.Errorf("%s", msg)
	}
	return fmt.Errorf("%s: %s", c.Pos, msg)
}

// Errorf prefixes an error with the statement's source position.
func (s *Statement) Errorf(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if s == nil {
		return fmt.Errorf("%s", msg)
	}
	return fmt.Errorf("%s: %s", s.Pos, msg)
}
