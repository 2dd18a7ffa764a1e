package css

import (
	"bytes"
	"fmt"
	"io"
	"strings"
)

// Declaration is a single "property: value" pair. URLs lists every url()
// reference found in the value.
type Declaration struct {
	Property  string
	Value     string
	Important bool
	URLs      []string
}

func (d Declaration) String() string {
	if d.Important {
		return d.Property + ": " + d.Value + " !important"
	}
	return d.Property + ": " + d.Value
}

// Rule is a ruleset with its (grouped) selectors.
type Rule struct {
	Selectors    []string
	Declarations []Declaration
}

// AtRule is a block at-rule. Conditional rules (@media, @supports) and
// @keyframes keep nested items, descriptor rules (@font-face, @page) keep
// declarations.
type AtRule struct {
	Name         string
	Prelude      string
	Items        []Item
	Declarations []Declaration
}

// Item is a top level or nested stylesheet entry, exactly one field is set.
type Item struct {
	Rule   *Rule
	AtRule *AtRule
}

// Stylesheet is parsed stylesheet. Imports are recorded but never written
// out.
type Stylesheet struct {
	Items    []Item
	Imports  []string
	Warnings []string
}

// FontFaces returns font families declared in @font-face rules.
func (s *Stylesheet) FontFaces() []string {
	var res []string
	for _, it := range s.Items {
		if it.AtRule == nil || it.AtRule.Name != "@font-face" {
			continue
		}
		for _, d := range it.AtRule.Declarations {
			if d.Property == "font-family" {
				res = append(res, unquote(d.Value))
			}
		}
	}
	return res
}

// RulesBySelector returns top level rules which have selector in their
// selector group.
func (s *Stylesheet) RulesBySelector(selector string) []Rule {
	var res []Rule
	for _, it := range s.Items {
		if it.Rule == nil {
			continue
		}
		for _, sel := range it.Rule.Selectors {
			if sel == selector {
				res = append(res, *it.Rule)
				break
			}
		}
	}
	return res
}

// WriteTo serializes stylesheet.
func (s *Stylesheet) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for i, it := range s.Items {
		if i > 0 {
			n, err := io.WriteString(w, "\n")
			total += int64(n)
			if err != nil {
				return total, err
			}
		}
		n, err := writeItem(w, it, 0)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (s *Stylesheet) String() string {
	var buf bytes.Buffer
	_, _ = s.WriteTo(&buf)
	return buf.String()
}

func writeItem(w io.Writer, it Item, depth int) (int, error) {
	switch {
	case it.Rule != nil:
		return writeRule(w, it.Rule, depth)
	case it.AtRule != nil:
		return writeAtRule(w, it.AtRule, depth)
	}
	return 0, nil
}

func writeRule(w io.Writer, rule *Rule, depth int) (int, error) {
	indent := strings.Repeat("  ", depth)
	total, err := fmt.Fprintf(w, "%s%s {\n", indent, strings.Join(rule.Selectors, ", "))
	if err != nil {
		return total, err
	}
	n, err := writeDeclarations(w, rule.Declarations, depth+1)
	total += n
	if err != nil {
		return total, err
	}
	n, err = fmt.Fprintf(w, "%s}\n", indent)
	return total + n, err
}

func writeAtRule(w io.Writer, at *AtRule, depth int) (int, error) {
	indent := strings.Repeat("  ", depth)
	head := at.Name
	if at.Prelude != "" {
		head += " " + at.Prelude
	}
	total, err := fmt.Fprintf(w, "%s%s {\n", indent, head)
	if err != nil {
		return total, err
	}
	n, err := writeDeclarations(w, at.Declarations, depth+1)
	total += n
	if err != nil {
		return total, err
	}
	for _, it := range at.Items {
		n, err = writeItem(w, it, depth+1)
		total += n
		if err != nil {
			return total, err
		}
	}
	n, err = fmt.Fprintf(w, "%s}\n", indent)
	return total + n, err
}

func writeDeclarations(w io.Writer, decls []Declaration, depth int) (int, error) {
	indent := strings.Repeat("  ", depth)
	total := 0
	for _, d := range decls {
		n, err := fmt.Fprintf(w, "%s%s;\n", indent, d)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// RemoveDeclarations drops declarations for which drop returns true
// everywhere in the stylesheet and returns number of removed entries.
func (s *Stylesheet) RemoveDeclarations(drop func(Declaration) bool) int {
	return removeInItems(s.Items, drop)
}

func removeInItems(items []Item, drop func(Declaration) bool) int {
	removed := 0
	filter := func(decls []Declaration) []Declaration {
		kept := decls[:0]
		for _, d := range decls {
			if drop(d) {
				removed++
				continue
			}
			kept = append(kept, d)
		}
		return kept
	}
	for _, it := range items {
		switch {
		case it.Rule != nil:
			it.Rule.Declarations = filter(it.Rule.Declarations)
		case it.AtRule != nil:
			it.AtRule.Declarations = filter(it.AtRule.Declarations)
			removed += removeInItems(it.AtRule.Items, drop)
		}
	}
	return removed
}
