// Package css parses user stylesheets and cleans them up for inlining into
// generated documents.
package css

import (
	"bytes"
	"regexp"
	"strings"

	parse "github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
	"go.uber.org/zap"
)

var schemeRe = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.\-]*:`)

// Parser parses CSS stylesheets into structured rules.
type Parser struct {
	log *zap.Logger
}

// NewParser creates a new CSS parser.
func NewParser(log *zap.Logger) *Parser {
	if log == nil {
		log = zap.NewNop()
	}
	return &Parser{log: log.Named("css-parser")}
}

// Parse parses CSS text into a Stylesheet. Source identifies what is being
// parsed for logging. @import rules are recorded in Imports and otherwise
// dropped, unknown block at-rules are skipped with a warning.
func (p *Parser) Parse(data []byte, source string) *Stylesheet {
	sheet := &Stylesheet{}
	if source != "" {
		p.log.Debug("Parsing CSS", zap.String("source", source), zap.Int("bytes", len(data)))
	}

	parser := css.NewParser(parse.NewInput(bytes.NewReader(data)), false)
	sheet.Items = p.parseItems(parser, sheet, 0)
	return sheet
}

// Sanitize parses stylesheet and removes everything able to reach outside
// of a self contained document: imports, remote url() references and
// scripting extensions. Local and data: urls are kept.
func (p *Parser) Sanitize(data []byte, source string) *Stylesheet {
	sheet := p.Parse(data, source)
	for _, u := range sheet.Imports {
		sheet.Warnings = append(sheet.Warnings, "@import dropped: "+u)
	}

	removed := sheet.RemoveDeclarations(func(d Declaration) bool {
		if unsafeDeclaration(d) {
			sheet.Warnings = append(sheet.Warnings, "unsafe declaration dropped: "+d.Property)
			return true
		}
		for _, u := range d.URLs {
			if IsRemote(u) {
				sheet.Warnings = append(sheet.Warnings, "remote url dropped: "+u)
				return true
			}
		}
		return false
	})
	if removed > 0 || len(sheet.Imports) > 0 {
		p.log.Debug("Stylesheet sanitized", zap.String("source", source), zap.Int("declarations", removed), zap.Int("imports", len(sheet.Imports)))
	}
	return sheet
}

// Sanitize is a shortcut returning serialized sanitized stylesheet. Every
// warning is logged.
func Sanitize(data []byte, source string, log *zap.Logger) []byte {
	p := NewParser(log)
	sheet := p.Sanitize(data, source)
	for _, w := range sheet.Warnings {
		p.log.Warn("Stylesheet problem", zap.String("source", source), zap.String("details", w))
	}
	return []byte(sheet.String())
}

// IsRemote reports whether url points outside of the document. Relative
// references and data: URIs are local.
func IsRemote(url string) bool {
	url = strings.TrimSpace(url)
	if strings.HasPrefix(url, "//") {
		return true
	}
	if !schemeRe.MatchString(url) {
		return false
	}
	return !strings.HasPrefix(strings.ToLower(url), "data:")
}

func unsafeDeclaration(d Declaration) bool {
	switch d.Property {
	case "behavior", "-moz-binding":
		return true
	}
	v := strings.ToLower(d.Value)
	return strings.Contains(v, "expression(") || strings.Contains(v, "javascript:")
}

func (p *Parser) parseItems(parser *css.Parser, sheet *Stylesheet, depth int) []Item {
	var (
		items     []Item
		pending   []string
		lastError = -1
	)
	for {
		gt, _, data := parser.Next()

		switch gt {
		case css.ErrorGrammar:
			// end of input or read error
			if !parser.HasParseError() {
				return items
			}
			if parser.Offset() == lastError {
				return items
			}
			lastError = parser.Offset()
			p.log.Debug("CSS parse error", zap.Error(parser.Err()))
			sheet.Warnings = append(sheet.Warnings, parser.Err().Error())

		case css.EndAtRuleGrammar:
			if depth > 0 {
				return items
			}

		case css.BeginAtRuleGrammar:
			name := string(data)
			at := &AtRule{Name: name, Prelude: tokensText(parser.Values())}
			switch baseName(name) {
			case "@media", "@supports", "@keyframes", "@layer":
				at.Items = p.parseItems(parser, sheet, depth+1)
			case "@font-face", "@page":
				at.Declarations = p.parseDeclarations(parser, sheet, css.EndAtRuleGrammar)
			default:
				p.skipAtRuleBlock(parser)
				p.log.Debug("Skipping @-rule", zap.String("rule", name))
				sheet.Warnings = append(sheet.Warnings, "unsupported at-rule dropped: "+name)
				continue
			}
			items = append(items, Item{AtRule: at})

		case css.AtRuleGrammar:
			// simple @-rule without block
			atRule := string(data)
			if atRule == "@import" {
				if url := extractImportURL(parser.Values()); url != "" {
					sheet.Imports = append(sheet.Imports, url)
					p.log.Debug("Parsed @import", zap.String("url", url))
				}
				continue
			}
			p.log.Debug("Skipping @-rule", zap.String("rule", atRule))

		case css.QualifiedRuleGrammar:
			pending = append(pending, p.parseSelectors(data, parser.Values())...)

		case css.BeginRulesetGrammar:
			selectors := append(pending, p.parseSelectors(data, parser.Values())...)
			pending = nil
			decls := p.parseDeclarations(parser, sheet, css.EndRulesetGrammar)
			if len(selectors) == 0 {
				continue
			}
			items = append(items, Item{Rule: &Rule{Selectors: selectors, Declarations: decls}})
		}
	}
}

// parseSelectors extracts selector strings from token data.
func (p *Parser) parseSelectors(data []byte, values []css.Token) []string {
	var sb strings.Builder
	sb.Write(data)
	sb.WriteString(tokensText(values))

	// split by comma for grouped selectors
	var selectors []string
	for s := range strings.SplitSeq(sb.String(), ",") {
		if s = strings.TrimSpace(s); s != "" {
			selectors = append(selectors, s)
		}
	}
	return selectors
}

// parseDeclarations parses property declarations until end grammar.
func (p *Parser) parseDeclarations(parser *css.Parser, sheet *Stylesheet, end css.GrammarType) []Declaration {
	var (
		decls     []Declaration
		lastError = -1
	)
	for {
		gt, _, data := parser.Next()

		switch gt {
		case end:
			return decls

		case css.ErrorGrammar:
			if !parser.HasParseError() || parser.Offset() == lastError {
				return decls
			}
			lastError = parser.Offset()
			// parser recovers at the next ';' or '}'
			sheet.Warnings = append(sheet.Warnings, parser.Err().Error())

		case css.DeclarationGrammar:
			if values := parser.Values(); len(values) > 0 {
				decls = append(decls, declaration(string(data), values))
			}

		case css.CustomPropertyGrammar:
			decls = append(decls, Declaration{Property: string(data), Value: tokensText(parser.Values())})

		case css.BeginAtRuleGrammar, css.BeginRulesetGrammar:
			// nested rules are not supported
			p.skipAtRuleBlock(parser)
		}
	}
}

func declaration(name string, values []css.Token) Declaration {
	d := Declaration{Property: name}
	values = trimWhitespace(values)
	// "!important" arrives as delimiter followed by identifier
	if n := len(values); n >= 2 &&
		values[n-2].TokenType == css.DelimToken && string(values[n-2].Data) == "!" &&
		values[n-1].TokenType == css.IdentToken && strings.EqualFold(string(values[n-1].Data), "important") {
		d.Important = true
		values = values[:n-2]
	}
	d.URLs = extractURLs(values)
	d.Value = tokensText(values)
	return d
}

func trimWhitespace(tokens []css.Token) []css.Token {
	for len(tokens) > 0 && tokens[len(tokens)-1].TokenType == css.WhitespaceToken {
		tokens = tokens[:len(tokens)-1]
	}
	return tokens
}

// tokensText joins tokens back into text. "<" never reaches output
// verbatim, so stylesheet cannot close the element it is inlined into.
func tokensText(tokens []css.Token) string {
	var sb strings.Builder
	for _, t := range tokens {
		if t.TokenType == css.CommentToken {
			continue
		}
		sb.Write(t.Data)
	}
	return strings.ReplaceAll(strings.TrimSpace(sb.String()), "<", `\3c `)
}

func extractURLs(tokens []css.Token) []string {
	var urls []string
	for i := 0; i < len(tokens); i++ {
		t := tokens[i]
		switch t.TokenType {
		case css.URLToken, css.BadURLToken:
			urls = append(urls, urlTokenValue(string(t.Data)))
		case css.FunctionToken:
			if !strings.EqualFold(string(t.Data), "url(") && !strings.EqualFold(string(t.Data), "src(") {
				continue
			}
			for j := i + 1; j < len(tokens); j++ {
				if tokens[j].TokenType == css.WhitespaceToken {
					continue
				}
				if tokens[j].TokenType == css.StringToken {
					urls = append(urls, unquote(string(tokens[j].Data)))
				}
				break
			}
		}
	}
	return urls
}

func urlTokenValue(s string) string {
	if i := strings.IndexByte(s, '('); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(s, ")")
	return unquote(strings.TrimSpace(s))
}

func extractImportURL(tokens []css.Token) string {
	for _, t := range tokens {
		switch t.TokenType {
		case css.StringToken:
			return unquote(string(t.Data))
		case css.URLToken:
			return urlTokenValue(string(t.Data))
		}
	}
	return ""
}

// baseName strips vendor prefix from at-rule name.
func baseName(name string) string {
	if strings.HasPrefix(name, "@-") {
		if i := strings.IndexByte(name[2:], '-'); i >= 0 {
			return "@" + name[i+3:]
		}
	}
	return name
}

// skipAtRuleBlock skips tokens until the matching end of a block.
func (p *Parser) skipAtRuleBlock(parser *css.Parser) {
	depth, lastError := 1, -1
	for depth > 0 {
		gt, _, _ := parser.Next()
		switch gt {
		case css.ErrorGrammar:
			if !parser.HasParseError() || parser.Offset() == lastError {
				return
			}
			lastError = parser.Offset()
		case css.BeginAtRuleGrammar, css.BeginRulesetGrammar:
			depth++
		case css.EndAtRuleGrammar, css.EndRulesetGrammar:
			depth--
		}
	}
}

// unquote removes surrounding quotes from a string.
func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return s
	}
	if (s[0] == '"' && s[len(s)-1] == '"') ||
		(s[0] == '\'' && s[len(s)-1] == '\'') {
		return s[1 : len(s)-1]
	}
	return s
}
