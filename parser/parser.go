// Package parser parses message templates with named placeholders, e.g.
// "disk at {pct}%", and renders them against an event's properties.
package parser

import (
	"strings"
	"unicode"
)

// Parse parses a message template string into a MessageTemplate.
func Parse(template string) *MessageTemplate {
	if template == "" {
		return &MessageTemplate{Raw: template}
	}

	var tokens []Token
	i := 0
	textStart := 0

	for i < len(template) {
		switch template[i] {
		case '{':
			if i > textStart {
				tokens = append(tokens, &TextToken{Text: template[textStart:i]})
			}

			// Escaped brace: "{{" renders as "{".
			if i+1 < len(template) && template[i+1] == '{' {
				tokens = append(tokens, &TextToken{Text: "{"})
				i += 2
				textStart = i
				continue
			}

			propStart := i + 1
			propEnd := strings.IndexByte(template[propStart:], '}')
			if propEnd == -1 {
				// Unclosed property, treat the rest as text.
				tokens = append(tokens, &TextToken{Text: template[i:]})
				return &MessageTemplate{Raw: template, Tokens: tokens}
			}
			propEnd += propStart

			name := template[propStart:propEnd]
			if isValidPropertyName(name) {
				tokens = append(tokens, &PropertyToken{PropertyName: name})
			} else {
				tokens = append(tokens, &TextToken{Text: template[i : propEnd+1]})
			}

			i = propEnd + 1
			textStart = i

		case '}':
			// Escaped brace: "}}" renders as "}".
			if i+1 < len(template) && template[i+1] == '}' {
				if i > textStart {
					tokens = append(tokens, &TextToken{Text: template[textStart:i]})
				}
				tokens = append(tokens, &TextToken{Text: "}"})
				i += 2
				textStart = i
				continue
			}
			i++

		default:
			i++
		}
	}

	if textStart < len(template) {
		tokens = append(tokens, &TextToken{Text: template[textStart:]})
	}

	return &MessageTemplate{Raw: template, Tokens: tokens}
}

func isValidPropertyName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return false
		}
	}
	return true
}

// ExtractPropertyNames returns the distinct placeholder names in a template,
// in order of first appearance.
func ExtractPropertyNames(template string) []string {
	mt := ParseCached(template)
	names := make([]string, 0, len(mt.Tokens)/2)
	seen := make(map[string]bool)

	for _, token := range mt.Tokens {
		if prop, ok := token.(*PropertyToken); ok && !seen[prop.PropertyName] {
			names = append(names, prop.PropertyName)
			seen[prop.PropertyName] = true
		}
	}
	return names
}
