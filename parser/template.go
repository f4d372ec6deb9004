package parser

import (
	"fmt"
	"strings"
	"sync"
)

// Token is a single piece of a parsed message template.
type Token interface {
	// Render returns the token's text, substituting from properties.
	Render(properties map[string]any) string
}

// TextToken is literal text in a message template.
type TextToken struct {
	Text string
}

// Render returns the literal text.
func (t *TextToken) Render(map[string]any) string {
	return t.Text
}

// PropertyToken is a named placeholder in a message template.
type PropertyToken struct {
	PropertyName string
}

// Render returns the property value's string form, or the placeholder
// itself when the property is missing.
func (p *PropertyToken) Render(properties map[string]any) string {
	if value, ok := properties[p.PropertyName]; ok {
		if value == nil {
			return ""
		}
		return fmt.Sprintf("%v", value)
	}
	return "{" + p.PropertyName + "}"
}

// MessageTemplate is a parsed message template.
type MessageTemplate struct {
	// Raw is the original template string.
	Raw string

	// Tokens are the parsed tokens, in template order.
	Tokens []Token
}

// Render substitutes properties into the template.
func (mt *MessageTemplate) Render(properties map[string]any) string {
	var sb strings.Builder
	for _, token := range mt.Tokens {
		sb.WriteString(token.Render(properties))
	}
	return sb.String()
}

var templateCache = &struct {
	sync.RWMutex
	templates map[string]*MessageTemplate
}{templates: make(map[string]*MessageTemplate)}

// ParseCached parses a template, reusing a prior parse of the same string.
func ParseCached(template string) *MessageTemplate {
	templateCache.RLock()
	if cached, ok := templateCache.templates[template]; ok {
		templateCache.RUnlock()
		return cached
	}
	templateCache.RUnlock()

	parsed := Parse(template)

	templateCache.Lock()
	templateCache.templates[template] = parsed
	templateCache.Unlock()
	return parsed
}

// ClearCache drops all cached templates.
func ClearCache() {
	templateCache.Lock()
	templateCache.templates = make(map[string]*MessageTemplate)
	templateCache.Unlock()
}
