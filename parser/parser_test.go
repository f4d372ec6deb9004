package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRender(t *testing.T) {
	testCases := []struct {
		name       string
		template   string
		properties map[string]any
		expected   string
	}{
		{
			name:       "single placeholder",
			template:   "disk at {pct}%",
			properties: map[string]any{"pct": 91},
			expected:   "disk at 91%",
		},
		{
			name:       "multiple placeholders",
			template:   "{user} logged in from {ip}",
			properties: map[string]any{"user": "ada", "ip": "10.0.0.1"},
			expected:   "ada logged in from 10.0.0.1",
		},
		{
			name:       "missing property keeps placeholder",
			template:   "disk at {pct}%",
			properties: map[string]any{},
			expected:   "disk at {pct}%",
		},
		{
			name:       "escaped braces",
			template:   "literal {{braces}} and {value}",
			properties: map[string]any{"value": 7},
			expected:   "literal {braces} and 7",
		},
		{
			name:       "unclosed brace treated as text",
			template:   "broken {placeholder",
			properties: map[string]any{"placeholder": 1},
			expected:   "broken {placeholder",
		},
		{
			name:       "nil value renders empty",
			template:   "value={v}",
			properties: map[string]any{"v": nil},
			expected:   "value=",
		},
		{
			name:       "no placeholders",
			template:   "plain text",
			properties: map[string]any{"unused": 1},
			expected:   "plain text",
		},
		{
			name:       "empty template",
			template:   "",
			properties: nil,
			expected:   "",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Parse(tc.template).Render(tc.properties))
		})
	}
}

func TestExtractPropertyNames(t *testing.T) {
	names := ExtractPropertyNames("{a} then {b} then {a} again")
	assert.Equal(t, []string{"a", "b"}, names, "names are distinct, in first-appearance order")
}

func TestInvalidPropertyNameIsText(t *testing.T) {
	rendered := Parse("bad {not valid} token").Render(map[string]any{"not valid": 1})
	assert.Equal(t, "bad {not valid} token", rendered)
}

func TestParseCachedReusesParse(t *testing.T) {
	ClearCache()
	first := ParseCached("cached {x}")
	second := ParseCached("cached {x}")
	assert.Same(t, first, second)

	ClearCache()
	third := ParseCached("cached {x}")
	assert.NotSame(t, first, third)
}
