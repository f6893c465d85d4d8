package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildSearchText(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected string
	}{
		{
			name:     "lowercases and strips punctuation",
			content:  "Hello, World!",
			expected: "hello world",
		},
		{
			name:     "removes stop words",
			content:  "The quick fox is in the barn",
			expected: "quick fox barn",
		},
		{
			name:     "only stop words",
			content:  "the a an",
			expected: "",
		},
		{
			name:     "empty content",
			content:  "",
			expected: "",
		},
		{
			name:     "collapses whitespace",
			content:  "  several   spaced    words  ",
			expected: "several spaced words",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, BuildSearchText(tt.content))
		})
	}
}

func TestContainsAllQueryWords(t *testing.T) {
	tests := []struct {
		name     string
		document string
		query    string
		expected bool
	}{
		{
			name:     "all words present",
			document: "machine learning is fascinating",
			query:    "machine learning",
			expected: true,
		},
		{
			name:     "missing word",
			document: "machine learning is fascinating",
			query:    "machine vision",
			expected: false,
		},
		{
			name:     "stop words ignored in query",
			document: "quick fox",
			query:    "the quick fox",
			expected: true,
		},
		{
			name:     "case insensitive",
			document: "Machine Learning",
			query:    "machine learning",
			expected: true,
		},
		{
			name:     "query of only stop words never matches",
			document: "anything at all",
			query:    "the a an",
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, containsAllQueryWords(tt.document, tt.query))
		})
	}
}
