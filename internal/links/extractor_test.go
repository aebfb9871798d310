package links

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractorReturnsHrefsInDocumentOrder(t *testing.T) {
	t.Parallel()

	body := []byte(`<html><body>
		<a href="https://www.w3schools.com/">Visit W3Schools.com!</a>
		<a href="/about">About</a>
		<a>no href</a>
		<a href="   ">blank</a>
		<div><a href=" relative/page.html ">Nested</a></div>
		<a href="/about">About again</a>
		<link href="/style.css" rel="stylesheet">
	</body></html>`)

	refs, err := NewExtractor().Extract(body)
	require.NoError(t, err)
	require.Equal(t, []string{
		"https://www.w3schools.com/",
		"/about",
		"relative/page.html",
		"/about",
	}, refs)
}

func TestExtractorHandlesEmptyAndNonHTMLBodies(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body []byte
	}{
		{name: "empty", body: nil},
		{name: "plain text", body: []byte("just some text, no markup")},
		{name: "json", body: []byte(`{"href":"https://example.com"}`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			refs, err := NewExtractor().Extract(tt.body)
			require.NoError(t, err)
			require.Empty(t, refs)
		})
	}
}
