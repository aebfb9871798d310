package promote

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/linkcrawler/internal/crawler"
)

func TestHeuristicShouldPromote(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		body   string
		want   bool
	}{
		{name: "empty body", status: 200, body: "", want: true},
		{name: "spa marker", status: 200, body: `<html><body><div id="__next"></div></body></html>`, want: true},
		{name: "script heavy", status: 200, body: `<html><script>var a=1;var b=2;</script><p>t</p></html>`, want: true},
		{name: "external bundle", status: 200, body: `<html><script src="/app.js"></script><div></div></html>`, want: true},
		{name: "anchors present", status: 200, body: `<div id="root"><a href="/next">next</a></div>`, want: false},
		{name: "plain text page", status: 200, body: "<p>" + strings.Repeat("hello ", 50) + "</p>", want: false},
		{name: "non 200", status: 404, body: "", want: false},
	}
	h := NewHeuristic(0)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			page := crawler.Page{StatusCode: tt.status, Body: []byte(tt.body)}
			require.Equal(t, tt.want, h.ShouldPromote(page))
		})
	}
}

func TestNewHeuristicDefaultThreshold(t *testing.T) {
	t.Parallel()

	require.Equal(t, 2048, NewHeuristic(0).BodyLengthThreshold)
	require.Equal(t, 10, NewHeuristic(10).BodyLengthThreshold)
}
