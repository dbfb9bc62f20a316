package htmlutil

import (
	"context"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func parseDoc(t *testing.T, html string) *goquery.Document {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestGetText(t *testing.T) {
	doc := parseDoc(t, `<div>one <b>two</b> three</div>`)
	require.Equal(t, "one two three", GetText(doc.Find("div").Nodes[0]))
	require.Equal(t, "", GetText(nil))
}

func TestCleanText(t *testing.T) {
	require.Equal(t, "a b", CleanText("  a \t b  "))
	require.Equal(t, "Widget Price", CleanText("\n  Widget\n   Price "))
}

func TestNodeAttributes(t *testing.T) {
	doc := parseDoc(t, `<a href="/x" class="next">go</a><p>plain</p>`)
	require.Equal(t, map[string]string{
		"href":  "/x",
		"class": "next",
	}, NodeAttributes(doc.Find("a").Nodes[0]))
	require.Nil(t, NodeAttributes(doc.Find("p").Nodes[0]))
	require.Nil(t, NodeAttributes(nil))
}

func TestGetAnchors(t *testing.T) {
	doc := parseDoc(t, `<body>
		<a href="/page/2">Next   page</a>
		<a>no link</a>
		<a href="https://example.com/x">Example</a>
	</body>`)

	anchors := GetAnchors(context.Background(), doc.Find("a"))
	require.Equal(t, []Anchor{
		{Name: "Next page", Href: "/page/2"},
		{Name: "no link", Href: ""},
		{Name: "Example", Href: "https://example.com/x"},
	}, anchors)
}
