package common

import (
	"strings"

	"golang.org/x/net/html"
)

// OwnText returns the text of the node's direct child text nodes only,
// trimmed. Unlike a full subtree extraction, child elements are skipped.
func OwnText(node *html.Node) string {
	if node == nil {
		return ""
	}
	var text strings.Builder
	for c := node.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			text.WriteString(c.Data)
		}
	}
	return strings.TrimSpace(text.String())
}

// HasDescendant reports whether the node contains an element with the
// given tag name anywhere below it.
func HasDescendant(node *html.Node, tagName string) bool {
	for c := node.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == tagName {
			return true
		}
		if HasDescendant(c, tagName) {
			return true
		}
	}
	return false
}

// GetAttribute gets the value of an attribute from a node
func GetAttribute(node *html.Node, attrKey string) string {
	if node.Type != html.ElementNode {
		return ""
	}
	for _, attr := range node.Attr {
		if attr.Key == attrKey {
			return attr.Val
		}
	}
	return ""
}
