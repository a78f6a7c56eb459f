// Package dompath addresses elements of a parsed document by position.
//
// A path lists, from the document node down, the index of each element
// among its parent's element children. Text and comment nodes are not
// counted, so a path computed on a parsed snapshot still points at the same
// element in the live document it was taken from.
package dompath

import "golang.org/x/net/html"

// PathFor returns the path from the root of n's tree to n.
func PathFor(n *html.Node) []int {
	var path []int
	for n != nil && n.Parent != nil {
		path = append(path, elementIndex(n))
		n = n.Parent
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

func elementIndex(n *html.Node) int {
	idx := 0
	for s := n.PrevSibling; s != nil; s = s.PrevSibling {
		if s.Type == html.ElementNode {
			idx++
		}
	}
	return idx
}
