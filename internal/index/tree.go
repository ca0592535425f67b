package index

import (
	"fmt"
	"sort"
	"strings"
)

// IgnoredDir reports whether a directory name is pruned by the index
// walk. Dot-directories are always pruned.
func IgnoredDir(name string) bool {
	return ignoreDirs[name] || strings.HasPrefix(name, ".")
}

type treeNode struct {
	name     string
	isDir    bool
	children map[string]*treeNode
}

func (n *treeNode) child(name string, isDir bool) *treeNode {
	if n.children == nil {
		n.children = make(map[string]*treeNode)
	}
	c, ok := n.children[name]
	if !ok {
		c = &treeNode{name: name, isDir: isDir}
		n.children[name] = c
	}
	if isDir {
		c.isDir = true
	}
	return c
}

// Tree renders the indexed workspace as an ASCII tree, directories
// first, cut at maxDepth levels and maxLines output lines. Zero or
// negative limits mean unlimited.
func (e *Engine) Tree(maxDepth, maxLines int) string {
	root := &treeNode{name: ".", isDir: true}
	for _, f := range e.Files() {
		parts := strings.Split(f.RelPath, "/")
		cur := root
		for i, part := range parts {
			cur = cur.child(part, i < len(parts)-1)
		}
	}

	var sb strings.Builder
	lines := 0
	truncated := false

	var render func(n *treeNode, prefix string, depth int)
	render = func(n *treeNode, prefix string, depth int) {
		if truncated || (maxDepth > 0 && depth > maxDepth) {
			return
		}
		names := make([]string, 0, len(n.children))
		for name := range n.children {
			names = append(names, name)
		}
		sort.Slice(names, func(i, j int) bool {
			a, b := n.children[names[i]], n.children[names[j]]
			if a.isDir != b.isDir {
				return a.isDir
			}
			return a.name < b.name
		})
		for i, name := range names {
			if truncated {
				return
			}
			if maxLines > 0 && lines >= maxLines {
				sb.WriteString(prefix + "...\n")
				truncated = true
				return
			}
			c := n.children[name]
			connector, childPrefix := "├── ", prefix+"│   "
			if i == len(names)-1 {
				connector, childPrefix = "└── ", prefix+"    "
			}
			label := c.name
			if c.isDir {
				label += "/"
			}
			fmt.Fprintf(&sb, "%s%s%s\n", prefix, connector, label)
			lines++
			if c.isDir {
				render(c, childPrefix, depth+1)
			}
		}
	}
	render(root, "", 1)
	return strings.TrimSuffix(sb.String(), "\n")
}
