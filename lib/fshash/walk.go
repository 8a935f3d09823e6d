package fshash

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/spacemonkeygo/errors"
)

// skipNode is returned from a pre-visit to skip the node and its children.
var skipNode = errors.NewClass("skip").New("skip this node")

type fileWalkNode struct {
	path string // slash separated, relative to the walk root; "." for the root.
	name string // basename; empty for the root.
	info os.FileInfo

	parent   *fileWalkNode
	children []*fileWalkNode // sorted by name.
	itrIndex int             // next child offset
	leaves   [][]byte        // child hashes, accumulated in post-visit order.
}

func newFileWalkNode(basePath string, parent *fileWalkNode, name string) (*fileWalkNode, error) {
	n := &fileWalkNode{path: ".", name: name, parent: parent}
	if parent != nil {
		n.path = parent.path + "/" + name
	}
	var err error
	n.info, err = os.Lstat(n.fullPath(basePath))
	return n, err
}

func (n *fileWalkNode) fullPath(basePath string) string {
	return filepath.Join(basePath, filepath.FromSlash(n.path))
}

/*
	Expand the next subtree.  Done in the pre-order visit step so we
	don't walk every dir up front.
*/
func (n *fileWalkNode) prepareChildren(basePath string) error {
	f, err := os.Open(n.fullPath(basePath))
	if err != nil {
		return err
	}
	names, err := f.Readdirnames(-1)
	f.Close()
	if err != nil {
		return err
	}
	sort.Strings(names)
	n.children = make([]*fileWalkNode, 0, len(names))
	for _, name := range names {
		child, err := newFileWalkNode(basePath, n, name)
		if err != nil {
			return err
		}
		n.children = append(n.children, child)
	}
	return nil
}

func (n *fileWalkNode) nextChild() *fileWalkNode {
	if n.itrIndex >= len(n.children) {
		return nil
	}
	n.itrIndex++
	return n.children[n.itrIndex-1]
}

/*
	walk recursively descends the tree,
	calling `preVisit` on each node,
	then walking children,
	then calling `postVisit` on the node.

	The pre-visit function may add children (and is where they're
	normally expanded); the post-visit function should drop them.
*/
func walk(node *fileWalkNode, preVisit, postVisit func(*fileWalkNode) error) error {
	if err := preVisit(node); err != nil {
		if err == skipNode {
			return nil
		}
		return err
	}
	for next := node.nextChild(); next != nil; next = node.nextChild() {
		if err := walk(next, preVisit, postVisit); err != nil {
			return err
		}
	}
	return postVisit(node)
}
