package snapshot

// TreeNode wraps one record of a group. IndexInGroup is the record's
// position in the raw group array and is what edits address.
type TreeNode struct {
	Tab          any         `json:"tab"`
	Children     []*TreeNode `json:"children"`
	IndexInGroup int         `json:"indexInGroup"`

	level int
}

// Level is the record's indentation depth at build time.
func (n *TreeNode) Level() int { return n.level }

// BuildTree rebuilds the outline forest of one normalized group in a single
// pass. Equal levels are siblings; a leading record deeper than 0 becomes a
// root.
func BuildTree(records []any) []*TreeNode {
	roots := make([]*TreeNode, 0)
	stack := make([]*TreeNode, 0, 8)

	for i, rec := range records {
		node := &TreeNode{
			Tab:          rec,
			Children:     make([]*TreeNode, 0),
			IndexInGroup: i,
			level:        LevelOf(rec),
		}

		for len(stack) > 0 && stack[len(stack)-1].level >= node.level {
			stack = stack[:len(stack)-1]
		}

		if len(stack) == 0 {
			roots = append(roots, node)
		} else {
			parent := stack[len(stack)-1]
			parent.Children = append(parent.Children, node)
		}
		stack = append(stack, node)
	}

	return roots
}

// Walk visits the forest in pre-order. Returning false stops the walk.
func Walk(forest []*TreeNode, fn func(node *TreeNode, depth int) bool) {
	var visit func(nodes []*TreeNode, depth int) bool
	visit = func(nodes []*TreeNode, depth int) bool {
		for _, n := range nodes {
			if !fn(n, depth) {
				return false
			}
			if !visit(n.Children, depth+1) {
				return false
			}
		}
		return true
	}
	visit(forest, 0)
}
