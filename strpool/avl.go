package strpool

import "bytes"

// node is an AVL tree node. Nodes live in the pool's node arena; the record
// is embedded so its address is stable for the node's lifetime.
type node struct {
	rec    Record
	left   *node
	right  *node
	height int32
}

func height(n *node) int32 {
	if n == nil {
		return 0
	}
	return n.height
}

func (n *node) fix() {
	n.height = 1 + max(height(n.left), height(n.right))
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	y.fix()
	x.fix()
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	x.fix()
	y.fix()
	return y
}

func rebalance(n *node) *node {
	n.fix()
	switch bf := height(n.left) - height(n.right); {
	case bf > 1:
		if height(n.left.left) < height(n.left.right) {
			n.left = rotateLeft(n.left)
		}
		return rotateRight(n)
	case bf < -1:
		if height(n.right.right) < height(n.right.left) {
			n.right = rotateRight(n.right)
		}
		return rotateLeft(n)
	}
	return n
}

// insert adds n below root and returns the new root. The key must not be
// present yet.
func insert(root, n *node) *node {
	if root == nil {
		return n
	}
	if bytes.Compare(n.rec.data, root.rec.data) < 0 {
		root.left = insert(root.left, n)
	} else {
		root.right = insert(root.right, n)
	}
	return rebalance(root)
}

func find(root *node, key []byte) *node {
	for root != nil {
		switch c := bytes.Compare(key, root.rec.data); {
		case c < 0:
			root = root.left
		case c > 0:
			root = root.right
		default:
			return root
		}
	}
	return nil
}

// walk visits the tree in byte order. It stops when fn returns false.
func walk(n *node, fn func(*node) bool) bool {
	if n == nil {
		return true
	}
	return walk(n.left, fn) && fn(n) && walk(n.right, fn)
}
