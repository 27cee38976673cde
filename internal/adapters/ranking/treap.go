package ranking

import "math/rand/v2"

// Order-statistic treap backing one day bucket of the memory store.
//
// Ordering: value DESC, then member ASC. "less" means ranks earlier, so an
// in-order walk yields the bucket best-first and the size of everything to
// the left of a node is its 0-indexed rank.

type node struct {
	member string
	value  float64
	prio   uint64
	left   *node
	right  *node
	size   int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

func less(aValue float64, aMember string, bValue float64, bMember string) bool {
	if aValue != bValue {
		return aValue > bValue
	}
	return aMember < bMember
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

func insert(n *node, member string, value float64) *node {
	if n == nil {
		return &node{member: member, value: value, prio: rand.Uint64(), size: 1}
	}
	if less(value, member, n.value, n.member) {
		n.left = insert(n.left, member, value)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, member, value)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, member string, value float64) *node {
	if n == nil {
		return nil
	}
	switch {
	case value == n.value && member == n.member:
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, member, value)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, member, value)
		}
	case less(value, member, n.value, n.member):
		n.left = deleteNode(n.left, member, value)
	default:
		n.right = deleteNode(n.right, member, value)
	}
	fix(n)
	return n
}

// rankOf counts the nodes ordered strictly before (value, member).
func rankOf(n *node, member string, value float64) int {
	rank := 0
	for n != nil {
		if less(value, member, n.value, n.member) {
			n = n.left
			continue
		}
		if value == n.value && member == n.member {
			return rank + nsize(n.left)
		}
		rank += nsize(n.left) + 1
		n = n.right
	}
	return rank
}

// collectTopN appends up to limit entries best-first.
func collectTopN(n *node, limit int, out *[]Entry) {
	if n == nil || len(*out) >= limit {
		return
	}
	collectTopN(n.left, limit, out)
	if len(*out) < limit {
		*out = append(*out, newEntry(n.member, n.value))
	}
	if len(*out) < limit {
		collectTopN(n.right, limit, out)
	}
}
