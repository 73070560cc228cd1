package forest

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
)

// Node is a split (Left >= 0) or a leaf (Left == -1).
type Node struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t"`
	Left      int32   `json:"l"`
	Right     int32   `json:"r"`
	Value     float64 `json:"v"`
}

func (n Node) leaf() bool { return n.Left < 0 }

// Tree is a regression tree stored as a flat node array rooted at 0.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

func (t *Tree) Predict(x []float64) float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.leaf() {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = int(n.Left)
		} else {
			i = int(n.Right)
		}
	}
}

func (t *Tree) validate(features int) error {
	if len(t.Nodes) == 0 {
		return errors.New("empty tree")
	}
	for i, n := range t.Nodes {
		if n.leaf() {
			continue
		}
		if n.Feature < 0 || n.Feature >= features {
			return fmt.Errorf("node %d: feature %d out of range", i, n.Feature)
		}
		// children are always appended after their parent
		if int(n.Left) <= i || int(n.Right) <= i || int(n.Left) >= len(t.Nodes) || int(n.Right) >= len(t.Nodes) {
			return fmt.Errorf("node %d: child index out of range", i)
		}
	}
	return nil
}

type treeBuilder struct {
	X     [][]float64
	y     []float64
	cfg   Config
	rng   *rand.Rand
	nodes []Node
	k     int // features tried per split
}

func fitTree(X [][]float64, y []float64, sample []int, cfg Config, rng *rand.Rand) Tree {
	nFeat := len(X[0])
	k := int(float64(nFeat)*cfg.MaxFeatures + 0.5)
	k = max(1, min(nFeat, k))

	b := &treeBuilder{X: X, y: y, cfg: cfg, rng: rng, k: k}
	b.grow(sample, 0)
	return Tree{Nodes: b.nodes}
}

func (b *treeBuilder) grow(idx []int, depth int) int32 {
	var sum float64
	for _, i := range idx {
		sum += b.y[i]
	}
	id := int32(len(b.nodes))
	b.nodes = append(b.nodes, Node{Left: -1, Right: -1, Value: sum / float64(len(idx))})

	if len(idx) < 2*b.cfg.MinSamplesLeaf || (b.cfg.MaxDepth > 0 && depth >= b.cfg.MaxDepth) || b.constant(idx) {
		return id
	}

	feature, threshold, ok := b.bestSplit(idx, sum)
	if !ok {
		return id
	}

	left := make([]int, 0, len(idx))
	right := make([]int, 0, len(idx))
	for _, i := range idx {
		if b.X[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return id
	}

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[id].Feature = feature
	b.nodes[id].Threshold = threshold
	b.nodes[id].Left = l
	b.nodes[id].Right = r
	return id
}

func (b *treeBuilder) constant(idx []int) bool {
	first := b.y[idx[0]]
	for _, i := range idx[1:] {
		if b.y[i] != first {
			return false
		}
	}
	return true
}

// bestSplit maximizes sumL²/nL + sumR²/nR, which minimizes the children's squared error.
func (b *treeBuilder) bestSplit(idx []int, total float64) (int, float64, bool) {
	n := len(idx)
	parentScore := total * total / float64(n)
	bestScore := parentScore
	bestFeature := -1
	var bestThreshold float64

	candidates := b.rng.Perm(len(b.X[0]))[:b.k]
	sorted := make([]int, n)
	for _, f := range candidates {
		copy(sorted, idx)
		sort.Slice(sorted, func(a, c int) bool { return b.X[sorted[a]][f] < b.X[sorted[c]][f] })

		var leftSum float64
		for pos := 0; pos < n-1; pos++ {
			leftSum += b.y[sorted[pos]]
			cur := b.X[sorted[pos]][f]
			next := b.X[sorted[pos+1]][f]
			if cur == next {
				continue
			}
			nl := pos + 1
			nr := n - nl
			if nl < b.cfg.MinSamplesLeaf || nr < b.cfg.MinSamplesLeaf {
				continue
			}
			rightSum := total - leftSum
			score := leftSum*leftSum/float64(nl) + rightSum*rightSum/float64(nr)
			if score > bestScore+1e-9*abs(bestScore) {
				bestScore = score
				bestFeature = f
				bestThreshold = cur + (next-cur)/2
				if bestThreshold >= next {
					bestThreshold = cur
				}
			}
		}
	}
	return bestFeature, bestThreshold, bestFeature >= 0
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
