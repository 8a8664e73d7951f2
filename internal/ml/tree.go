package ml

import (
	"math/rand"
)

// impurityEpsilon treats a node as pure
const impurityEpsilon = 1e-12

// Node is one tree node. Leaves have Feature -1.
// Internal nodes send rows without the feature left and rows with it right.
type Node struct {
	Feature int32     `json:"f"`
	Left    int32     `json:"l,omitempty"`
	Right   int32     `json:"r,omitempty"`
	Samples int       `json:"n"`
	Value   []float64 `json:"v"`
}

// Tree is a fitted CART classifier
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Leaf returns the leaf reached by a row of active columns
func (t *Tree) Leaf(row []int32) *Node {
	n := &t.Nodes[0]
	for n.Feature >= 0 {
		if hasColumn(row, n.Feature) {
			n = &t.Nodes[n.Right]
		} else {
			n = &t.Nodes[n.Left]
		}
	}
	return n
}

// treeBuilder grows one tree with Gini impurity over weighted samples
type treeBuilder struct {
	x           *Matrix
	y           []int
	w           []float64
	nClasses    int
	maxDepth    int // 0 = unlimited
	minSplit    int
	minLeaf     int
	maxFeatures int
	rng         *rand.Rand

	nodes      []Node
	importance []float64

	// scratch, indexed by column
	colWeight  []float64 // nClasses per column
	colSamples []int32
	touched    []int32
}

func newTreeBuilder(x *Matrix, y []int, w []float64, nClasses int, p Params, rng *rand.Rand) *treeBuilder {
	b := &treeBuilder{
		x:           x,
		y:           y,
		w:           w,
		nClasses:    nClasses,
		minSplit:    p.MinSamplesSplit,
		minLeaf:     p.MinSamplesLeaf,
		maxFeatures: p.MaxFeatures.Resolve(x.NumCols),
		rng:         rng,
		importance:  make([]float64, x.NumCols),
		colWeight:   make([]float64, x.NumCols*nClasses),
		colSamples:  make([]int32, x.NumCols),
	}
	if p.MaxDepth != nil {
		b.maxDepth = *p.MaxDepth
	}
	return b
}

// build grows the tree over rows with positive weight and returns it with its
// unnormalized impurity decrease per column.
func (b *treeBuilder) build(rows []int) (*Tree, []float64) {
	b.grow(rows, 0)
	return &Tree{Nodes: b.nodes}, b.importance
}

type split struct {
	feature int32
	wLeft   []float64
	wRight  []float64
}

func (b *treeBuilder) grow(rows []int, depth int) int32 {
	classW := make([]float64, b.nClasses)
	for _, r := range rows {
		classW[b.y[r]] += b.w[r]
	}
	total, impurity := gini(classW)

	id := int32(len(b.nodes))
	b.nodes = append(b.nodes, Node{Feature: -1, Samples: len(rows), Value: normalize(classW, total)})

	n := len(rows)
	if n < b.minSplit || n < 2*b.minLeaf || impurity <= impurityEpsilon ||
		(b.maxDepth > 0 && depth >= b.maxDepth) {
		return id
	}

	best, ok := b.findSplit(rows, classW, total, impurity)
	if !ok {
		return id
	}

	_, impLeft := gini(best.wLeft)
	_, impRight := gini(best.wRight)
	wl, wr := sum(best.wLeft), sum(best.wRight)
	b.importance[best.feature] += total*impurity - wl*impLeft - wr*impRight

	var left, right []int
	for _, r := range rows {
		if b.x.Has(r, best.feature) {
			right = append(right, r)
		} else {
			left = append(left, r)
		}
	}

	b.nodes[id].Feature = best.feature
	l := b.grow(left, depth+1)
	rt := b.grow(right, depth+1)
	b.nodes[id].Left = l
	b.nodes[id].Right = rt
	return id
}

// findSplit tallies the node's active columns and picks the best split among a
// random draw of maxFeatures columns. When the draw holds no column that varies
// within the node, one varying column is drawn instead.
func (b *treeBuilder) findSplit(rows []int, classW []float64, total, impurity float64) (split, bool) {
	k := b.nClasses
	b.touched = b.touched[:0]
	for _, r := range rows {
		for _, c := range b.x.Rows[r] {
			if b.colSamples[c] == 0 {
				b.touched = append(b.touched, c)
			}
			b.colSamples[c]++
			b.colWeight[int(c)*k+b.y[r]] += b.w[r]
		}
	}
	defer b.resetScratch()

	n := int32(len(rows))
	varies := func(c int32) bool {
		return b.colSamples[c] > 0 && b.colSamples[c] < n
	}

	var (
		best      split
		bestScore = -1.0
		found     bool
		sampled   bool
	)
	evaluate := func(c int32) {
		right := int(b.colSamples[c])
		if right < b.minLeaf || int(n)-right < b.minLeaf {
			return
		}
		wRight := append([]float64{}, b.colWeight[int(c)*k:int(c)*k+k]...)
		wLeft := make([]float64, k)
		for i := range wLeft {
			wLeft[i] = classW[i] - wRight[i]
		}
		_, impL := gini(wLeft)
		_, impR := gini(wRight)
		score := total*impurity - sum(wLeft)*impL - sum(wRight)*impR
		if !found || score > bestScore {
			best = split{feature: c, wLeft: wLeft, wRight: wRight}
			bestScore = score
			found = true
		}
	}

	for _, c := range sampleColumns(b.rng, b.x.NumCols, b.maxFeatures) {
		if varies(c) {
			sampled = true
			evaluate(c)
		}
	}

	if !sampled {
		var candidates []int32
		for _, c := range b.touched {
			if varies(c) {
				candidates = append(candidates, c)
			}
		}
		if len(candidates) > 0 {
			evaluate(candidates[b.rng.Intn(len(candidates))])
		}
	}
	return best, found
}

func (b *treeBuilder) resetScratch() {
	k := b.nClasses
	for _, c := range b.touched {
		b.colSamples[c] = 0
		for i := 0; i < k; i++ {
			b.colWeight[int(c)*k+i] = 0
		}
	}
	b.touched = b.touched[:0]
}

// sampleColumns draws k distinct columns out of p (Floyd's algorithm)
func sampleColumns(rng *rand.Rand, p, k int) []int32 {
	if k >= p {
		out := make([]int32, p)
		for i := range out {
			out[i] = int32(i)
		}
		rng.Shuffle(p, func(i, j int) { out[i], out[j] = out[j], out[i] })
		return out
	}
	chosen := make(map[int32]struct{}, k)
	out := make([]int32, 0, k)
	for j := p - k; j < p; j++ {
		t := int32(rng.Intn(j + 1))
		if _, dup := chosen[t]; dup {
			t = int32(j)
		}
		chosen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// gini returns the total weight and Gini impurity of class weights
func gini(classW []float64) (float64, float64) {
	total := sum(classW)
	if total <= 0 {
		return 0, 0
	}
	s := 0.0
	for _, w := range classW {
		p := w / total
		s += p * p
	}
	return total, 1 - s
}

func sum(v []float64) float64 {
	s := 0.0
	for _, x := range v {
		s += x
	}
	return s
}

func normalize(v []float64, total float64) []float64 {
	out := make([]float64, len(v))
	if total <= 0 {
		return out
	}
	for i, x := range v {
		out[i] = x / total
	}
	return out
}
