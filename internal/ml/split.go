package ml

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strconv"
)

// ErrStratify is returned when a stratified split is impossible
var ErrStratify = errors.New("cannot stratify split")

// LabelClasses returns the sorted distinct labels and each value's class index.
// Labels sort numerically when they all parse as numbers.
func LabelClasses(values []string) ([]int, []string) {
	distinct := make(map[string]bool)
	for _, v := range values {
		distinct[v] = true
	}
	classes := make([]string, 0, len(distinct))
	for v := range distinct {
		classes = append(classes, v)
	}
	sortLabels(classes)

	y, _ := EncodeLabels(values, classes)
	return y, classes
}

// EncodeLabels maps values onto known classes
func EncodeLabels(values []string, classes []string) ([]int, error) {
	index := make(map[string]int, len(classes))
	for i, c := range classes {
		index[c] = i
	}
	y := make([]int, len(values))
	for i, v := range values {
		c, ok := index[v]
		if !ok {
			return nil, fmt.Errorf("row %d: unknown label %q", i+1, v)
		}
		y[i] = c
	}
	return y, nil
}

func sortLabels(labels []string) {
	nums := make([]float64, len(labels))
	numeric := true
	for i, l := range labels {
		f, err := strconv.ParseFloat(l, 64)
		if err != nil {
			numeric = false
			break
		}
		nums[i] = f
	}
	if !numeric {
		sort.Strings(labels)
		return
	}
	sort.Sort(byValue{labels, nums})
}

type byValue struct {
	labels []string
	nums   []float64
}

func (b byValue) Len() int           { return len(b.labels) }
func (b byValue) Less(i, j int) bool { return b.nums[i] < b.nums[j] }
func (b byValue) Swap(i, j int) {
	b.labels[i], b.labels[j] = b.labels[j], b.labels[i]
	b.nums[i], b.nums[j] = b.nums[j], b.nums[i]
}

// StratifiedSplit shuffles row indexes into train and test sets that preserve
// class proportions. The test set holds ceil(testSize*n) rows.
func StratifiedSplit(y []int, nClasses int, testSize float64, seed int64) (train, test []int, err error) {
	n := len(y)
	if testSize <= 0 || testSize >= 1 {
		return nil, nil, fmt.Errorf("test_size must be in (0, 1), got %v", testSize)
	}

	byClass := make([][]int, nClasses)
	for i, c := range y {
		byClass[c] = append(byClass[c], i)
	}
	counts := make([]int, nClasses)
	present := 0
	for c, rows := range byClass {
		counts[c] = len(rows)
		if len(rows) == 0 {
			continue
		}
		present++
		if len(rows) < 2 {
			return nil, nil, fmt.Errorf("%w: class %d has only %d member", ErrStratify, c, len(rows))
		}
	}

	nTest := int(math.Ceil(testSize * float64(n)))
	nTrain := n - nTest
	if nTrain < present {
		return nil, nil, fmt.Errorf("%w: train size %d is smaller than the number of classes %d", ErrStratify, nTrain, present)
	}
	if nTest < present {
		return nil, nil, fmt.Errorf("%w: test size %d is smaller than the number of classes %d", ErrStratify, nTest, present)
	}

	rng := rand.New(rand.NewSource(seed))
	trainAlloc := approximateMode(counts, nTrain, rng)
	remaining := make([]int, nClasses)
	for c := range counts {
		remaining[c] = counts[c] - trainAlloc[c]
	}
	testAlloc := approximateMode(remaining, nTest, rng)

	for c, rows := range byClass {
		perm := rng.Perm(len(rows))
		for i, p := range perm {
			switch {
			case i < trainAlloc[c]:
				train = append(train, rows[p])
			case i < trainAlloc[c]+testAlloc[c]:
				test = append(test, rows[p])
			}
		}
	}

	rng.Shuffle(len(train), func(i, j int) { train[i], train[j] = train[j], train[i] })
	rng.Shuffle(len(test), func(i, j int) { test[i], test[j] = test[j], test[i] })
	return train, test, nil
}

// approximateMode draws total items from classes with the given counts, as
// close to proportional as integers allow. Leftover slots go to the largest
// remainders, ties broken at random.
func approximateMode(counts []int, total int, rng *rand.Rand) []int {
	sum := 0
	for _, c := range counts {
		sum += c
	}
	alloc := make([]int, len(counts))
	if sum == 0 {
		return alloc
	}

	remainders := make([]float64, len(counts))
	assigned := 0
	for i, c := range counts {
		exact := float64(total) * float64(c) / float64(sum)
		alloc[i] = int(math.Floor(exact))
		remainders[i] = exact - float64(alloc[i])
		assigned += alloc[i]
	}

	order := rng.Perm(len(counts))
	sort.SliceStable(order, func(a, b int) bool { return remainders[order[a]] > remainders[order[b]] })
	for _, i := range order {
		if assigned >= total {
			break
		}
		if alloc[i] < counts[i] {
			alloc[i]++
			assigned++
		}
	}
	return alloc
}
