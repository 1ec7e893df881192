package training

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
)

// StratifiedSplit partitions row indices into train and test sets, keeping
// each class's share of the test set close to testFraction. The same labels
// and seed always give the same split. Both slices are returned sorted.
func StratifiedSplit(labels []int, testFraction float64, seed uint64) (train, test []int, err error) {
	if testFraction <= 0 || testFraction >= 1 {
		return nil, nil, fmt.Errorf("test fraction %v must be in (0, 1)", testFraction)
	}
	byClass := map[int][]int{}
	for i, l := range labels {
		byClass[l] = append(byClass[l], i)
	}
	classes := make([]int, 0, len(byClass))
	for c := range byClass {
		classes = append(classes, c)
	}
	sort.Ints(classes)

	rng := rand.New(rand.NewPCG(seed, seed+1))
	for _, c := range classes {
		idx := byClass[c]
		rng.Shuffle(len(idx), func(a, b int) { idx[a], idx[b] = idx[b], idx[a] })
		nTest := int(math.Round(float64(len(idx)) * testFraction))
		if nTest == 0 && len(idx) > 1 {
			nTest = 1
		}
		if nTest == len(idx) && len(idx) > 1 {
			nTest--
		}
		test = append(test, idx[:nTest]...)
		train = append(train, idx[nTest:]...)
	}
	sort.Ints(train)
	sort.Ints(test)
	return train, test, nil
}
