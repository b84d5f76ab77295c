package dataset

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"sort"
)

// TrainTestSplit partitions the indices [0,n) into a train and a test part,
// with ceil(testSize*n) test indices. When labels is non-nil the split keeps
// every label's share in both parts. The same seed always yields the same split.
func TrainTestSplit(n int, testSize float64, seed uint64, labels []float64) (train, test []int, err error) {
	if testSize <= 0 || testSize >= 1 {
		return nil, nil, fmt.Errorf("%w: test size %v not in (0,1)", ErrInvalidSplit, testSize)
	}
	nTest := int(math.Ceil(testSize * float64(n)))
	if nTest == 0 || nTest >= n {
		return nil, nil, fmt.Errorf("%w: %d samples cannot hold %d test samples", ErrInvalidSplit, n, nTest)
	}
	if labels != nil && len(labels) != n {
		return nil, nil, fmt.Errorf("%w: %d labels for %d samples", ErrInvalidSplit, len(labels), n)
	}

	rng := rand.New(rand.NewPCG(seed, seed))
	if labels == nil {
		perm := rng.Perm(n)
		return perm[nTest:], perm[:nTest], nil
	}

	train, test = stratified(labels, nTest, rng)
	rng.Shuffle(len(train), func(i, j int) { train[i], train[j] = train[j], train[i] })
	rng.Shuffle(len(test), func(i, j int) { test[i], test[j] = test[j], test[i] })
	return train, test, nil
}

// stratified allocates nTest indices across classes proportionally to their
// size, handing leftover slots to the largest remainders.
func stratified(labels []float64, nTest int, rng *rand.Rand) (train, test []int) {
	byClass := make(map[float64][]int)
	for i, y := range labels {
		byClass[y] = append(byClass[y], i)
	}
	classes := make([]float64, 0, len(byClass))
	for c := range byClass {
		classes = append(classes, c)
	}
	slices.Sort(classes)

	n := float64(len(labels))
	quota := make([]int, len(classes))
	rem := make([]float64, len(classes))
	given := 0
	for k, c := range classes {
		exact := float64(nTest) * float64(len(byClass[c])) / n
		quota[k] = int(math.Floor(exact))
		rem[k] = exact - float64(quota[k])
		given += quota[k]
	}
	order := make([]int, len(classes))
	for k := range order {
		order[k] = k
	}
	sort.SliceStable(order, func(a, b int) bool { return rem[order[a]] > rem[order[b]] })
	for _, k := range order {
		if given == nTest {
			break
		}
		if quota[k] < len(byClass[classes[k]]) {
			quota[k]++
			given++
		}
	}

	for k, c := range classes {
		idx := byClass[c]
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
		test = append(test, idx[:quota[k]]...)
		train = append(train, idx[quota[k]:]...)
	}
	return train, test
}
