package split

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/stupiduntilnot/dataingest/internal/dataset"
)

var (
	ErrInvalidTestSize = errors.New("test size must be in (0,1)")
	ErrEmptyPartition  = errors.New("split leaves a partition empty")
)

// Sizes returns the train and test row counts for n rows. The test side is
// rounded up: nTest = ceil(testSize*n).
func Sizes(n int, testSize float64) (nTrain, nTest int, err error) {
	if math.IsNaN(testSize) || testSize <= 0 || testSize >= 1 {
		return 0, 0, fmt.Errorf("%w: got %v", ErrInvalidTestSize, testSize)
	}
	nTest = int(math.Ceil(testSize * float64(n)))
	nTrain = n - nTest
	if nTest == 0 || nTrain <= 0 {
		return 0, 0, fmt.Errorf("%w: n=%d test_size=%v gives train=%d test=%d", ErrEmptyPartition, n, testSize, nTrain, nTest)
	}
	return nTrain, nTest, nil
}

// Indices permutes 0..n-1 with a source seeded by seed and cuts the
// permutation after nTest entries.
func Indices(n int, testSize float64, seed int64) (train, test []int, err error) {
	_, nTest, err := Sizes(n, testSize)
	if err != nil {
		return nil, nil, err
	}
	perm := rand.New(rand.NewSource(seed)).Perm(n)
	return perm[nTest:], perm[:nTest], nil
}

// TrainTest partitions ds into disjoint train and test subsets. The same
// seed and input always yield the same partition.
func TrainTest(ds *dataset.Dataset, testSize float64, seed int64) (train, test *dataset.Dataset, err error) {
	if ds == nil {
		return nil, nil, fmt.Errorf("dataset is nil")
	}
	trainIdx, testIdx, err := Indices(ds.Len(), testSize, seed)
	if err != nil {
		return nil, nil, err
	}
	if train, err = ds.Subset(trainIdx); err != nil {
		return nil, nil, fmt.Errorf("train subset: %w", err)
	}
	if test, err = ds.Subset(testIdx); err != nil {
		return nil, nil, fmt.Errorf("test subset: %w", err)
	}
	return train, test, nil
}
