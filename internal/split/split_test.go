package split

import (
	"fmt"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stupiduntilnot/dataingest/internal/dataset"
)

func numbered(t *testing.T, n int) *dataset.Dataset {
	t.Helper()
	recs := [][]string{{"target", "text"}}
	for i := 0; i < n; i++ {
		label := "ham"
		if i%4 == 0 {
			label = "spam"
		}
		recs = append(recs, []string{label, fmt.Sprintf("message %d", i)})
	}
	ds, err := dataset.FromRecords(recs)
	require.NoError(t, err)
	return ds
}

func texts(t *testing.T, ds *dataset.Dataset) []string {
	t.Helper()
	col, err := ds.Column("text")
	require.NoError(t, err)
	return col
}

func TestSizes(t *testing.T) {
	cases := []struct {
		n, wantTrain, wantTest int
	}{
		{10, 8, 2},
		{11, 8, 3},
		{5, 4, 1},
		{5572, 4457, 1115},
	}
	for _, tc := range cases {
		nTrain, nTest, err := Sizes(tc.n, 0.2)
		require.NoError(t, err)
		assert.Equal(t, tc.wantTrain, nTrain, "n=%d", tc.n)
		assert.Equal(t, tc.wantTest, nTest, "n=%d", tc.n)
	}
}

func TestSizes_Errors(t *testing.T) {
	for _, size := range []float64{0, 1, -0.1, 1.5} {
		_, _, err := Sizes(10, size)
		assert.ErrorIs(t, err, ErrInvalidTestSize, "size=%v", size)
	}
	_, _, err := Sizes(0, 0.2)
	assert.ErrorIs(t, err, ErrEmptyPartition)
	_, _, err = Sizes(1, 0.2)
	assert.ErrorIs(t, err, ErrEmptyPartition)
}

func TestTrainTest_Deterministic(t *testing.T) {
	ds := numbered(t, 50)

	train1, test1, err := TrainTest(ds, 0.2, 42)
	require.NoError(t, err)
	train2, test2, err := TrainTest(ds, 0.2, 42)
	require.NoError(t, err)

	if diff := cmp.Diff(train1.Records(), train2.Records()); diff != "" {
		t.Fatalf("train differs between runs:\n%s", diff)
	}
	if diff := cmp.Diff(test1.Records(), test2.Records()); diff != "" {
		t.Fatalf("test differs between runs:\n%s", diff)
	}

	_, test3, err := TrainTest(ds, 0.2, 7)
	require.NoError(t, err)
	assert.NotEqual(t, test1.Records(), test3.Records())
}

func TestTrainTest_DisjointUnion(t *testing.T) {
	ds := numbered(t, 37)

	train, test, err := TrainTest(ds, 0.2, 42)
	require.NoError(t, err)
	assert.Equal(t, 29, train.Len())
	assert.Equal(t, 8, test.Len())
	assert.Equal(t, ds.Columns(), train.Columns())
	assert.Equal(t, ds.Columns(), test.Columns())

	seen := map[string]int{}
	for _, v := range append(texts(t, train), texts(t, test)...) {
		seen[v]++
	}
	require.Len(t, seen, ds.Len())
	for v, n := range seen {
		assert.Equal(t, 1, n, "row %q appears %d times", v, n)
	}

	all := texts(t, ds)
	got := append(texts(t, train), texts(t, test)...)
	sort.Strings(all)
	sort.Strings(got)
	assert.Equal(t, all, got)
}

func TestTrainTest_RowsKeepTheirContent(t *testing.T) {
	ds := numbered(t, 20)
	want := map[string]string{}
	for i := 0; i < ds.Len(); i++ {
		row := ds.Row(i)
		want[row["text"]] = row["target"]
	}

	train, test, err := TrainTest(ds, 0.2, 42)
	require.NoError(t, err)
	for _, part := range []*dataset.Dataset{train, test} {
		for i := 0; i < part.Len(); i++ {
			row := part.Row(i)
			assert.Equal(t, want[row["text"]], row["target"])
		}
	}
}

func TestIndices_Partition(t *testing.T) {
	train, test, err := Indices(10, 0.2, 42)
	require.NoError(t, err)
	assert.Len(t, train, 8)
	assert.Len(t, test, 2)

	all := append(append([]int{}, train...), test...)
	sort.Ints(all)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, all)
}
