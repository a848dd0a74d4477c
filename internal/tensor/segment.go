package tensor

// SegmentCounts returns, for a non-decreasing graph-index vector, the number
// of consecutive entries sharing each distinct value, in order of appearance.
func SegmentCounts(index []int) ([]int, error) {
	var counts []int
	for i, v := range index {
		switch {
		case i == 0 || v != index[i-1]:
			if i > 0 && v < index[i-1] {
				return nil, Shapef("segment counts", "index decreases at position %d (%d after %d)", i, v, index[i-1])
			}
			counts = append(counts, 1)
		default:
			counts[len(counts)-1]++
		}
	}
	return counts, nil
}

// SegmentReduce folds the rows of every run of equal values in a
// non-decreasing index into one row, yielding one row per distinct value.
func (t *Tensor) SegmentReduce(index []int, dt DType, init float64, f func(acc, v float64) float64) (*Tensor, error) {
	if len(index) != t.rows {
		return nil, Shapef("segment reduce", "index has %d entries for %d rows", len(index), t.rows)
	}
	counts, err := SegmentCounts(index)
	if err != nil {
		return nil, err
	}
	out := zeros(len(counts), t.cols, dt)
	row := 0
	for s, c := range counts {
		acc := out.data[s*t.cols : (s+1)*t.cols]
		for j := range acc {
			acc[j] = init
		}
		for k := 0; k < c; k++ {
			for j, v := range t.Row(row) {
				acc[j] = f(acc[j], v)
			}
			row++
		}
		for j := range acc {
			acc[j] = dt.Cast(acc[j])
		}
	}
	return out, nil
}

// ScatterReduce folds each row i of t into output row target[i]. The output
// has n rows; rows that receive nothing hold empty, every other row starts
// from init. target need not be sorted.
func (t *Tensor) ScatterReduce(target []int, n int, dt DType, init, empty float64, f func(acc, v float64) float64) (*Tensor, error) {
	if len(target) != t.rows {
		return nil, Shapef("scatter reduce", "%d targets for %d rows", len(target), t.rows)
	}
	out := zeros(n, t.cols, dt)
	seen := make([]bool, n)
	for i, dst := range target {
		if dst < 0 || dst >= n {
			return nil, Shapef("scatter reduce", "target %d out of range for %d rows", dst, n)
		}
		acc := out.data[dst*t.cols : (dst+1)*t.cols]
		if !seen[dst] {
			seen[dst] = true
			for j := range acc {
				acc[j] = init
			}
		}
		for j, v := range t.Row(i) {
			acc[j] = f(acc[j], v)
		}
	}
	for i := 0; i < n; i++ {
		acc := out.data[i*t.cols : (i+1)*t.cols]
		for j := range acc {
			if !seen[i] {
				acc[j] = empty
			}
			acc[j] = dt.Cast(acc[j])
		}
	}
	return out, nil
}
