package tensor

// Concat joins tensors feature-wise, in order. All inputs must have the same
// number of rows; widths may differ. The result keeps the common dtype, or
// Float64 when the inputs disagree.
func Concat(ts ...*Tensor) (*Tensor, error) {
	if len(ts) == 0 {
		return nil, Shapef("concat", "no inputs")
	}
	rows, cols, dt := ts[0].rows, 0, ts[0].dtype
	for i, t := range ts {
		if t.rows != rows {
			return nil, Shapef("concat", "input %d has %d rows, want %d", i, t.rows, rows)
		}
		if t.dtype != dt {
			dt = Float64
		}
		cols += t.cols
	}
	out := zeros(rows, cols, dt)
	for i := 0; i < rows; i++ {
		off := i * cols
		for _, t := range ts {
			copy(out.data[off:off+t.cols], t.Row(i))
			off += t.cols
		}
	}
	return out, nil
}

// Gather returns the rows of t selected by idx, in idx order.
func (t *Tensor) Gather(idx []int) (*Tensor, error) {
	out := zeros(len(idx), t.cols, t.dtype)
	for k, i := range idx {
		if i < 0 || i >= t.rows {
			return nil, Shapef("gather", "index %d out of range for %d rows", i, t.rows)
		}
		copy(out.data[k*t.cols:(k+1)*t.cols], t.Row(i))
	}
	return out, nil
}

// Repeat replicates row i counts[i] times, preserving row order.
func (t *Tensor) Repeat(counts []int) (*Tensor, error) {
	if len(counts) != t.rows {
		return nil, Shapef("repeat", "%d counts for %d rows", len(counts), t.rows)
	}
	total := 0
	for _, c := range counts {
		if c < 0 {
			return nil, Shapef("repeat", "negative count %d", c)
		}
		total += c
	}
	out := zeros(total, t.cols, t.dtype)
	k := 0
	for i, c := range counts {
		for ; c > 0; c-- {
			copy(out.data[k*t.cols:(k+1)*t.cols], t.Row(i))
			k++
		}
	}
	return out, nil
}

// Zip combines two equally shaped tensors element-wise.
func Zip(a, b *Tensor, dt DType, f func(x, y float64) float64) (*Tensor, error) {
	if a.rows != b.rows || a.cols != b.cols {
		return nil, Shapef("zip", "%dx%d vs %dx%d", a.rows, a.cols, b.rows, b.cols)
	}
	out := zeros(a.rows, a.cols, dt)
	for i := range a.data {
		out.data[i] = dt.Cast(f(a.data[i], b.data[i]))
	}
	return out, nil
}

// Stack joins tensors row-wise. All inputs must have the same width.
func Stack(ts ...*Tensor) (*Tensor, error) {
	if len(ts) == 0 {
		return nil, Shapef("stack", "no inputs")
	}
	cols, dt, rows := ts[0].cols, ts[0].dtype, 0
	for i, t := range ts {
		if t.cols != cols {
			return nil, Shapef("stack", "input %d has width %d, want %d", i, t.cols, cols)
		}
		if t.dtype != dt {
			dt = Float64
		}
		rows += t.rows
	}
	out := zeros(rows, cols, dt)
	off := 0
	for _, t := range ts {
		copy(out.data[off:], t.data)
		off += len(t.data)
	}
	return out, nil
}
