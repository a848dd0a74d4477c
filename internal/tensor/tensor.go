package tensor

// Tensor is a rows x cols label matrix.
type Tensor struct {
	rows  int
	cols  int
	dtype DType
	data  []float64
}

// New returns a zero-filled tensor.
func New(rows, cols int, dt DType) (*Tensor, error) {
	if rows < 0 || cols < 0 {
		return nil, Shapef("new", "negative shape %dx%d", rows, cols)
	}
	return &Tensor{rows: rows, cols: cols, dtype: dt, data: make([]float64, rows*cols)}, nil
}

func zeros(rows, cols int, dt DType) *Tensor {
	return &Tensor{rows: rows, cols: cols, dtype: dt, data: make([]float64, rows*cols)}
}

// FromRows copies a row-major slice of rows, casting every value into dt.
// Ragged input is a ShapeError.
func FromRows(rows [][]float64, dt DType) (*Tensor, error) {
	cols := 0
	if len(rows) > 0 {
		cols = len(rows[0])
	}
	t := zeros(len(rows), cols, dt)
	for i, r := range rows {
		if len(r) != cols {
			return nil, Shapef("from rows", "row %d has %d values, want %d", i, len(r), cols)
		}
		for j, v := range r {
			t.data[i*cols+j] = dt.Cast(v)
		}
	}
	return t, nil
}

// MustFromRows is FromRows for literals known to be rectangular.
func MustFromRows(rows [][]float64, dt DType) *Tensor {
	t, err := FromRows(rows, dt)
	if err != nil {
		panic(err)
	}
	return t
}

// FromBools builds a boolean column vector.
func FromBools(vals ...bool) *Tensor {
	t := zeros(len(vals), 1, Bool)
	for i, v := range vals {
		if v {
			t.data[i] = 1
		}
	}
	return t
}

// Column builds a single-feature tensor from vals.
func Column(dt DType, vals ...float64) *Tensor {
	t := zeros(len(vals), 1, dt)
	for i, v := range vals {
		t.data[i] = dt.Cast(v)
	}
	return t
}

// Full broadcasts row to n rows.
func Full(n int, row []float64, dt DType) *Tensor {
	t := zeros(n, len(row), dt)
	for i := 0; i < n; i++ {
		for j, v := range row {
			t.data[i*t.cols+j] = dt.Cast(v)
		}
	}
	return t
}

func (t *Tensor) Rows() int    { return t.rows }
func (t *Tensor) Cols() int    { return t.cols }
func (t *Tensor) DType() DType { return t.dtype }

// At returns the value at (i, j). Out-of-range indices panic like slice access.
func (t *Tensor) At(i, j int) float64 { return t.data[i*t.cols+j] }

// Set stores v at (i, j), cast into the tensor's dtype.
func (t *Tensor) Set(i, j int, v float64) { t.data[i*t.cols+j] = t.dtype.Cast(v) }

// Row returns row i. The slice aliases the tensor and must not be modified.
func (t *Tensor) Row(i int) []float64 { return t.data[i*t.cols : (i+1)*t.cols] }

// Values returns a copy of the tensor as a slice of rows.
func (t *Tensor) Values() [][]float64 {
	out := make([][]float64, t.rows)
	for i := range out {
		out[i] = append([]float64(nil), t.Row(i)...)
	}
	return out
}

// Bools returns column j as booleans (non-zero is true).
func (t *Tensor) Bools(j int) []bool {
	out := make([]bool, t.rows)
	for i := range out {
		out[i] = t.At(i, j) != 0
	}
	return out
}

func (t *Tensor) Clone() *Tensor {
	return &Tensor{rows: t.rows, cols: t.cols, dtype: t.dtype, data: append([]float64(nil), t.data...)}
}

// AsType returns a copy of t cast into dt.
func (t *Tensor) AsType(dt DType) *Tensor {
	out := zeros(t.rows, t.cols, dt)
	for i, v := range t.data {
		out.data[i] = dt.Cast(v)
	}
	return out
}

// Equal reports exact, element-wise equality of shape and values.
// The dtype tag is not compared: two assignments with the same labels are
// the same assignment.
func (t *Tensor) Equal(o *Tensor) bool {
	if t == nil || o == nil {
		return t == o
	}
	if t.rows != o.rows || t.cols != o.cols {
		return false
	}
	for i, v := range t.data {
		if o.data[i] != v {
			return false
		}
	}
	return true
}

// Map applies f element-wise and casts the result into dt.
func (t *Tensor) Map(dt DType, f func(float64) float64) *Tensor {
	out := zeros(t.rows, t.cols, dt)
	for i, v := range t.data {
		out.data[i] = dt.Cast(f(v))
	}
	return out
}

// ReduceRows folds every row into a single value, producing a rows x 1 tensor.
func (t *Tensor) ReduceRows(dt DType, f func(row []float64) float64) *Tensor {
	out := zeros(t.rows, 1, dt)
	for i := 0; i < t.rows; i++ {
		out.data[i] = dt.Cast(f(t.Row(i)))
	}
	return out
}

// Slice returns the columns [from, to) of every row.
func (t *Tensor) Slice(from, to int) (*Tensor, error) {
	if from < 0 || to > t.cols || from > to {
		return nil, Shapef("slice", "columns [%d,%d) out of range for width %d", from, to, t.cols)
	}
	out := zeros(t.rows, to-from, t.dtype)
	for i := 0; i < t.rows; i++ {
		copy(out.data[i*out.cols:(i+1)*out.cols], t.data[i*t.cols+from:i*t.cols+to])
	}
	return out, nil
}
