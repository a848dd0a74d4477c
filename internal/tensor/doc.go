// Package tensor is the label runtime used by compiled models.
//
// A Tensor is a dense, row-major, two dimensional array of labels: one row
// per node (or per edge, or per graph) and one column per feature. Values are
// stored as float64 regardless of the declared DType; the DType records the
// label domain so that operators can keep boolean and bounded-integer
// lattices exact, and so that encoders can render labels faithfully.
//
// The package also carries the segment primitives the operator families need
// (counting runs of a graph-index vector, per-segment and per-target
// reductions) and the wire codecs used by the CLI and the HTTP gateway.
package tensor
