package index

import "errors"

var (
	// ErrDimensionMismatch indicates a query vector whose width differs
	// from the stored snapshot.
	ErrDimensionMismatch = errors.New("query dimension does not match index")

	// ErrUnavailable indicates the accelerated backend could not be
	// constructed in this environment.
	ErrUnavailable = errors.New("accelerated index unavailable")
)
