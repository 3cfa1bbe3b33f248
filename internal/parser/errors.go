package parser

import "errors"

var (
	// ErrNoProductsFound: no grammar produced a single valid product.
	// Callers escalate to the structuring backend or human review.
	ErrNoProductsFound = errors.New("no products found in receipt text")

	// ErrInsufficientYield: the store grammar matched but produced fewer
	// products than the fallback threshold on a non-trivial receipt.
	ErrInsufficientYield = errors.New("store grammar yield below fallback threshold")
)
