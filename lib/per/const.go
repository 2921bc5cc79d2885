// Package per implements the packed rule-set family: the aligned and
// unaligned variants of the bit-packed encoding rules. No identifier
// octets are written; types and presence come from the schema, values
// are packed into the minimum bit widths their constraints allow.
package per

const (
	// maxConstrainedLength is the exclusive bound below which a length
	// determinant is a constrained whole number; at or beyond it the
	// unconstrained grammar applies. X.691 11.9.4.
	maxConstrainedLength = 65536

	// fragmentUnit is the granularity of the fragmented form for
	// lengths of 16K and above. X.691 11.9.3.8.
	fragmentUnit = 16384

	// maxFragmentMultiplier bounds the per-fragment unit count: a
	// fragment octet carries 1 to 4 units.
	maxFragmentMultiplier = 4

	// smallLengthLimit is the largest length the normally-small form
	// packs into six bits plus a marker. X.691 11.9.3.4.
	smallLengthLimit = 64
)
