package registry

// The registry grows under the same discipline as the segment arena and
// gap index it sits above (spec.md §5): 0.75 fill factor, 2x growth,
// starting from an initial capacity of 20 slots. It never shrinks.
const (
	fillFactorThreshold = 0.75
	expandFactor        = 2
	initialCapacity     = 20
)
