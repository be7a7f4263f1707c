package pool

// Resize discipline shared by the segment arena and the gap index: grow
// by expandFactor once occupancy crosses fillFactorThreshold, starting
// from the stated initial capacities. Neither structure ever shrinks.
const (
	fillFactorThreshold    = 0.75
	expandFactor           = 2
	initialSegmentCapacity = 40
	initialGapCapacity     = 40
)
