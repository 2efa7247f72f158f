package service

// Placement outcomes reported to NetworkMetrics.
const (
	PlacementResultPlaced         = "placed"
	PlacementResultUnknownSponsor = "unknown_sponsor"
	PlacementResultAlreadyPlaced  = "already_placed"
	PlacementResultTreeFull       = "tree_full"
	PlacementResultFailed         = "failed"
	PlacementResultRejected       = "rejected"
)

// Distribution outcomes reported to NetworkMetrics.
const (
	DistributionResultDistributed = "distributed"
	DistributionResultDuplicate   = "duplicate"
	DistributionResultFailed      = "failed"
	DistributionResultRejected    = "rejected"
)

// NetworkMetrics records engine activity.
type NetworkMetrics interface {
	ObservePlacement(result string, attempts int)
	ObserveSlotConflict()
	ObserveDistribution(result string)
	ObserveCredit(level int, points int64)
}
