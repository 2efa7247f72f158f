// Package constants defines values shared across layers.
package constants

// Environments
const (
	EnvDevelop    = "develop"
	EnvStaging    = "staging"
	EnvProduction = "production"
)

// Pub/Sub providers
const (
	PubSubProviderLocal  = "local"
	PubSubProviderGoogle = "google"
)

// Database drivers
const (
	DatabaseDriverPostgres = "postgres"
	DatabaseDriverSQLite   = "sqlite"
)

// Network limits
const (
	// MaxCommissionLevel is the deepest ancestor distance that can receive a commission.
	MaxCommissionLevel = 20

	// BuyerRewardLevel is the ledger level of the purchasing participant's own reward.
	BuyerRewardLevel = 0

	// DefaultPlacementRetries bounds how many times a placement re-scans after losing a slot race.
	DefaultPlacementRetries = 3
)
