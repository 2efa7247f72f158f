// Package delivery defines the servers the binaries run.
package delivery

import "context"

// Delivery is a long-running server started by an fx application.
type Delivery interface {
	Serve(ctx context.Context) error
}
