// Package live delivers message inserts to the screens watching an item.
package live

import (
	"context"
	"strconv"

	"github.com/shinyyama/rental-backend/internal/model"
)

// Bus fans message inserts out to subscribers of the message's item.
type Bus interface {
	Publish(ctx context.Context, m model.Message) error
	Subscribe(ctx context.Context, itemID uint64) (Feed, error)
}

// Feed is a single registration on a Bus.
//
// Ready yields exactly one value: nil once the backend acknowledged the
// registration, or the error that prevented it. Messages is closed when the
// feed ends, either through Close or because the backend went away.
type Feed interface {
	Messages() <-chan model.Message
	Ready() <-chan error
	Close() error
}

// Channel is the pub/sub channel name of an item's insert feed.
func Channel(itemID uint64) string {
	return "messages_" + strconv.FormatUint(itemID, 10)
}
