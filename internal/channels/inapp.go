package channels

import (
	"context"

	"github.com/schoolbell-dev/schoolbell/internal/types"
)

// InAppChannel delivers by construction: the recipient fan-out row is the
// inbox entry, so there is nothing left to transmit.
type InAppChannel struct{}

func NewInAppChannel() *InAppChannel {
	return &InAppChannel{}
}

func (c *InAppChannel) Name() string {
	return types.ChannelInApp
}

func (c *InAppChannel) Send(ctx context.Context, msg Message) error {
	return nil
}
