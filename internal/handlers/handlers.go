package handlers

import (
	"github.com/schoolbell-dev/schoolbell/internal/notifications"
	"github.com/schoolbell-dev/schoolbell/internal/sweeper"
	"github.com/schoolbell-dev/schoolbell/internal/ws"
)

// Wiring for the handler package; set once from main before the router
// starts serving.
var (
	store      *notifications.Store
	dispatcher *notifications.Dispatcher
	aggregator *notifications.Aggregator
	retries    *sweeper.Sweeper
	hub        *ws.Hub
)

func Init(s *notifications.Store, d *notifications.Dispatcher, a *notifications.Aggregator, sw *sweeper.Sweeper, h *ws.Hub) {
	store = s
	dispatcher = d
	aggregator = a
	retries = sw
	hub = h
}
