package realtime

import (
	"github.com/jmehdipour/pos-sync/internal/model"
)

// Filter is the own-write suppressor: every outbound mutation stamps its
// entity with this node's origin marker, so an inbound notification carrying
// the same marker is our own write echoing back and must not be re-applied.
type Filter struct {
	origin string
}

func NewFilter(origin string) *Filter {
	if origin == "" {
		origin = model.OriginLocal
	}

	return &Filter{origin: origin}
}

// Origin returns the marker this node stamps on its own writes.
func (f *Filter) Origin() string { return f.origin }

// ShouldApply reports whether an inbound notification represents a genuinely
// remote change. False means discard, regardless of payload contents.
func (f *Filter) ShouldApply(n model.ChangeNotification) bool {
	return n.Origin != f.origin
}
