package ledger

import (
	"context"
	"time"

	"github.com/icredito/credito/pkg/card"
	"github.com/icredito/credito/pkg/domain"
)

// Filter narrows history queries. Zero values leave a dimension open.
type Filter struct {
	Type     Type
	From     time.Time
	To       time.Time
	Page     int
	PageSize int
}

// Normalize applies paging defaults and validates the bounds.
func (filter Filter) Normalize() (Filter, error) {
	if filter.Page == 0 {
		filter.Page = 1
	}
	if filter.PageSize == 0 {
		filter.PageSize = 20
	}
	if filter.Page < 1 || filter.PageSize < 1 || filter.PageSize > 100 {
		return Filter{}, ErrInvalidPageBounds
	}
	return filter, nil
}

// Page is one page of entries with the total match count.
type Page struct {
	Entries    []Entry
	TotalCount int64
	Page       int
	PageSize   int
}

// TypeTotal aggregates entry amounts for one type.
type TypeTotal struct {
	Type       Type
	Count      int64
	TotalCents int64
}

// Store is the append-only persistence contract for ledger entries.
// Entries are never updated or deleted.
type Store interface {
	AppendEntry(ctx context.Context, entry Entry) error
	GetEntryForUser(ctx context.Context, id EntryID, userID domain.UserID) (Entry, error)
	ListEntriesForUser(ctx context.Context, userID domain.UserID, filter Filter) (Page, error)
	ListEntriesForCard(ctx context.Context, cardID card.CardID, userID domain.UserID, filter Filter) (Page, error)
	SumByType(ctx context.Context, userID domain.UserID, from time.Time, to time.Time) ([]TypeTotal, error)
}

// RecordedEvent announces a committed ledger entry.
type RecordedEvent struct {
	EntryID     EntryID
	UserID      domain.UserID
	CardID      card.CardID
	Type        Type
	AmountCents int64
}

// EventName identifies the event.
func (RecordedEvent) EventName() string { return "ledger.entry_recorded" }
