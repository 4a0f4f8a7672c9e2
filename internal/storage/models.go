package storage

import (
	"time"

	"table-call/internal/tablecode"
)

// Location is one café in the roster.
type Location struct {
	ID         int        `db:"id"`
	Name       string     `db:"name"`
	TableCount int        `db:"table_count"`
	CreatedAt  time.Time  `db:"created_at"`
	DeletedAt  *time.Time `db:"deleted_at"`
}

func (l Location) Roster() tablecode.Location {
	return tablecode.Location{ID: l.ID, Name: l.Name, TableCount: l.TableCount}
}

// Roster converts locations to the form the QR generator takes.
func Roster(locations []Location) []tablecode.Location {
	out := make([]tablecode.Location, 0, len(locations))
	for _, l := range locations {
		out = append(out, l.Roster())
	}
	return out
}
