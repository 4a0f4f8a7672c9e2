package tablecode

import (
	"fmt"
	"strconv"
	"strings"
)

// Location is one venue in the QR roster.
type Location struct {
	ID         int    `json:"id" yaml:"id"`
	Name       string `json:"name" yaml:"name"`
	TableCount int    `json:"tableCount" yaml:"table_count"`
}

// DefaultRoster is the roster the printed codes were generated from.
var DefaultRoster = []Location{
	{ID: 1, Name: "Bahçeli", TableCount: 16},
	{ID: 2, Name: "Neorama", TableCount: 28},
}

// Entry is one printable QR target.
type Entry struct {
	LocationID   int    `json:"locationId"`
	LocationName string `json:"locationName"`
	TableName    string `json:"tableName"`
	EncodedURL   string `json:"encodedUrl"` // "/<token>"
	FullURL      string `json:"fullUrl"`
}

// Token returns the token part of the entry URL.
func (e Entry) Token() string {
	return strings.TrimPrefix(e.EncodedURL, "/")
}

// GenerateAll mints one entry per table of every roster location, tables
// numbered 1..TableCount. The output only depends on baseURL, roster and the
// codec secret, so regenerating always reproduces the same URLs.
func (c *Codec) GenerateAll(baseURL string, roster []Location) ([]Entry, error) {
	baseURL = strings.TrimRight(baseURL, "/")

	size := 0
	for _, loc := range roster {
		size += max(loc.TableCount, 0)
	}
	entries := make([]Entry, 0, size)

	for _, loc := range roster {
		for i := 1; i <= loc.TableCount; i++ {
			tableName := strconv.Itoa(i)
			token, err := c.Encode(loc.ID, tableName)
			if err != nil {
				return nil, fmt.Errorf("location %d table %s: %w", loc.ID, tableName, err)
			}
			entries = append(entries, Entry{
				LocationID:   loc.ID,
				LocationName: loc.Name,
				TableName:    tableName,
				EncodedURL:   "/" + token,
				FullURL:      baseURL + "/" + token,
			})
		}
	}
	return entries, nil
}

// FilterLocation returns the entries of one location, preserving order.
func FilterLocation(entries []Entry, locationID int) []Entry {
	var out []Entry
	for _, e := range entries {
		if e.LocationID == locationID {
			out = append(out, e)
		}
	}
	return out
}
