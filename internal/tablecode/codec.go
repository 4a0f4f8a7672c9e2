// Package tablecode maps a table identity (location id + table name) to the
// opaque, URL path safe token printed in the table QR codes, and back.
//
// Token format: base64("<location>|<table name>|<secret>") with '+' -> '-',
// '/' -> '_' and the '=' padding stripped.
//
// The secret ships inside every client and therefore only detects casual
// tampering and guessing. Anyone holding it can mint valid tokens, so the
// backend must validate location and table name against its own roster.
package tablecode

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Delimiter separates the token fields. It must never appear in the secret,
// and table names containing it are refused by Encode.
const Delimiter = "|"

// DefaultSecret is the secret all printed QR codes were minted with. Changing
// it invalidates every code in circulation.
const DefaultSecret = "DaVinci_QR_2024_Secret_Key_!@#$%"

var (
	ErrInvalidSecret    = errors.New("invalid table secret")
	ErrInvalidLocation  = errors.New("location must be a positive integer")
	ErrInvalidTableName = errors.New("invalid table name")
)

// Table is a decoded table identity.
type Table struct {
	Location int    `json:"location"`
	Name     string `json:"tableName"`
}

func (t Table) String() string {
	return fmt.Sprintf("%d/%s", t.Location, t.Name)
}

type Codec struct {
	secret string
}

// NewCodec returns a codec using secret as the integrity tag.
func NewCodec(secret string) (*Codec, error) {
	if secret == "" || strings.Contains(secret, Delimiter) {
		return nil, ErrInvalidSecret
	}
	return &Codec{secret: secret}, nil
}

// MustCodec is NewCodec for package level variables and tests.
func MustCodec(secret string) *Codec {
	c, err := NewCodec(secret)
	if err != nil {
		panic(err)
	}
	return c
}

// Encode returns the token for the given table. The result is deterministic.
func (c *Codec) Encode(location int, tableName string) (string, error) {
	if location <= 0 {
		return "", ErrInvalidLocation
	}
	if tableName == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidTableName)
	}
	// A delimiter inside the name would make the token ambiguous
	if strings.Contains(tableName, Delimiter) {
		return "", fmt.Errorf("%w: contains %q", ErrInvalidTableName, Delimiter)
	}

	combined := strconv.Itoa(location) + Delimiter + tableName + Delimiter + c.secret
	encoded := base64.StdEncoding.EncodeToString([]byte(combined))

	encoded = strings.NewReplacer("+", "-", "/", "_").Replace(encoded)
	return strings.TrimRight(encoded, "="), nil
}

// Decode resolves a token taken from an untrusted URL. ok is false for
// anything Encode could not have produced with this codec's secret.
func (c *Codec) Decode(token string) (table Table, ok bool) {
	if token == "" {
		return Table{}, false
	}

	b64 := strings.NewReplacer("-", "+", "_", "/").Replace(token)
	if rem := len(b64) % 4; rem != 0 {
		b64 += strings.Repeat("=", 4-rem)
	}

	decoded, err := base64.StdEncoding.Strict().DecodeString(b64)
	if err != nil {
		return Table{}, false
	}

	parts := strings.Split(string(decoded), Delimiter)
	if len(parts) != 3 || parts[2] != c.secret {
		return Table{}, false
	}

	location, err := strconv.Atoi(parts[0])
	if err != nil || location <= 0 {
		return Table{}, false
	}
	if parts[1] == "" {
		return Table{}, false
	}

	return Table{Location: location, Name: parts[1]}, true
}

// ParseLegacy validates the parameters of the old /:location/:tableName URLs.
func ParseLegacy(location, tableName string) (Table, error) {
	id, err := strconv.Atoi(strings.TrimSpace(location))
	if err != nil || id <= 0 {
		return Table{}, ErrInvalidLocation
	}
	if tableName == "" || strings.Contains(tableName, Delimiter) {
		return Table{}, ErrInvalidTableName
	}
	return Table{Location: id, Name: tableName}, nil
}
