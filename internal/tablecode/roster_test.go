package tablecode

import (
	"bytes"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBaseURL = "https://kafe.davinciboardgame.com"

func TestGenerateAll_DefaultRoster(t *testing.T) {
	entries, err := testCodec.GenerateAll(testBaseURL, DefaultRoster)
	require.NoError(t, err)
	require.Len(t, entries, 44)

	tokens := map[string]bool{}
	for _, e := range entries {
		require.False(t, tokens[e.Token()], "duplicate token %s", e.Token())
		tokens[e.Token()] = true

		table, ok := testCodec.Decode(e.Token())
		require.True(t, ok)
		assert.Equal(t, e.LocationID, table.Location)
		assert.Equal(t, e.TableName, table.Name)
		assert.Equal(t, testBaseURL+e.EncodedURL, e.FullURL)
	}

	assert.Len(t, FilterLocation(entries, 1), 16)
	assert.Len(t, FilterLocation(entries, 2), 28)
	assert.Equal(t, "Bahçeli", entries[0].LocationName)
	assert.Equal(t, "1", entries[0].TableName)
	assert.Equal(t, "Neorama", entries[43].LocationName)
	assert.Equal(t, "28", entries[43].TableName)
}

func TestGenerateAll_Idempotent(t *testing.T) {
	a, err := testCodec.GenerateAll(testBaseURL, DefaultRoster)
	require.NoError(t, err)
	b, err := testCodec.GenerateAll(testBaseURL+"/", DefaultRoster)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestGenerateAll_InvalidLocation(t *testing.T) {
	_, err := testCodec.GenerateAll(testBaseURL, []Location{{ID: 0, Name: "x", TableCount: 2}})
	assert.ErrorIs(t, err, ErrInvalidLocation)
}

func TestWriteCSV(t *testing.T) {
	entries, err := testCodec.GenerateAll(testBaseURL, DefaultRoster)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, entries[:2], UTF8))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Location,Table,Full URL", lines[0])
	assert.Equal(t, "Bahçeli,1,"+entries[0].FullURL, lines[1])
}

func TestWriteCSV_UTF16(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil, UTF16LE))
	b := buf.Bytes()
	require.GreaterOrEqual(t, len(b), 4)
	assert.Equal(t, []byte{0xFF, 0xFE, 'L', 0x00}, b[:4])
}

func TestWriteCSV_UnknownEncoding(t *testing.T) {
	assert.Error(t, WriteCSV(&bytes.Buffer{}, nil, Encoding("latin9")))
}

func TestWriteText(t *testing.T) {
	entries, err := testCodec.GenerateAll(testBaseURL, DefaultRoster)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, entries, UTF8))

	lines := strings.Split(buf.String(), "\n")
	require.Len(t, lines, 44)
	assert.Equal(t, "Neorama - Masa 14: "+entries[16+13].FullURL, lines[16+13])
}

func TestQRCode_PNG(t *testing.T) {
	data, err := QRCode(testBaseURL+"/MnwxNHx", 128)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 128, img.Bounds().Dx())
}
