package cmd

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"table-call/internal/config"
	"table-call/internal/push"
	"table-call/internal/storage"
	"table-call/internal/tablecode"
)

func TestReadRoster(t *testing.T) {
	roster, err := readRoster(strings.NewReader(`
locations:
  - id: 1
    name: Bahçeli
    table_count: 16
  - id: 3
    name: Kadıköy
    table_count: 12
`))
	require.NoError(t, err)
	assert.Equal(t, []tablecode.Location{
		{ID: 1, Name: "Bahçeli", TableCount: 16},
		{ID: 3, Name: "Kadıköy", TableCount: 12},
	}, roster)
}

func TestReadRoster_Rejects(t *testing.T) {
	for name, doc := range map[string]string{
		"zero tables":   "locations:\n  - {id: 1, name: A, table_count: 0}\n",
		"missing name":  "locations:\n  - {id: 1, table_count: 3}\n",
		"duplicate id":  "locations:\n  - {id: 1, name: A, table_count: 3}\n  - {id: 1, name: B, table_count: 3}\n",
		"unknown field": "locations:\n  - {id: 1, name: A, tables: 3}\n",
		"not yaml":      "locations: [",
	} {
		_, err := readRoster(strings.NewReader(doc))
		assert.Error(t, err, name)
	}
}

func TestImportRoster(t *testing.T) {
	ctx := context.Background()
	p, err := storage.NewProvider(ctx, &config.Storage{
		Type:  config.StorageSQLite,
		Local: config.SQLLiteStorage{Path: ":memory:"},
	})
	require.NoError(t, err)
	defer p.Close()

	require.NoError(t, importRoster(ctx, p, []tablecode.Location{
		{ID: 2, Name: "Neorama", TableCount: 30},
		{ID: 3, Name: "Kadıköy", TableCount: 12},
	}))

	locations, err := p.ListLocations(ctx)
	require.NoError(t, err)
	assert.Equal(t, []tablecode.Location{
		{ID: 1, Name: "Bahçeli", TableCount: 16},
		{ID: 2, Name: "Neorama", TableCount: 30},
		{ID: 3, Name: "Kadıköy", TableCount: 12},
	}, storage.Roster(locations))
}

func TestResolveToken(t *testing.T) {
	codec := tablecode.MustCodec(tablecode.DefaultSecret)
	want, err := codec.Encode(2, "14")
	require.NoError(t, err)

	got, err := resolveToken(codec, "2/14")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	got, err = resolveToken(codec, want)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = resolveToken(codec, "x/14")
	assert.Error(t, err)
	_, err = resolveToken(codec, "garbage")
	assert.Error(t, err)
}

func TestRosterMessage(t *testing.T) {
	codec := tablecode.MustCodec(tablecode.DefaultSecret)
	entries, err := codec.GenerateAll("https://cafe.example", []tablecode.Location{{ID: 2, Name: "Neorama", TableCount: 2}})
	require.NoError(t, err)

	msg, err := rosterMessage(entries, []string{"print@example.com"}, true, 64)
	require.NoError(t, err)
	assert.Equal(t, "Table QR codes (2)", msg.Subject)
	assert.Contains(t, msg.HTML, entries[1].FullURL)

	require.Len(t, msg.Attachments, 4)
	assert.Equal(t, "qr-list.csv", msg.Attachments[0].Name)
	assert.Equal(t, []byte{0xFF, 0xFE}, msg.Attachments[0].Data[:2])
	assert.Equal(t, "Neorama - Masa 1: "+entries[0].FullURL+"\nNeorama - Masa 2: "+entries[1].FullURL, string(msg.Attachments[1].Data))
	assert.Equal(t, "Neorama-2.png", msg.Attachments[3].Name)
}

func TestNewPushListener(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	cfg := &config.Config{BackendURL: "https://api.cafe.example"}

	cfg.Push = config.PushConfig{Type: "none"}
	l, err := newPushListener(cfg, logger)
	require.NoError(t, err)
	assert.IsType(t, push.Nop{}, l)

	cfg.Push = config.PushConfig{Type: "socketio", Path: "/socket.io/?EIO=4&transport=websocket"}
	l, err = newPushListener(cfg, logger)
	require.NoError(t, err)
	ws, ok := l.(*push.WebSocketListener)
	require.True(t, ok)
	assert.Equal(t, "wss://api.cafe.example/socket.io/?EIO=4&transport=websocket", ws.URL)
	assert.True(t, ws.SocketIO)

	cfg.Push = config.PushConfig{Type: "nats", NATSURL: "nats://localhost:4222", NATSSubject: "cafe.events"}
	l, err = newPushListener(cfg, logger)
	require.NoError(t, err)
	assert.IsType(t, &push.NATSListener{}, l)

	cfg.Push = config.PushConfig{Type: "carrier-pigeon"}
	_, err = newPushListener(cfg, logger)
	assert.Error(t, err)
}
