package config

var defaults = map[string]any{
	"secret":       "",
	"table_secret": "DaVinci_QR_2024_Secret_Key_!@#$%",
	"log_level":    "info",

	"listen":          ":8080",
	"base_url":        "http://localhost:8080",
	"backend_url":     "http://localhost:3000",
	"request_timeout": "10s",

	"allowed_networks": "",

	"call_cooldown":     "3s",
	"feedback_cooldown": "2s",
	"notice_ttl":        "3s",
	"admin_token_ttl":   "720h",

	"qr_image_size": DEFAULT_QR_IMAGE_SIZE,

	"push.type":         "socketio",
	"push.path":         "/socket.io/?EIO=4&transport=websocket",
	"push.nats_url":     "",
	"push.nats_subject": "cafe.events",
	"push.events":       map[string][]string{},

	"email.host":     "host.docker.internal",
	"email.port":     25,
	"email.username": "",
	"email.password": "",
	"email.from":     "noreply@example.com",
	"email.to":       []string{},

	"storage.type":         StorageSQLite,
	"storage.local.path":   "storage.db",
	"storage.postgres.dsn": "",
}

func Defaults() map[string]any {
	values := make(map[string]any)
	for k, v := range defaults {
		values[k] = v
	}
	return values
}
