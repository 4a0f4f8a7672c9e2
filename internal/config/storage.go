package config

const (
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

type Storage struct {
	Type     string            `mapstructure:"type" validate:"oneof=sqlite postgres"`
	Local    SQLLiteStorage    `mapstructure:"local"`
	Postgres PostgreSQLStorage `mapstructure:"postgres"`
}

type SQLLiteStorage struct {
	Path string `mapstructure:"path,omitempty"`
}

type PostgreSQLStorage struct {
	DSN string `mapstructure:"dsn,omitempty"`
}
