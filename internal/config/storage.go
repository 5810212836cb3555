package config

type Storage struct {
	Type     string           `mapstructure:"type" yaml:"type"` // sqlite or postgres
	SQLite   *SQLiteStorage   `mapstructure:"sqlite,omitempty" yaml:"sqlite,omitempty"`
	Postgres *PostgresStorage `mapstructure:"postgres,omitempty" yaml:"postgres,omitempty"`
}

type SQLiteStorage struct {
	Path string `mapstructure:"path,omitempty" yaml:"path,omitempty"`
}

type PostgresStorage struct {
	DSN string `mapstructure:"dsn,omitempty" yaml:"dsn,omitempty"`
}
