package config

type PostgresConfig struct {
	DSN string `env:"PG_DSN"`
}
