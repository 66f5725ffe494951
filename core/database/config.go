package database

// Config holds Postgres connection settings. It is populated from the
// config package's database section at startup.
type Config struct {
	Host           string
	Port           string
	User           string
	Password       string
	Name           string
	SSLMode        string
	MaxConnections int
}
