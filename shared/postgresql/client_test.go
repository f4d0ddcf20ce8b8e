package postgresql

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConfig_DSN(t *testing.T) {
	tests := []struct {
		name   string
		config Config
		want   string
	}{
		{
			name: "plain values",
			config: Config{
				Host:     "localhost",
				Port:     5432,
				User:     "gigflow",
				Password: "secret",
				Database: "gigflow_db",
				SSLMode:  "disable",
			},
			want: "host=localhost port=5432 user=gigflow password=secret dbname=gigflow_db sslmode=disable",
		},
		{
			name: "password with spaces and quotes",
			config: Config{
				Host:     "db",
				Port:     5433,
				User:     "app",
				Password: "it's a secret",
				Database: "gigs",
			},
			want: `host=db port=5433 user=app password='it\'s a secret' dbname=gigs`,
		},
		{
			name: "empty password and connect timeout",
			config: Config{
				Host:           "db",
				Port:           5432,
				User:           "app",
				Database:       "gigs",
				ConnectTimeout: 3 * time.Second,
			},
			want: "host=db port=5432 user=app password='' dbname=gigs connect_timeout=3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.config.DSN())
		})
	}
}
