package exporttravelplans

import "time"

type Config struct {
	Timeout time.Duration
	// URLExpiry is how long a presigned download link stays valid.
	URLExpiry time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout:   30 * time.Second,
		URLExpiry: 24 * time.Hour,
	}
}
