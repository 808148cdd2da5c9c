package auth

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// TokenHashes are bcrypt hashes of the bearer tokens allowed to call
	// mutating endpoints. Generate them with the hash-token command.
	TokenHashes []string `envconfig:"API_TOKEN_HASHES"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
