package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/gophbank/internal/flagx"
)

var serverFlags = []string{"-a", "-m", "-d", "-s", "-k", "-t", "-r", "-b"}

// parseFlags overlays Config with command-line flags:
//
//	-a string   gRPC bind address (e.g. ":50051")
//	-m string   metrics bind address (e.g. ":9090")
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-k string   token-at-rest hashing key
//	-t int      access token validity, minutes
//	-r int      refresh token validity, minutes
//	-b int      bcrypt cost for passwords
//
// Only these flags are read from os.Args so other flag sets can share it.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], serverFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "address and port to run gRPC server")
	fs.StringVar(&config.MetricsAddr, "m", config.MetricsAddr, "address and port to expose metrics")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "token signing secret")
	fs.StringVar(&config.TokenHashKey, "k", config.TokenHashKey, "token hashing key")

	accessTokenValidityDuration := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access token validity (in minutes)")
	refreshTokenValidityDuration := fs.Int("r", int(config.RefreshTokenValidityDuration.Minutes()), "refresh token validity (in minutes)")

	fs.IntVar(&config.PasswordHashCost, "b", config.PasswordHashCost, "bcrypt cost")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AccessTokenValidityDuration = time.Duration(*accessTokenValidityDuration) * time.Minute
	config.RefreshTokenValidityDuration = time.Duration(*refreshTokenValidityDuration) * time.Minute
}
