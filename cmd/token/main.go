// Command token mints an access token signed with the API's key, for smoke
// tests and operator scripts. Accounts are issued tokens elsewhere.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"

	"conductpoints/internal/auth"
	"conductpoints/internal/config"
	"conductpoints/internal/logging"
)

func main() {
	cfg := config.Load()
	log := logging.New(cfg.LogLevel, cfg.Production())

	token, exp, err := run(os.Args[1:], cfg)
	if err != nil {
		log.WithError(err).Fatal("mint token")
	}
	fmt.Println(token)
	log.WithField("expires_at", exp.Format(time.RFC3339)).Info("token issued")
}

func run(args []string, cfg config.App) (string, time.Time, error) {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	subject := fs.String("sub", "", "user id (nguoi_dung.id) to put in the token")
	role := fs.String("role", auth.RoleStudent.String(), "role name, e.g. SINH_VIEN, LOP_TRUONG, GIANG_VIEN, ADMIN")
	ttl := fs.Duration("ttl", cfg.AccessTTL, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return "", time.Time{}, err
	}
	if *subject == "" {
		return "", time.Time{}, errors.New("-sub is required")
	}
	if auth.NormalizeRole(*role) == auth.RoleUnknown {
		return "", time.Time{}, errors.Errorf("unknown role %q", *role)
	}
	if *ttl <= 0 {
		return "", time.Time{}, errors.Errorf("ttl must be positive, got %s", *ttl)
	}
	return auth.Issue(*subject, *role, cfg.JWTIssuer, cfg.JWTSigningKey, *ttl)
}
