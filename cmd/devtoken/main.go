// Command devtoken prints a signed access token for local testing against the api.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"hrledger/internal/auth"
	"hrledger/internal/config"
	"hrledger/internal/ledger"
)

func main() {
	cfg := config.Load()

	sub := flag.String("sub", "dev-user", "subject (user id)")
	role := flag.String("role", string(ledger.RoleAdmin), "admin, manager or employee")
	company := flag.Int64("company", 1, "company id")
	employee := flag.Int64("employee", 0, "employee id of the caller, if any")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	if cfg.IsProduction() {
		log.Fatal("refusing to issue tokens with APP_ENV=production")
	}

	tok, err := auth.Issue(ledger.Scope{
		UserID:     *sub,
		Role:       ledger.Role(*role),
		CompanyID:  *company,
		EmployeeID: *employee,
	}, cfg.JWTIssuer, cfg.JWTSigningKey, *ttl)
	if err != nil {
		log.Fatalf("issue token: %v", err)
	}
	fmt.Fprintln(os.Stdout, tok.AccessToken)
}
