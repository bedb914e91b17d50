// Command devtoken prints a bearer token for local testing against the API.
//
//	devtoken -id drv-1 -role driver -org org-7
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/chachabrian/wastepickup-backend/internal/models"
	"github.com/chachabrian/wastepickup-backend/pkg/utils"
	"github.com/joho/godotenv"
)

func main() {
	id := flag.String("id", "", "principal id")
	role := flag.String("role", string(models.RoleCustomer), "customer, driver, org_admin or super_admin")
	org := flag.String("org", "", "organization id (optional)")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	_ = godotenv.Load()
	secret := os.Getenv("JWT_SECRET")

	p := models.Principal{ID: *id, Role: models.Role(*role), OrgID: *org}
	switch {
	case secret == "":
		slog.Error("JWT_SECRET is not set")
		os.Exit(2)
	case p.ID == "":
		slog.Error("-id is required")
		os.Exit(2)
	case !p.Role.Valid():
		slog.Error("unknown role", "role", *role)
		os.Exit(2)
	}

	token, err := utils.NewTokenIssuer(secret, *ttl).GenerateToken(p)
	if err != nil {
		slog.Error("failed to sign token", "error", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
