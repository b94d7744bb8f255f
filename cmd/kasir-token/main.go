// Command kasir-token signs a session token for local testing against a
// running kasir instance. It reads the signing secret from the same
// environment as the server.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/kasir/internal/auth"
	authdomain "github.com/smallbiznis/kasir/internal/auth/domain"
	"github.com/smallbiznis/kasir/internal/clock"
	"github.com/smallbiznis/kasir/internal/config"
)

func main() {
	var (
		userID   = flag.String("user", "", "user id (snowflake)")
		role     = flag.String("role", "CASHIER", "OWNER, MANAGER, CASHIER or KITCHEN")
		outletID = flag.String("outlet", "", "outlet id; optional for OWNER")
		ttl      = flag.Duration("ttl", 0, "token lifetime, defaults to AUTH_JWT_TTL_SECONDS")
	)
	flag.Parse()

	if err := run(*userID, *role, *outletID, *ttl); err != nil {
		fmt.Fprintln(os.Stderr, "kasir-token:", err)
		os.Exit(1)
	}
}

func run(rawUser, rawRole, rawOutlet string, ttl time.Duration) error {
	userID, err := snowflake.ParseString(strings.TrimSpace(rawUser))
	if err != nil || userID == 0 {
		return fmt.Errorf("invalid -user %q", rawUser)
	}
	role, err := authdomain.ParseRole(rawRole)
	if err != nil {
		return err
	}

	claims := authdomain.Claims{UserID: userID, Role: role}
	if strings.TrimSpace(rawOutlet) != "" {
		outletID, err := snowflake.ParseString(strings.TrimSpace(rawOutlet))
		if err != nil || outletID == 0 {
			return fmt.Errorf("invalid -outlet %q", rawOutlet)
		}
		claims.OutletID = outletID
	} else if !role.Has(authdomain.CapBypassOutletScope) {
		return fmt.Errorf("-outlet is required for role %s", role)
	}

	clk := clock.SystemClock{}
	if ttl > 0 {
		claims.ExpiresAt = clk.Now().Add(ttl)
	}

	signer, err := auth.NewJWT(config.Load(), clk)
	if err != nil {
		return err
	}
	raw, err := signer.Sign(claims)
	if err != nil {
		return err
	}
	fmt.Println(raw)
	return nil
}
