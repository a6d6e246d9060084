// Command seedadmin creates the first admin account, or promotes an
// existing one. The password is read from the terminal.
//
// Usage:
//
//	seedadmin -email admin@example.com [-name "Site Admin"] [-d DSN]
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"

	"golang.org/x/term"

	"github.com/dmitrijs2005/securenotes/internal/flagx"
	"github.com/dmitrijs2005/securenotes/internal/logging"
	"github.com/dmitrijs2005/securenotes/internal/server/config"
	"github.com/dmitrijs2005/securenotes/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/securenotes/internal/server/services"
)

func readPassword() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("stdin is not a terminal")
	}
	fmt.Fprint(os.Stderr, "Password: ")
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	return string(b), err
}

func main() {
	fs := flag.NewFlagSet("seedadmin", flag.ContinueOnError)
	email := fs.String("email", "", "admin email")
	name := fs.String("name", "", "display name")
	if err := fs.Parse(flagx.FilterArgs(os.Args[1:], []string{"-email", "-name"})); err != nil {
		log.Fatal(err)
	}
	if *email == "" {
		log.Fatal("-email is required")
	}

	cfg := config.LoadConfig()
	ctx := context.Background()

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		log.Fatalf("migrations error: %v", err)
	}

	identity := services.NewIdentityService(db, rm, cfg, logging.Nop())

	password, err := readPassword()
	if err != nil {
		log.Fatalf("error reading password: %v", err)
	}

	p, err := identity.EnsureAdmin(ctx, *email, password, *name)
	if err != nil {
		log.Fatalf("error: %v", err)
	}
	fmt.Printf("%s is an active admin (id %s)\n", p.Email, p.ID)
}
