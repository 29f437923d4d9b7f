// Command create-user provisions a login account and optionally prints a
// bearer token for it.
//
//	create-user -username cashier1 -password s3cret -role cashier
//	create-user -username 2025-00001 -password s3cret -role student -student-id 1 -token
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/warp/tuition-engine/auth"
	"github.com/warp/tuition-engine/billing"
	"github.com/warp/tuition-engine/config"
	"github.com/warp/tuition-engine/store/sqlstore"
)

func main() {
	configPath := flag.String("config", "", "YAML configuration file")
	username := flag.String("username", "", "login name")
	password := flag.String("password", "", "plain password, stored as a bcrypt hash")
	role := flag.String("role", string(auth.RoleCashier), "student | cashier | admin")
	studentID := flag.Int64("student-id", 0, "linked student (required for role student)")
	printToken := flag.Bool("token", false, "print a bearer token for the new user")
	flag.Parse()

	if err := run(*configPath, *username, *password, *role, *studentID, *printToken); err != nil {
		fmt.Fprintln(os.Stderr, "create-user:", err)
		os.Exit(1)
	}
}

func run(configPath, username, password, roleName string, studentID int64, printToken bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	role, ok := auth.NormalizeRole(roleName)
	if !ok {
		return fmt.Errorf("unknown role %q", roleName)
	}
	if username == "" || password == "" {
		return fmt.Errorf("username and password are required")
	}
	if role == auth.RoleStudent && studentID <= 0 {
		return fmt.Errorf("role student needs -student-id")
	}

	store, err := sqlstore.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	existing, err := store.GetUserByUsername(ctx, username)
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("user %q already exists", username)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	u := billing.User{Username: username, PasswordHash: hash, Role: string(role)}
	if studentID > 0 {
		u.StudentID = &studentID
	}
	err = store.Seed(ctx, func(_ billing.Store, sd sqlstore.Seeder) error {
		return sd.InsertUser(ctx, &u)
	})
	if err != nil {
		return err
	}
	fmt.Printf("created user %d: %s (%s)\n", u.ID, u.Username, u.Role)

	if !printToken {
		return nil
	}
	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("AUTH_JWT_SECRET is required to issue a token")
	}
	id := auth.Identity{UserID: u.ID, Username: u.Username, Role: role, StudentID: studentID}
	token, err := auth.IssueToken(id, []byte(cfg.Auth.JWTSecret), cfg.Auth.TokenTTL, time.Now().UTC())
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
