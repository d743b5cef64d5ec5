// canteen-admin provisions accounts directly against the configured store.
//
//	canteen-admin -role manager -username alice -email alice@example.com -password secret
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"canteen/internal/auth"
	"canteen/internal/cli"
	"canteen/internal/core"
	"canteen/internal/log"
	"canteen/internal/services"
)

func main() {
	role := flag.String("role", "student", "account role: student, manager or superuser")
	username := flag.String("username", "", "login name (required)")
	email := flag.String("email", "", "email address")
	password := flag.String("password", "", "password; falls back to CANTEEN_ADMIN_PASSWORD")
	list := flag.Bool("list", false, "list existing accounts and exit")
	flag.Parse()

	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	res := cli.OpenBackend(ctx, logger, cfg)
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err.Error())
		}
	}()

	svc := services.NewAuthService(res.Store, auth.NewIssuer(cfg.JWTSecret, cfg.JWTAccessTTL, cfg.JWTRefreshTTL))

	if *list {
		users, err := res.Store.ListUsers(ctx)
		if err != nil {
			fail(logger, "list users", err)
		}
		for _, u := range users {
			fmt.Printf("%d\t%s\t%s\t%s\n", u.ID, u.Username, u.Email, roleOf(u))
		}
		return
	}

	if *password == "" {
		*password = os.Getenv("CANTEEN_ADMIN_PASSWORD")
	}
	if *username == "" || *password == "" {
		flag.Usage()
		os.Exit(2)
	}

	var (
		u   core.User
		err error
	)
	switch *role {
	case "superuser":
		u, err = svc.CreateSuperuser(ctx, *username, *email, *password)
	case "manager":
		u, err = svc.CreateUser(ctx, services.NewUser{Username: *username, Email: *email, Password: *password, IsManager: true})
	case "student":
		u, err = svc.CreateUser(ctx, services.NewUser{Username: *username, Email: *email, Password: *password, IsStudent: true})
	default:
		fmt.Fprintf(os.Stderr, "unknown role %q\n", *role)
		os.Exit(2)
	}
	if err != nil {
		fail(logger, "create user", err)
	}

	logger.Info("Account created", log.FieldUserID, u.ID, "username", u.Username, "role", roleOf(u))
}

func roleOf(u core.User) string {
	switch {
	case u.IsSuperuser:
		return "superuser"
	case u.IsManager:
		return "manager"
	case u.IsStudent:
		return "student"
	}
	return "none"
}

func fail(logger *log.Logger, op string, err error) {
	logger.Error("canteen-admin failed", log.FieldOperation, op, log.FieldError, err.Error())
	os.Exit(1)
}
