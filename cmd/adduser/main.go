package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/finsec-io/finsec-api/internal/auth"
	"github.com/finsec-io/finsec-api/internal/config"
	"github.com/finsec-io/finsec-api/internal/database"
	"github.com/finsec-io/finsec-api/internal/models"
	"github.com/finsec-io/finsec-api/internal/store"
	"github.com/rs/zerolog"
	"golang.org/x/term"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("adduser", flag.ContinueOnError)
	fs.SetOutput(stderr)

	email := fs.String("email", "", "Email address")
	passwordFlag := fs.String("password", "", "Password (optional, will prompt if omitted)")
	first := fs.String("first", "", "First name")
	last := fs.String("last", "", "Last name")
	admin := fs.Bool("admin", false, "Grant admin rights")
	inactive := fs.Bool("inactive", false, "Create the account disabled")
	enrollMFA := fs.Bool("mfa", false, "Enroll the account in TOTP MFA and print the secret")
	configPath := fs.String("config", "app.yml", "Path to configuration file")
	dbPath := fs.String("db", "", "SQLite database path (overrides config)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *email == "" {
		fmt.Fprintln(stdout, "Usage: adduser -email <email> [-password <password>] [-first <name>] [-last <name>] [-admin] [-inactive] [-mfa]")
		fs.PrintDefaults()
		return fmt.Errorf("missing required flags: email")
	}

	password := *passwordFlag
	if password == "" {
		fmt.Fprint(stdout, "Password: ")
		var err error
		password, err = readPassword(stdin)
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(stdout)
	}
	if err := auth.CheckPasswordStrength(password); err != nil {
		return err
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if *dbPath != "" {
		cfg.Database = config.DatabaseConfig{Type: string(database.DialectSQLite), Path: *dbPath}
	}

	ctx := context.Background()
	db, err := database.Open(ctx, cfg.Database, zerolog.Nop())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	st := store.New(db)

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Email:        strings.TrimSpace(*email),
		PasswordHash: hash,
		FirstName:    *first,
		LastName:     *last,
		IsActive:     !*inactive,
		IsAdmin:      *admin,
	}
	if err := st.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrEmailTaken) {
			return fmt.Errorf("user %s already exists", user.Email)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	fmt.Fprintf(stdout, "User %s created successfully with ID %s\n", user.Email, user.ID)

	if *enrollMFA {
		key, err := auth.GenerateMFAKey(cfg.Auth.MFAIssuer, user.Email)
		if err != nil {
			return fmt.Errorf("failed to generate MFA secret: %w", err)
		}
		if err := st.EnableMFA(ctx, user.ID, key.Secret); err != nil {
			return fmt.Errorf("failed to enable MFA: %w", err)
		}
		fmt.Fprintf(stdout, "MFA secret: %s\nTOTP URI: %s\n", key.Secret, key.URI)
	}
	return nil
}

func readPassword(stdin io.Reader) (string, error) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		bytePassword, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return string(bytePassword), nil
	}

	scanner := bufio.NewScanner(stdin)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}
