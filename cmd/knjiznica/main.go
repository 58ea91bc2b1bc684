package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/knjiznica/internal/api"
	"github.com/erazemk/knjiznica/internal/config"
	"github.com/erazemk/knjiznica/internal/db"
	"github.com/erazemk/knjiznica/internal/lending"
	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/notify"
	"github.com/erazemk/knjiznica/internal/store"
)

func main() {
	cfg, err := config.Load(os.Args[1:], os.Stdout)
	if err != nil {
		if errors.Is(err, config.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	closeLog, err := setupLogger(cfg.LogPath, cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	if err := run(cfg); err != nil {
		slog.Error("fatal error", "error", err)
		closeLog()
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	// Check if DB exists, auto-init if not.
	if _, err := os.Stat(cfg.DBPath); os.IsNotExist(err) {
		password, err := initDatabase(cfg.DBPath, cfg.AdminEmail)
		if err != nil {
			return fmt.Errorf("initializing database: %w", err)
		}
		printInitResult(cfg.DBPath, cfg.AdminEmail, password)
		fmt.Println()
	}

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer database.Close()

	// Ensure schema exists (idempotent).
	if err := db.EnsureSchema(database); err != nil {
		return err
	}
	slog.Info("database ready", "path", cfg.DBPath)

	ctx := context.Background()

	jwtSecret, err := store.GetJWTSecret(ctx, database)
	if err != nil {
		return err
	}

	if n, err := store.PurgeExpiredTokens(ctx, database, time.Now()); err != nil {
		slog.Warn("failed to purge expired token revocations", "error", err)
	} else if n > 0 {
		slog.Info("purged expired token revocations", "count", n)
	}

	notifier, closeNotifier, err := newNotifier(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeNotifier()

	dispatcher := notify.NewDispatcher(notifier, cfg.NotifyTimeout)
	svc := lending.NewService(database, dispatcher)

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.LoggingMiddleware(api.NewRouter(database, jwtSecret, svc)),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	slog.Info("server started", "addr", ln.Addr().String())
	return serve(server, ln, quit, dispatcher)
}

// serve runs server until a signal arrives on quit. It returns only after
// Shutdown has finished with in-flight handlers and every notification they
// dispatched has been delivered or given up on.
func serve(server *http.Server, ln net.Listener, quit <-chan os.Signal, dispatcher *notify.Dispatcher) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		sig := <-quit
		slog.Info("shutdown signal received", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
	}()

	if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	<-done

	slog.Info("server stopped, waiting for pending notifications")
	dispatcher.Wait()
	return nil
}

// newNotifier picks the announcement channel: Telegram if configured, then
// Redis, otherwise a no-op.
func newNotifier(ctx context.Context, cfg config.Config) (notify.Notifier, func(), error) {
	switch {
	case cfg.TelegramEnabled():
		slog.Info("borrowing notifications via telegram", "chat", cfg.TelegramChatID)
		return &notify.Telegram{
			BaseURL: cfg.TelegramAPIURL,
			Token:   cfg.TelegramToken,
			ChatID:  cfg.TelegramChatID,
			Client:  &http.Client{Timeout: cfg.NotifyTimeout},
		}, func() {}, nil

	case cfg.RedisAddr != "":
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			rdb.Close()
			return nil, nil, fmt.Errorf("connecting to redis at %s: %w", cfg.RedisAddr, err)
		}
		slog.Info("borrowing notifications via redis", "addr", cfg.RedisAddr, "channel", cfg.RedisChannel)
		return &notify.Redis{Client: rdb, Channel: cfg.RedisChannel}, func() { rdb.Close() }, nil
	}

	slog.Warn("no notification channel configured, borrowing announcements are disabled")
	return notify.Nop{}, func() {}, nil
}

// initDatabase creates a new database, ensures the schema, and creates the
// admin user. It returns the generated admin password.
func initDatabase(path, adminEmail string) (string, error) {
	database, err := db.Open(path)
	if err != nil {
		return "", err
	}

	password, err := seedAdmin(database, adminEmail)
	database.Close()
	if err != nil {
		os.Remove(path)
		return "", err
	}
	return password, nil
}

func seedAdmin(database *sql.DB, adminEmail string) (string, error) {
	if err := db.EnsureSchema(database); err != nil {
		return "", err
	}

	password, err := generatePassword(16)
	if err != nil {
		return "", fmt.Errorf("generating password: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}

	_, err = store.CreateUser(context.Background(), database, adminEmail, "", "", string(hash), model.RoleAdmin)
	if err != nil {
		return "", fmt.Errorf("creating admin user: %w", err)
	}
	return password, nil
}

// printInitResult prints the database initialization result to stdout.
func printInitResult(dbPath, email, password string) {
	fmt.Printf("Database created: %s\n", dbPath)
	fmt.Println("Schema initialized.")
	fmt.Println()
	fmt.Println("Admin account created:")
	fmt.Printf("  Email:    %s\n", email)
	fmt.Printf("  Password: %s\n", password)
	fmt.Println()
	fmt.Println("Save this password, it cannot be recovered.")
	fmt.Println("The admin can change it after logging in.")
}

// generatePassword creates a random password of the given length.
func generatePassword(length int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%&*"
	result := make([]byte, length)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		result[i] = charset[n.Int64()]
	}
	return string(result), nil
}
