// main.go - Admin control tool for linkhub
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/karloscodes/cartridge/crypto"
	"golang.org/x/term"

	"linkhub/internal"
	"linkhub/internal/analytics"
	"linkhub/internal/seeder"
	"linkhub/internal/store"
	"linkhub/internal/timeframe"
)

const (
	defaultShutdownTimeout = 30 * time.Second
	minPasswordLength      = 8
	topLinks               = 10
)

// Command defines the interface for all command implementations
type Command interface {
	// Name returns the command name
	Name() string
	// Description returns the command description
	Description() string
	// NeedsApp reports whether Execute requires an initialized app
	NeedsApp() bool
	// Execute runs the command with the given app and args
	Execute(ctx context.Context, app *internal.Application, args []string) error
}

// The set of available commands
var commands = []Command{
	&HashPasswordCommand{},
	&StatsCommand{out: os.Stdout},
	&CheckStoreCommand{out: os.Stdout},
	&SeedCommand{},
	&MigrateCommand{},
	&HelpCommand{},
}

func main() {
	flag.Parse()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sig := <-sigChan
		log.Printf("Received signal: %v, initiating cleanup...", sig)
		cancel()
	}()

	cmdName, args := parseArgs(os.Args[1:])

	cmd := findCommand(cmdName)
	if cmd == nil {
		showUsageAndExit()
	}

	var app *internal.Application
	if cmd.NeedsApp() {
		var err error
		app, err = internal.NewApp()
		if err != nil {
			log.Fatalf("Failed to initialize app: %v", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
			defer cancel()
			if err := app.Shutdown(shutdownCtx); err != nil {
				log.Printf("Warning: Cleanup error: %v", err)
			}
		}()
	}

	if err := cmd.Execute(ctx, app, args); err != nil {
		log.Fatalf("Command failed: %v", err)
	}
}

// HashPasswordCommand prints a bcrypt hash for LINKHUB_ADMIN_PASSWORD_HASH
type HashPasswordCommand struct{}

func (c *HashPasswordCommand) Name() string { return "hash-password" }
func (c *HashPasswordCommand) Description() string {
	return "Prints a bcrypt hash for LINKHUB_ADMIN_PASSWORD_HASH"
}
func (c *HashPasswordCommand) NeedsApp() bool { return false }

func (c *HashPasswordCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	var password string
	for {
		fmt.Fprint(os.Stderr, "Enter admin password (minimum 8 characters): ")
		passBytes, err := term.ReadPassword(int(syscall.Stdin))
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(os.Stderr)

		password = strings.TrimSpace(string(passBytes))
		if err := validatePassword(password); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}

		fmt.Fprint(os.Stderr, "Confirm admin password: ")
		confirmBytes, err := term.ReadPassword(int(syscall.Stdin))
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(os.Stderr)

		if password != strings.TrimSpace(string(confirmBytes)) {
			fmt.Fprintln(os.Stderr, "Error: Passwords do not match. Please try again.")
			continue
		}
		break
	}

	hash, err := crypto.GeneratePasswordHash(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	fmt.Println(hash)
	return nil
}

func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}
	return nil
}

// StatsCommand fetches the dashboard dataset and prints a summary
type StatsCommand struct {
	out io.Writer
}

func (c *StatsCommand) Name() string        { return "stats" }
func (c *StatsCommand) Description() string { return "Prints totals and top links: stats [today|yesterday|last7days|last30days|all]" }
func (c *StatsCommand) NeedsApp() bool      { return true }

func (c *StatsCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	preset := timeframe.PresetAll
	if len(args) > 0 {
		p, err := timeframe.ParsePreset(args[0])
		if err != nil {
			return err
		}
		preset = p
	}

	ds, err := app.Services.Aggregator.SetPresetFilter(ctx, preset)
	if err != nil {
		return err
	}
	printStats(c.out, preset, ds)
	return nil
}

func printStats(w io.Writer, preset timeframe.Preset, ds analytics.Dataset) {
	fmt.Fprintf(w, "Range: %s\n", preset)
	fmt.Fprintf(w, "- Page views:  %d (today %d)\n", ds.Summary.TotalPageViews, ds.Summary.TodayPageViews)
	fmt.Fprintf(w, "- Link clicks: %d\n", ds.Summary.TotalLinkClicks)
	fmt.Fprintf(w, "- Modal opens: %d\n", ds.Summary.TotalModalOpens)

	popular := ds.PopularLinks()
	if len(popular) == 0 {
		return
	}
	fmt.Fprintln(w, "Top links:")
	for i, l := range popular {
		if i == topLinks {
			break
		}
		fmt.Fprintf(w, "%3d. %-30s %d\n", i+1, l.Title, l.Count)
	}
}

// CheckStoreCommand reports whether the event store is configured and reachable
type CheckStoreCommand struct {
	out io.Writer
}

func (c *CheckStoreCommand) Name() string        { return "check-store" }
func (c *CheckStoreCommand) Description() string { return "Checks that the event store is configured and reachable" }
func (c *CheckStoreCommand) NeedsApp() bool      { return true }

func (c *CheckStoreCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	st := app.Services.Store
	fmt.Fprintf(c.out, "Event store: %s\n", store.Describe(st))
	if st == nil {
		return fmt.Errorf("event store not configured: set LINKHUB_STORE_URL and LINKHUB_STORE_KEY")
	}

	pingCtx, cancel := context.WithTimeout(ctx, app.Services.Config.StoreTimeout())
	defer cancel()
	if err := st.Ping(pingCtx); err != nil {
		return fmt.Errorf("event store unreachable: %w", err)
	}
	fmt.Fprintln(c.out, "Status: reachable")
	return nil
}

// SeedCommand fills the event store with sample traffic
type SeedCommand struct{}

func (c *SeedCommand) Name() string        { return "seed" }
func (c *SeedCommand) Description() string { return "Seeds the event store with sample traffic: seed [-events N]" }
func (c *SeedCommand) NeedsApp() bool      { return true }

func (c *SeedCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	count := fs.Int("events", 1000, "number of events to generate")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if app.Services.Config.IsProduction() {
		return fmt.Errorf("refusing to seed in production")
	}

	svc := app.Services
	_, err := seeder.NewSeeder(svc.Store, svc.Links, svc.Logger, *count).Run(ctx)
	return err
}

// MigrateCommand runs database migrations
type MigrateCommand struct{}

func (c *MigrateCommand) Name() string        { return "migrate" }
func (c *MigrateCommand) Description() string { return "Runs database migrations" }
func (c *MigrateCommand) NeedsApp() bool      { return true }

func (c *MigrateCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	if err := app.DBManager.MigrateDatabase(); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, app.Services.Config.StoreTimeout())
	defer cancel()
	if err := store.Migrate(ctx, app.Services.Store); err != nil {
		return fmt.Errorf("event store migration failed: %w", err)
	}
	log.Println("Migrations completed successfully")
	return nil
}

// HelpCommand implements a command to show usage information
type HelpCommand struct{}

func (c *HelpCommand) Name() string        { return "help" }
func (c *HelpCommand) Description() string { return "Shows usage information" }
func (c *HelpCommand) NeedsApp() bool      { return false }

func (c *HelpCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	printUsage(os.Stdout)
	return nil
}

// parseArgs parses the command name and arguments
func parseArgs(args []string) (string, []string) {
	if len(args) == 0 {
		return "help", []string{}
	}
	return args[0], args[1:]
}

// findCommand finds a command by name
func findCommand(name string) Command {
	for _, cmd := range commands {
		if cmd.Name() == name {
			return cmd
		}
	}
	return nil
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: linkhubctl [command] [args...]")
	fmt.Fprintln(w, "Available commands:")
	for _, cmd := range commands {
		fmt.Fprintf(w, "  %s: %s\n", cmd.Name(), cmd.Description())
	}
}

// showUsageAndExit shows usage information and exits
func showUsageAndExit() {
	printUsage(os.Stdout)
	os.Exit(1)
}
