package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/receipt-keeper/internal/auth"
	"github.com/zombor/receipt-keeper/internal/logging"
	"github.com/zombor/receipt-keeper/internal/store"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

const envPrefix = "RECEIPT_KEEPER"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, ff.ErrHelp) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

// rootConfig holds the flags every subcommand shares.
type rootConfig struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	flags        *ff.FlagSet
	dbPath       *string
	logLevel     *string
	passwordHash *string
}

// openStore opens the database named by --db.
func (c *rootConfig) openStore() (*store.Store, error) {
	db, err := store.Open(*c.dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", *c.dbPath, err)
	}
	return db, nil
}

func (c *rootConfig) hasher() (auth.Hasher, error) {
	return auth.NewHasher(*c.passwordHash)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	root := &rootConfig{stdin: stdin, stdout: stdout, stderr: stderr}
	root.flags = ff.NewFlagSet("receipt-keeper")
	root.dbPath = root.flags.StringLong("db", "receipt-keeper.db", "database file path")
	root.logLevel = root.flags.StringLong("log-level", "", "debug, info, warn or error (default LOG_LEVEL or info)")
	root.passwordHash = root.flags.StringLong("password-hash", "argon2id", "password hashing: argon2id, bcrypt or sha256 (legacy, unsalted)")
	root.flags.StringLong("config", "", "config file with one 'flag value' per line")

	cmd := &ff.Command{
		Name:      "receipt-keeper",
		Usage:     "receipt-keeper [FLAGS] <SUBCOMMAND> ...",
		ShortHelp: "scan, store and browse shopping receipts locally",
		Flags:     root.flags,
		Subcommands: []*ff.Command{
			newServeCommand(root),
			newListCommand(root),
			newRecoverCommand(root),
			newVersionCommand(root),
		},
		Exec: func(context.Context, []string) error {
			return ff.ErrHelp
		},
	}

	err := cmd.Parse(args,
		ff.WithEnvVarPrefix(envPrefix),
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.PlainParser),
	)
	if err == nil {
		err = logging.Setup(stderr, *root.logLevel)
	}
	if err == nil {
		err = cmd.Run(ctx)
	}
	if errors.Is(err, ff.ErrHelp) {
		selected := cmd.GetSelected()
		if selected == nil {
			selected = cmd
		}
		fmt.Fprintf(stderr, "%s\n", ffhelp.Command(selected))
	}
	return err
}

func newVersionCommand(root *rootConfig) *ff.Command {
	return &ff.Command{
		Name:      "version",
		Usage:     "receipt-keeper version",
		ShortHelp: "print the version",
		Exec: func(context.Context, []string) error {
			fmt.Fprintln(root.stdout, version)
			return nil
		},
	}
}
