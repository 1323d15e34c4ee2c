package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/peterbourgon/ff/v4"
	"golang.org/x/term"

	"github.com/zombor/receipt-keeper/internal/auth"
)

func newRecoverCommand(root *rootConfig) *ff.Command {
	return &ff.Command{
		Name:      "recover",
		Usage:     "receipt-keeper recover",
		ShortHelp: "reset a forgotten password with the account's security question",
		LongHelp: "Walks through the same steps as the app: enter the account email, " +
			"answer its security question, then choose a new password. " +
			"Run it while the server is stopped; the database allows one process at a time.",
		Flags: ff.NewFlagSet("recover").SetParent(root.flags),
		Exec: func(ctx context.Context, args []string) error {
			hasher, err := root.hasher()
			if err != nil {
				return err
			}

			db, err := root.openStore()
			if err != nil {
				return err
			}
			defer db.Close()

			svc := auth.NewService(db, hasher, auth.LogNotifier{})
			return runRecovery(ctx, svc.BeginRecovery(), newPrompter(root.stdin, root.stdout))
		},
	}
}

// runRecovery prompts for each step until it succeeds. Domain errors are
// shown and the step is asked again; anything else aborts.
func runRecovery(ctx context.Context, recovery *auth.Recovery, p *prompter) error {
	for recovery.Step() != auth.StepDone {
		var err error
		switch recovery.Step() {
		case auth.StepEmail:
			var email string
			if email, err = p.ask("Email: "); err == nil {
				err = recovery.SubmitEmail(ctx, email)
			}
		case auth.StepQuestion:
			var answer string
			if answer, err = p.ask(recovery.Question() + " "); err == nil {
				err = recovery.SubmitAnswer(ctx, answer)
			}
		case auth.StepNewPassword:
			var password string
			if password, err = p.secret("New password: "); err == nil {
				err = recovery.SubmitNewPassword(ctx, password)
			}
		}

		if err != nil {
			if !auth.IsDomainError(err) {
				return err
			}
			fmt.Fprintf(p.out, "%v\n", err)
		}
	}

	fmt.Fprintln(p.out, "Password updated. You can sign in with the new password.")
	return nil
}

// prompter reads answers line by line, hiding secrets when attached to a
// terminal.
type prompter struct {
	in  *bufio.Reader
	out io.Writer
	fd  int
	tty bool
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	p := &prompter{in: bufio.NewReader(in), out: out}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.fd = int(f.Fd())
		p.tty = true
	}
	return p
}

func (p *prompter) ask(prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	line, err := p.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (p *prompter) secret(prompt string) (string, error) {
	if !p.tty {
		return p.ask(prompt)
	}
	fmt.Fprint(p.out, prompt)
	data, err := term.ReadPassword(p.fd)
	fmt.Fprintln(p.out)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(data), nil
}
