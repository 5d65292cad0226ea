package credentials

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"golang.org/x/term"

	"attendfill/internal/config"
	appLog "attendfill/internal/log"
)

// Credentials are the platform login for the user being scheduled.
type Credentials struct {
	Username string
	Password string
}

// ErrMissing is returned when no source produced a username and password.
var ErrMissing = errors.New("credentials: username and password are required")

// Prompter asks the user interactively. The default implementation reads
// the username from in and the password from the terminal without echo.
type Prompter interface {
	Prompt() (Credentials, error)
}

// Resolve tries, in order: the environment, the credentials file, then the
// prompter (skipped when nil).
func Resolve(path string, prompter Prompter) (Credentials, error) {
	c := Credentials{
		Username: os.Getenv(config.EnvUsername),
		Password: os.Getenv(config.EnvPassword),
	}
	if c.complete() {
		appLog.Debug("credentials from environment")
		return c, nil
	}

	if path != "" {
		fc, err := ReadFile(path)
		switch {
		case err == nil:
			appLog.Debug("credentials from file", "path", path)
			return fc, nil
		case errors.Is(err, fs.ErrNotExist):
		default:
			return Credentials{}, err
		}
	}

	if prompter == nil {
		return Credentials{}, ErrMissing
	}
	pc, err := prompter.Prompt()
	if err != nil {
		return Credentials{}, fmt.Errorf("credentials prompt: %w", err)
	}
	if !pc.complete() {
		return Credentials{}, ErrMissing
	}
	return pc, nil
}

// ReadFile parses a two-line file: username, then password.
func ReadFile(path string) (Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Credentials{}, err
	}
	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	if len(lines) < 2 {
		return Credentials{}, fmt.Errorf("credentials file %s: expected username and password lines", path)
	}
	c := Credentials{Username: strings.TrimSpace(lines[0]), Password: lines[1]}
	if !c.complete() {
		return Credentials{}, fmt.Errorf("credentials file %s: empty username or password", path)
	}
	return c, nil
}

func (c Credentials) complete() bool {
	return c.Username != "" && c.Password != ""
}

// TerminalPrompter reads from an interactive terminal.
type TerminalPrompter struct {
	In  *os.File
	Out io.Writer
}

func NewTerminalPrompter() *TerminalPrompter {
	return &TerminalPrompter{In: os.Stdin, Out: os.Stderr}
}

func (p *TerminalPrompter) Prompt() (Credentials, error) {
	fd := int(p.In.Fd())
	if !term.IsTerminal(fd) {
		return Credentials{}, errors.New("stdin is not a terminal")
	}

	fmt.Fprint(p.Out, "Enter your e-mail: ")
	user, err := bufio.NewReader(p.In).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return Credentials{}, err
	}

	fmt.Fprint(p.Out, "Enter your password: ")
	pw, err := term.ReadPassword(fd)
	fmt.Fprintln(p.Out)
	if err != nil {
		return Credentials{}, err
	}

	return Credentials{Username: strings.TrimSpace(user), Password: string(pw)}, nil
}
