package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// PasswordReader reads a secret without echo
type PasswordReader func() ([]byte, error)

// TerminalPassword reads from the controlling terminal
func TerminalPassword() ([]byte, error) {
	return term.ReadPassword(int(os.Stdin.Fd()))
}

// StdinIsTerminal reports whether secrets can be read without echo
func StdinIsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

func getText(reader *bufio.Reader, w io.Writer, prompt string) (string, error) {
	if _, err := fmt.Fprintf(w, "%s: ", prompt); err != nil {
		return "", err
	}
	line, err := reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && len(line) > 0 {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// getPassword uses the PasswordReader when one is set, otherwise it reads
// an echoed line (piped input).
func (a *App) getPassword(prompt string) (string, error) {
	if a.readPassword == nil {
		return getText(a.in, a.out, prompt)
	}
	if _, err := fmt.Fprintf(a.out, "%s: ", prompt); err != nil {
		return "", err
	}
	pw, err := a.readPassword()
	fmt.Fprintln(a.out)
	if err != nil {
		return "", err
	}
	return string(pw), nil
}
