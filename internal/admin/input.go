package admin

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// readPassword is swapped in tests so they never touch the terminal.
var readPassword = term.ReadPassword

// ask prints "label: " and returns the next trimmed input line.
func (a *App) ask(label string) (string, error) {
	return readLine(a.reader, a.out, label)
}

// askRequired is ask for answers that may not be blank.
func (a *App) askRequired(label string) (string, error) {
	v, err := a.ask(label)
	if err != nil {
		return "", err
	}
	if v == "" {
		return "", fmt.Errorf("%s is required", strings.ToLower(label))
	}
	return v, nil
}

// askPassword reads a password without echo. When the console is fed from a
// pipe the password is the next input line instead. The caller wipes the
// returned slice.
func (a *App) askPassword(label string) ([]byte, error) {
	if a.passwordFromInput {
		line, err := readLine(a.reader, a.out, label)
		if err != nil {
			return nil, err
		}
		return []byte(line), nil
	}

	if _, err := fmt.Fprintf(a.out, "%s: ", label); err != nil {
		return nil, err
	}
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(a.out)
	if err != nil {
		return nil, err
	}
	return pw, nil
}

// readLine returns a last line without newline as well; EOF with nothing
// read is an error.
func readLine(r *bufio.Reader, w io.Writer, label string) (string, error) {
	if _, err := fmt.Fprintf(w, "%s: ", label); err != nil {
		return "", err
	}
	line, err := r.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
