package ui

import (
	"fmt"
	"io"
	"os"
)

var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// SetOutput redirects OK/Fail/Print. Nil keeps the current writer.
func SetOutput(out, errOut io.Writer) {
	if out != nil {
		stdout = out
	}
	if errOut != nil {
		stderr = errOut
	}
}

func OK(msg string) {
	fmt.Fprintln(stdout, current.Success.Render(current.SymOK+" "+msg))
}

func Fail(msg string) {
	fmt.Fprintln(stderr, current.Error.Render(current.SymFail+" "+msg))
}

func Hint(msg string) {
	fmt.Fprintln(stderr, current.Muted.Render("Hint: "+msg))
}

func Println(s string) { fmt.Fprintln(stdout, s) }
