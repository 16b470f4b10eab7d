package ui

import (
	"fmt"
	"io"
)

// PrintFailure writes a failure box to w
func PrintFailure(w io.Writer, title string, err error, troubleshooting []string) {
	fmt.Fprintln(w, RenderFailure(title, err, troubleshooting))
}

// PrintCommandHeader writes a command header to w
func PrintCommandHeader(w io.Writer, title, command string, params ...Param) {
	fmt.Fprintln(w, NewHeader(title, command, params...).Render())
}
