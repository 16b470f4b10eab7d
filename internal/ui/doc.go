// Package ui renders the styled terminal output of fw-build-id.
//
// The plain build ID lines printed by the root command are meant for scripts
// and are written with fmt. This package is used where a person is reading:
// the info command and failure reports on a terminal.
//
// Components:
//
//   - Header: command banner showing the operation and its parameters
//   - Result: success, failure or warning box with ordered details and
//     troubleshooting tips
//   - Table: bordered table, used for the section listing
//
// Example:
//
//	fmt.Println(ui.NewHeader("Build ID", "fw-build-id info",
//	    ui.Param{Key: "ELF", Value: path}).Render())
//	fmt.Println(ui.NewSuccessResult("Memfault Build Id",
//	    ui.Param{Key: "Build ID", Value: res.Hex()}).Render())
//
// Widths follow the terminal (see GetTerminalWidth) and are clamped to
// MinTerminalWidth and MaxContentWidth.
package ui
