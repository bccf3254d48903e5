package ui

import (
	"fmt"
	"sync/atomic"
)

// ASCIILogo is printed at the start of an interactive run
const ASCIILogo = `
   ┌───────────────────────────────────────┐
   │  ███████╗███╗   ███╗██████╗ ██╗       │
   │  ██╔════╝████╗ ████║██╔══██╗██║       │
   │  ███████╗██╔████╔██║██║  ██║██║       │
   │  ╚════██║██║╚██╔╝██║██║  ██║██║       │
   │  ███████║██║ ╚═╝ ██║██████╔╝███████╗  │
   │  ╚══════╝╚═╝     ╚═╝╚═════╝ ╚══════╝  │
   │      SmugMug account mirror           │
   └───────────────────────────────────────┘
`

var (
	quiet   atomic.Bool
	noColor atomic.Bool
)

// SetQuietMode suppresses all non-error terminal output
func SetQuietMode(v bool) { quiet.Store(v) }

// IsQuietMode reports whether terminal output is suppressed
func IsQuietMode() bool { return quiet.Load() }

// SetColorEnabled toggles ANSI colors for every helper in this package
func SetColorEnabled(v bool) { noColor.Store(!v) }

// Color functions for terminal output
var (
	Cyan    = colorize("\033[36m%s\033[0m")
	Yellow  = colorize("\033[33m%s\033[0m")
	Red     = colorize("\033[31m%s\033[0m")
	Green   = colorize("\033[32m%s\033[0m")
	Magenta = colorize("\033[35m%s\033[0m")
	Dim     = colorize("\033[2m%s\033[0m")
)

func colorize(colorString string) func(string) string {
	return func(text string) string {
		if noColor.Load() {
			return text
		}
		return fmt.Sprintf(colorString, text)
	}
}

// PrintLogo prints the ASCII logo with color
func PrintLogo() {
	if IsQuietMode() {
		return
	}
	fmt.Print(Cyan(ASCIILogo))
}

// PrintError prints an error message in red; shown even in quiet mode
func PrintError(msg string, args ...interface{}) {
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	fmt.Println(Red(msg))
}

// PrintSuccess prints a success message in green
func PrintSuccess(msg string) {
	if IsQuietMode() {
		return
	}
	fmt.Println(Green(msg))
}

// PrintInfo prints a label and value
func PrintInfo(label string, value string) {
	if IsQuietMode() {
		return
	}
	fmt.Printf("%s: %s\n", Cyan(label), Yellow(value))
}

// PrintWarning prints a warning message in yellow
func PrintWarning(msg string, args ...interface{}) {
	if IsQuietMode() {
		return
	}
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	fmt.Println(Yellow(msg))
}
