// Package banner prints the startup banner shown when the daemon boots.
package banner

import (
	"fmt"
	"io"
	"os"
)

// StartupOpts allows tests to capture banner output.
// If nil, Startup writes to os.Stdout.
type StartupOpts struct {
	Writer io.Writer // if set, use instead of os.Stdout
}

// Plain text, no escape codes, so the banner stays readable when stdout is
// redirected to a file.
var bannerLines = []string{
	"                     _",
	" _ __   __ _  _ __ | |  ___  _   _",
	"| '_ \\  / _` || '__|| | / _ \\| | | |",
	"| |_) || (_| || |   | ||  __/| |_| |",
	"| .__/  \\__,_||_|   |_| \\___| \\__, |",
	"|_|                           |___/",
}

// Startup prints the banner followed by a version line.
func Startup(version string, opts *StartupOpts) {
	w := io.Writer(os.Stdout)
	if opts != nil && opts.Writer != nil {
		w = opts.Writer
	}
	fmt.Fprintln(w)
	for _, line := range bannerLines {
		fmt.Fprintln(w, line)
	}
	fmt.Fprintf(w, "\n  web chat service  v%s\n\n", version)
}
