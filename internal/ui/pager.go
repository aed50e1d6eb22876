package ui

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/term"
)

// PagerOptions controls pager behavior for one command.
type PagerOptions struct {
	// NoPager disables the pager (--no-pager flag).
	NoPager bool
}

// shouldUsePager reports whether output goes through a pager. Paging is
// off when the NoPager option or SHEP_NO_PAGER is set, and for output
// that is piped or redirected.
func shouldUsePager(opts PagerOptions) bool {
	if opts.NoPager {
		return false
	}
	if os.Getenv("SHEP_NO_PAGER") != "" {
		return false
	}
	return IsTerminal()
}

// pagerCommand returns the pager to run: SHEP_PAGER, then PAGER, then
// less.
func pagerCommand() string {
	if pager := os.Getenv("SHEP_PAGER"); pager != "" {
		return pager
	}
	if pager := os.Getenv("PAGER"); pager != "" {
		return pager
	}
	return "less"
}

// terminalHeight returns the terminal height in lines, 0 when stdout is
// not a terminal.
func terminalHeight() int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return 0
	}
	_, height, err := term.GetSize(fd)
	if err != nil {
		return 0
	}
	return height
}

func contentHeight(content string) int {
	if content == "" {
		return 0
	}
	return strings.Count(content, "\n") + 1
}

// ToPager pipes content through a pager when stdout is an interactive
// terminal and the content does not fit on one screen. Everything else
// prints directly.
func ToPager(content string, opts PagerOptions) error {
	if !shouldUsePager(opts) {
		fmt.Print(content)
		return nil
	}

	termHeight := terminalHeight()
	if termHeight > 0 && contentHeight(content) <= termHeight-1 {
		fmt.Print(content)
		return nil
	}

	parts := strings.Fields(pagerCommand())
	if len(parts) == 0 {
		fmt.Print(content)
		return nil
	}

	cmd := exec.Command(parts[0], parts[1:]...) // #nosec G204 -- pager comes from the operator's environment
	cmd.Stdin = strings.NewReader(content)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	// -R passes ANSI colors through, -F quits when everything fits on
	// one screen, -X skips the screen-clear on exit.
	if os.Getenv("LESS") == "" {
		cmd.Env = append(os.Environ(), "LESS=-RFX")
	} else {
		cmd.Env = os.Environ()
	}

	return cmd.Run()
}
