// Package ttyguard marks batch invocations of rb as non-interactive before
// Bubble Tea or Lipgloss touch the terminal. Import it for its side effect.
package ttyguard

import (
	"os"
	"strings"
)

// init runs before any package that probes the terminal.
//
// Lipgloss and termenv query the terminal background with OSC/DSR sequences
// written to stdout. In a pipe those bytes end up in the JSON or Markdown
// output, so batch invocations set CI=1, which termenv honors by skipping
// the probe.
func init() {
	if os.Getenv("CI") != "" {
		return
	}

	if !shouldSuppressTTYQueries(os.Args, os.Getenv("RB_ROBOT") == "1", os.Getenv("RB_TEST_MODE") != "") {
		return
	}

	_ = os.Setenv("CI", "1")
}

func shouldSuppressTTYQueries(args []string, envRobot, envTest bool) bool {
	if envRobot || envTest {
		return true
	}

	for _, arg := range args {
		if strings.HasPrefix(arg, "--robot-") || strings.HasPrefix(arg, "--export") {
			return true
		}
		switch arg {
		case "--report", "--version", "-v", "--help", "-h":
			return true
		}
	}

	return false
}
