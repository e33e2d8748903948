package shell

import "strings"

// Limits of a command line.
const (
	MaxCommands = 10
	MaxArgs     = 7
)

// SplitCommands splits a line into its ';' separated commands. Empty pieces
// are skipped, blank ones are kept, and anything past MaxCommands is dropped.
func SplitCommands(line string) []string {
	line = strings.TrimRight(line, "\r\n")

	var commands []string

	for _, piece := range strings.Split(line, ";") {
		if piece == "" {
			continue
		}

		if len(commands) == MaxCommands {
			break
		}

		commands = append(commands, strings.TrimSpace(piece))
	}

	return commands
}

// SplitWords splits one command into words separated by white space.
func SplitWords(command string) []string {
	return strings.Fields(command)
}
