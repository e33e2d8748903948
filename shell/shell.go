// Package shell implements the command interpreter that users type into and
// that simulated processes execute their instructions with.
package shell

import (
	"io"
	"path/filepath"

	"github.com/sarchlab/osim/scheduling"
)

// A Machine runs scripts as simulated processes.
type Machine interface {
	Run(script string) error
	Exec(scripts []string, policy scheduling.Policy) error
}

// Exit codes of a command.
const (
	CodeOK           = 0
	CodeBadCommand   = 1
	CodeFileNotFound = 3

	// CodeQuit stops the chain of commands and everything that runs them.
	CodeQuit = -1
)

// Version is printed when the shell starts.
const Version = "Shell version 1.3 created September 2024"

// Shell interprets command lines.
type Shell struct {
	name    string
	machine Machine
	vars    *VariableStore
	out     io.Writer
	dir     string
}

// Name returns the name of the shell.
func (s *Shell) Name() string {
	return s.name
}

// Variables returns the variable store of the shell.
func (s *Shell) Variables() *VariableStore {
	return s.vars
}

// WorkingDir returns the directory relative paths are resolved against. An
// empty string is the working directory of the program.
func (s *Shell) WorkingDir() string {
	return s.dir
}

// Execute runs every command of the line in order and returns the code of
// the last one. A command returning CodeQuit ends the line early.
func (s *Shell) Execute(line string) int {
	code := CodeOK

	for _, command := range SplitCommands(line) {
		code = s.interpret(SplitWords(command))
		if code == CodeQuit {
			break
		}
	}

	return code
}

func (s *Shell) interpret(args []string) int {
	if len(args) < 1 {
		return s.badCommand()
	}

	if len(args) > MaxArgs {
		return s.tooManyTokens()
	}

	cmd, found := commands[args[0]]
	if !found || len(args) < cmd.minArgs || len(args) > cmd.maxArgs {
		return s.badCommand()
	}

	return cmd.run(s, args)
}

func (s *Shell) resolve(path string) string {
	if s.dir == "" || filepath.IsAbs(path) {
		return path
	}

	return filepath.Join(s.dir, path)
}

var _ scheduling.Executor = (*Shell)(nil)
