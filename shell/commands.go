package shell

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"unicode"

	"github.com/sarchlab/osim/kernel"
	"github.com/sarchlab/osim/scheduling"
)

// Messages printed by the commands.
const (
	MsgUnknownCommand = "Unknown Command"
	MsgTooManyTokens  = "Bad command: Too many tokens"
	MsgFileNotFound   = "Bad command: File not found"
	MsgInvalidPolicy  = "Error: Invalid scheduling policy"
	MsgBadMkdir       = "Bad command: my_mkdir"
	MsgBadCd          = "Bad command: my_cd"
	MsgBye            = "Bye!"
)

// HelpText is printed by help and when the shell starts.
const HelpText = "COMMAND\t\t\tDESCRIPTION\n" +
	" help\t\t\tDisplays all the commands\n" +
	" quit\t\t\tExits / terminates the shell with “Bye!”\n" +
	" set VAR STRING\t\tAssigns a value to shell memory\n" +
	" print VAR\t\tDisplays the STRING assigned to VAR\n" +
	" run SCRIPT.TXT\t\tExecutes the file SCRIPT.TXT\n "

type command struct {
	minArgs int
	maxArgs int
	run     func(s *Shell, args []string) int
}

var commands = map[string]command{
	"help":     {1, 1, (*Shell).help},
	"quit":     {1, 1, (*Shell).quit},
	"set":      {3, MaxArgs, (*Shell).set},
	"print":    {2, 2, (*Shell).print},
	"echo":     {2, 2, (*Shell).echo},
	"run":      {2, 2, (*Shell).run},
	"exec":     {3, 5, (*Shell).exec},
	"my_ls":    {1, 1, (*Shell).ls},
	"my_mkdir": {2, 2, (*Shell).mkdir},
	"my_touch": {2, 2, (*Shell).touch},
	"my_cd":    {2, 2, (*Shell).cd},
}

func (s *Shell) println(a ...any) {
	fmt.Fprintln(s.out, a...)
}

func (s *Shell) badCommand() int {
	s.println(MsgUnknownCommand)
	return CodeBadCommand
}

func (s *Shell) tooManyTokens() int {
	s.println(MsgTooManyTokens)
	return CodeBadCommand
}

func (s *Shell) fileNotFound() int {
	s.println(MsgFileNotFound)
	return CodeFileNotFound
}

func (s *Shell) help(_ []string) int {
	s.println(HelpText)
	return CodeOK
}

func (s *Shell) quit(_ []string) int {
	s.println(MsgBye)
	return CodeQuit
}

func (s *Shell) set(args []string) int {
	if err := s.vars.Set(args[1], strings.Join(args[2:], " ")); err != nil {
		s.println("Error:", err)
		return CodeBadCommand
	}

	return CodeOK
}

func (s *Shell) print(args []string) int {
	s.println(s.vars.Get(args[1]))
	return CodeOK
}

func (s *Shell) echo(args []string) int {
	word := args[1]
	if !strings.HasPrefix(word, "$") {
		s.println(word)
		return CodeOK
	}

	value, _ := s.vars.Lookup(word[1:])
	s.println(value)

	return CodeOK
}

func (s *Shell) run(args []string) int {
	return s.machineResult(s.machine.Run(s.resolve(args[1])))
}

func (s *Shell) exec(args []string) int {
	policy, err := scheduling.ParsePolicy(args[len(args)-1])
	if err != nil {
		s.println(MsgInvalidPolicy)
		return CodeBadCommand
	}

	scripts := make([]string, 0, len(args)-2)

	for _, name := range args[1 : len(args)-1] {
		path := s.resolve(name)
		if _, err := os.Stat(path); err != nil {
			fmt.Fprintf(s.out, "Error: Could not open file %s\n", name)
			return s.fileNotFound()
		}

		scripts = append(scripts, path)
	}

	return s.machineResult(s.machine.Exec(scripts, policy))
}

func (s *Shell) machineResult(err error) int {
	switch {
	case err == nil:
		return CodeOK
	case errors.Is(err, scheduling.ErrHalted):
		return CodeQuit
	case errors.Is(err, kernel.ErrScriptNotFound):
		return s.fileNotFound()
	default:
		s.println("Error:", err)
		return CodeBadCommand
	}
}

func (s *Shell) ls(_ []string) int {
	dir := s.dir
	if dir == "" {
		dir = "."
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		s.println("my_ls:", err)
		return CodeBadCommand
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}

	sort.SliceStable(names, func(i, j int) bool {
		return listedBefore(names[i], names[j])
	})

	for _, name := range names {
		s.println(name)
	}

	return CodeOK
}

// listedBefore orders names with digits first, then letters alphabetically
// with an uppercase initial before the same lowercase initial.
func listedBefore(a, b string) bool {
	ra, rb := rune(a[0]), rune(b[0])

	if unicode.IsDigit(ra) != unicode.IsDigit(rb) {
		return unicode.IsDigit(ra)
	}

	if ra != rb && unicode.ToLower(ra) == unicode.ToLower(rb) {
		return unicode.IsUpper(ra)
	}

	return a < b
}

func (s *Shell) mkdir(args []string) int {
	name := args[1]

	if strings.HasPrefix(name, "$") {
		value, found := s.vars.Lookup(name[1:])
		if !found || !isAlphanumeric(value) {
			s.println(MsgBadMkdir)
			return CodeOK
		}

		name = value
	} else if !isAlphanumeric(name) {
		s.println(MsgBadMkdir)
		return CodeOK
	}

	if err := os.Mkdir(s.resolve(name), 0o755); err != nil {
		s.println(MsgBadMkdir)
	}

	return CodeOK
}

func (s *Shell) touch(args []string) int {
	f, err := os.Create(s.resolve(args[1]))
	if err != nil {
		s.println("my_touch: Error creating file:", err)
		return CodeBadCommand
	}

	if err := f.Close(); err != nil {
		s.println("my_touch: Error creating file:", err)
		return CodeBadCommand
	}

	return CodeOK
}

func (s *Shell) cd(args []string) int {
	name := args[1]
	if !isAlphanumeric(name) && name != ".." {
		s.println(MsgBadCd)
		return CodeOK
	}

	path := s.resolve(name)

	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		s.println(MsgBadCd)
		return CodeOK
	}

	s.dir = path

	return CodeOK
}

func isAlphanumeric(str string) bool {
	if str == "" {
		return false
	}

	for _, r := range str {
		if r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return false
		}
	}

	return true
}
