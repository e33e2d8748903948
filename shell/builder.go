package shell

import "io"

// Builder can build shells.
type Builder struct {
	machine      Machine
	varStoreSize int
	out          io.Writer
	dir          string
}

// MakeBuilder creates a builder with the default variable store size.
func MakeBuilder() Builder {
	return Builder{
		varStoreSize: DefaultVariableStoreSize,
		out:          io.Discard,
	}
}

// WithMachine sets what runs scripts for run and exec.
func (b Builder) WithMachine(machine Machine) Builder {
	b.machine = machine
	return b
}

// WithVariableStoreSize sets how many variables the shell can hold.
func (b Builder) WithVariableStoreSize(n int) Builder {
	b.varStoreSize = n
	return b
}

// WithOutput sets where command output goes.
func (b Builder) WithOutput(out io.Writer) Builder {
	b.out = out
	return b
}

// WithWorkingDir sets the directory relative paths start from.
func (b Builder) WithWorkingDir(dir string) Builder {
	b.dir = dir
	return b
}

// Build creates the shell.
func (b Builder) Build(name string) *Shell {
	if b.machine == nil {
		panic("shell: machine is not set")
	}

	return &Shell{
		name:    name,
		machine: b.machine,
		vars:    NewVariableStore(b.varStoreSize),
		out:     b.out,
		dir:     b.dir,
	}
}
