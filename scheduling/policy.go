// Package scheduling decides which simulated process runs next and drives it
// one instruction at a time.
package scheduling

import (
	"errors"
	"fmt"
)

// Policy is a dispatch discipline.
type Policy int

// All supported policies.
const (
	// FCFS runs processes to completion in arrival order.
	FCFS Policy = iota

	// SJF sorts the initial batch by instruction count and runs each process
	// to completion.
	SJF

	// RR gives each process a fixed quantum of instructions in turn.
	RR

	// Aging is SJF with preemption after every instruction. Waiting
	// processes see their score decrease so that no process starves.
	Aging

	// MT runs processes in arrival order and splits each of them into
	// cooperative threads.
	MT
)

// Errors returned by the scheduler.
var (
	// ErrInvalidPolicy means a policy name is not recognized.
	ErrInvalidPolicy = errors.New("invalid scheduling policy")

	// ErrHalted means an instruction asked the whole scheduler to stop.
	ErrHalted = errors.New("scheduler halted")
)

var policyNames = map[Policy]string{
	FCFS:  "FCFS",
	SJF:   "SJF",
	RR:    "RR",
	Aging: "AGING",
	MT:    "MT",
}

func (p Policy) String() string {
	if name, ok := policyNames[p]; ok {
		return name
	}

	return fmt.Sprintf("Policy(%d)", int(p))
}

// Preemptive tells if the policy may take the CPU away from an unfinished
// process.
func (p Policy) Preemptive() bool {
	return p == RR || p == Aging
}

// ParsePolicy converts the policy name used on the command line into a
// Policy.
func ParsePolicy(token string) (Policy, error) {
	for p, name := range policyNames {
		if name == token {
			return p, nil
		}
	}

	return 0, fmt.Errorf("%w: %q", ErrInvalidPolicy, token)
}
