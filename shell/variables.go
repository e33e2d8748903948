package shell

import (
	"errors"
	"sync"
)

// DefaultVariableStoreSize is the number of variables a shell can hold.
const DefaultVariableStoreSize = 100

// NoSuchVariable is what Get returns for a name that was never set.
const NoSuchVariable = "Variable does not exist"

// ErrVariableStoreFull means a new variable cannot be added.
var ErrVariableStoreFull = errors.New("variable store is full")

// VariableStore maps variable names to string values.
type VariableStore struct {
	mu       sync.Mutex
	capacity int
	values   map[string]string
}

// NewVariableStore creates an empty store holding up to capacity variables.
func NewVariableStore(capacity int) *VariableStore {
	if capacity <= 0 {
		panic("shell: variable store capacity must be positive")
	}

	return &VariableStore{
		capacity: capacity,
		values:   make(map[string]string),
	}
}

// Get returns the value of the variable, or NoSuchVariable.
func (v *VariableStore) Get(name string) string {
	value, found := v.Lookup(name)
	if !found {
		return NoSuchVariable
	}

	return value
}

// Lookup returns the value of the variable and whether it is set.
func (v *VariableStore) Lookup(name string) (string, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	value, found := v.values[name]

	return value, found
}

// Set assigns the value, replacing any previous one.
func (v *VariableStore) Set(name, value string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, found := v.values[name]; !found && len(v.values) >= v.capacity {
		return ErrVariableStoreFull
	}

	v.values[name] = value

	return nil
}

// Len returns the number of variables set.
func (v *VariableStore) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()

	return len(v.values)
}
