// Command osim is a shell whose scripts run as simulated processes on a
// paged-memory machine.
package main

import "github.com/sarchlab/osim/cmd/osim/cmd"

func main() {
	cmd.Execute()
}
