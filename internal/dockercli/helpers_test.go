package dockercli

import "os/exec"

// execNotFound mimics the error exec.Command returns for a missing binary.
type execNotFound struct{}

func (*execNotFound) Error() string { return `exec: "docker": executable file not found in $PATH` }
func (*execNotFound) Unwrap() error { return exec.ErrNotFound }
