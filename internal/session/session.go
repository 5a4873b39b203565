package session

import (
	"fmt"
	"regexp"
	"time"
)

type Kind string

const (
	KindLab         Kind = "lab"
	KindWorkstation Kind = "workstation"
)

// WorkstationResource is the resource id every workstation key carries;
// an owner has one workstation regardless of which lab they are working.
const WorkstationResource = "workstation"

type Status string

const (
	StatusRequested Status = "requested"
	StatusRunning   Status = "running"
	StatusStopping  Status = "stopping"
	StatusStopped   Status = "stopped"
	StatusFailed    Status = "failed"
)

// Key identifies a session. At most one live session exists per key.
type Key struct {
	Owner    string `json:"owner"`
	Resource string `json:"resource"`
	Kind     Kind   `json:"kind"`
}

func LabKey(owner, labID string) Key {
	return Key{Owner: owner, Resource: labID, Kind: KindLab}
}

func WorkstationKey(owner string) Key {
	return Key{Owner: owner, Resource: WorkstationResource, Kind: KindWorkstation}
}

func (k Key) String() string {
	return string(k.Kind) + "/" + k.Resource + "/" + k.Owner
}

func (k Key) Validate() error {
	if k.Owner == "" {
		return fmt.Errorf("%w: owner is required", ErrInvalidKey)
	}
	switch k.Kind {
	case KindLab:
		if k.Resource == "" {
			return fmt.Errorf("%w: lab id is required", ErrInvalidKey)
		}
	case KindWorkstation:
		if k.Resource != WorkstationResource {
			return fmt.Errorf("%w: workstation resource must be %q", ErrInvalidKey, WorkstationResource)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidKey, k.Kind)
	}
	return nil
}

// Session is one provisioned container for a key.
type Session struct {
	Key            Key       `json:"key"`
	ContainerName  string    `json:"container_name,omitempty"`
	ContainerID    string    `json:"container_id,omitempty"`
	Image          string    `json:"image,omitempty"`
	HostPort       int       `json:"host_port,omitempty"`
	InternalPort   int       `json:"internal_port,omitempty"`
	AccessURL      string    `json:"access_url,omitempty"`
	Status         Status    `json:"status"`
	StartedAt      time.Time `json:"started_at,omitzero"`
	LastActivityAt time.Time `json:"last_activity_at,omitzero"`
}

// stopped is the answer for a key with no live session.
func stopped(key Key) *Session {
	return &Session{Key: key, Status: StatusStopped}
}

// ExecResult is what Execute hands back for terminal display. A command
// that ran and failed is a result with Success=false, not an error.
type ExecResult struct {
	Success   bool   `json:"success"`
	Output    string `json:"output"`
	ExitCode  int    `json:"exit_code"`
	Truncated bool   `json:"truncated,omitempty"`
}

// StopResult is always successful from the caller's point of view.
type StopResult struct {
	Success bool `json:"success"`
}

var nameUnsafe = regexp.MustCompile(`[^a-zA-Z0-9_.-]`)

// ContainerName derives the runtime name for key. It is a pure function of
// (prefix, key) so a restarted process can find containers it forgot.
func ContainerName(prefix string, key Key) string {
	raw := prefix + "_" + string(key.Kind) + "_" + key.Resource + "_" + key.Owner
	name := nameUnsafe.ReplaceAllString(raw, "_")
	if name == "" || !isAlnum(name[0]) {
		name = "x" + name
	}
	return name
}

func isAlnum(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}
