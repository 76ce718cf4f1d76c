// Package handoff implements the role switchboard of team mode: a fixed set
// of roles, exactly one of them active, and explicit transfers of control
// between peers.
package handoff

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/MrWong99/huddle/pkg/provider/tts"
)

var (
	ErrUnknownRole      = errors.New("handoff: unknown role")
	ErrSelfHandoff      = errors.New("handoff: cannot hand off to the active role")
	ErrNotActive        = errors.New("handoff: role is not active")
	ErrNotPeer          = errors.New("handoff: target is not a peer")
	ErrAlreadyHandedOff = errors.New("handoff: a handoff is already pending this turn")
)

// Role is one agent of the team.
type Role struct {
	// Name is the lower-case identifier used in tool names, e.g. "technical".
	Name string
	// DisplayName is spoken and logged, e.g. "Technical Specialist".
	DisplayName string
	// Instructions is the role's system prompt.
	Instructions string
	Voice        tts.VoiceProfile
	// Peers lists the role names this role may hand off to.
	Peers []string
}

// Switchboard tracks the active role. It is safe for concurrent use.
type Switchboard struct {
	roles map[string]Role
	order []string

	mu      sync.Mutex
	active  string
	pending bool
}

// New validates roles and activates initial. Every peer must name another
// configured role.
func New(roles []Role, initial string) (*Switchboard, error) {
	if len(roles) == 0 {
		return nil, errors.New("handoff: at least one role is required")
	}
	sb := &Switchboard{roles: make(map[string]Role, len(roles))}
	for _, r := range roles {
		if r.Name == "" {
			return nil, errors.New("handoff: role name must not be empty")
		}
		if _, dup := sb.roles[r.Name]; dup {
			return nil, fmt.Errorf("handoff: duplicate role %q", r.Name)
		}
		sb.roles[r.Name] = r
		sb.order = append(sb.order, r.Name)
	}
	var errs []error
	for _, r := range roles {
		for _, p := range r.Peers {
			if _, ok := sb.roles[p]; !ok {
				errs = append(errs, fmt.Errorf("role %q: peer %q: %w", r.Name, p, ErrUnknownRole))
			}
			if p == r.Name {
				errs = append(errs, fmt.Errorf("role %q lists itself as a peer", r.Name))
			}
		}
	}
	if _, ok := sb.roles[initial]; !ok {
		errs = append(errs, fmt.Errorf("initial role %q: %w", initial, ErrUnknownRole))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("handoff: %w", err)
	}
	sb.active = initial
	return sb, nil
}

// Active returns the active role.
func (s *Switchboard) Active() Role {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roles[s.active]
}

// Role looks up a role by name.
func (s *Switchboard) Role(name string) (Role, bool) {
	r, ok := s.roles[name]
	return r, ok
}

// Roles returns all roles in configuration order.
func (s *Switchboard) Roles() []Role {
	out := make([]Role, 0, len(s.order))
	for _, n := range s.order {
		out = append(out, s.roles[n])
	}
	return out
}

// Handoff makes to the active role. from must be the active role, to must be
// one of its peers, and only one handoff may happen per turn.
func (s *Switchboard) Handoff(from, to string) error {
	fr, ok := s.roles[from]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownRole, from)
	}
	if _, ok := s.roles[to]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownRole, to)
	}
	if from == to {
		return ErrSelfHandoff
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending {
		return ErrAlreadyHandedOff
	}
	if s.active != from {
		return fmt.Errorf("%w: %q (active is %q)", ErrNotActive, from, s.active)
	}
	if !containsName(fr.Peers, to) {
		return fmt.Errorf("%w: %q -> %q", ErrNotPeer, from, to)
	}
	s.active = to
	s.pending = true
	return nil
}

// TakeEntry reports whether a handoff happened since the last call and
// returns the role that must now give its entry reply. The marker is cleared.
func (s *Switchboard) TakeEntry() (Role, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.pending {
		return Role{}, false
	}
	s.pending = false
	return s.roles[s.active], true
}

// ToolName returns the delegate tool name for a role,
// e.g. "delegate_to_technical_agent".
func ToolName(role string) string {
	return "delegate_to_" + role + "_agent"
}

// RoleFromTool is the inverse of ToolName.
func RoleFromTool(tool string) (string, bool) {
	role, ok := strings.CutPrefix(tool, "delegate_to_")
	if !ok {
		return "", false
	}
	role, ok = strings.CutSuffix(role, "_agent")
	return role, ok && role != ""
}

func containsName(names []string, n string) bool {
	for _, x := range names {
		if x == n {
			return true
		}
	}
	return false
}
