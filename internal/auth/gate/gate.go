// Package gate decides whether a page request may proceed or must detour
// through the intro (sign in) or setup (profile) pages first.
package gate

import (
	"strings"

	"whozin/internal/redirect"
)

const (
	IntroPath = "/intro"
	SetupPath = "/setup"
)

// Profile is what the gate knows about the caller.
type Profile struct {
	Authenticated      bool
	DisplayName        string
	OnboardingComplete bool
}

// Decision is the gate outcome. Location is set when Allowed is false.
type Decision struct {
	Allowed  bool   `json:"allowed"`
	Location string `json:"location"`
}

// Gate routes incomplete sessions to the intro or setup page, carrying the
// current path as a sanitized redirect target.
type Gate struct {
	policy *redirect.Policy
}

func New(policy *redirect.Policy) *Gate {
	if policy == nil {
		policy = redirect.DefaultPolicy()
	}
	return &Gate{policy: policy}
}

// Check evaluates the gate for currentPath (path plus optional query).
func (g *Gate) Check(p Profile, currentPath string) Decision {
	if !p.Authenticated {
		return Decision{Location: g.policy.GateURL(IntroPath, currentPath)}
	}
	path, _, _ := strings.Cut(currentPath, "?")
	if path != SetupPath && (p.DisplayName == "" || !p.OnboardingComplete) {
		return Decision{Location: g.policy.GateURL(SetupPath, currentPath)}
	}
	return Decision{Allowed: true}
}
