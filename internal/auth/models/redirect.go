package models

import "whozin/internal/auth/gate"

// RedirectRequest stashes a post-auth destination before an OAuth hop.
type RedirectRequest struct {
	Redirect string `json:"redirect"`
}

// RedirectResponse carries a sanitized destination.
type RedirectResponse struct {
	Redirect string `json:"redirect"`
}

// GateResponse is the auth gate outcome for a page path.
type GateResponse = gate.Decision
