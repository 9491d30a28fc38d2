package domain

import "errors"

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrNodeNotFound is returned when a node id does not resolve in the tree (broken tree).
var ErrNodeNotFound = errors.New("node not found")

// ErrExit is returned by GoBack on an empty history: the caller should leave the wizard.
var ErrExit = errors.New("exit wizard")

// ErrInvalidOption is returned in strict mode when the chosen option is not offered by the current question.
var ErrInvalidOption = errors.New("option not offered by current question")

// ErrUnauthenticated is returned when no caller identity could be established.
var ErrUnauthenticated = errors.New("unauthenticated")

// ErrForbidden is returned when the caller lacks the admin role.
var ErrForbidden = errors.New("forbidden")

// ErrNotPaid is returned when an invoice ends in any status other than paid.
var ErrNotPaid = errors.New("payment not completed")

// ErrPurchaseNotFound is returned when a purchase id is unknown.
var ErrPurchaseNotFound = errors.New("purchase not found")

// ErrNoOverride is returned by a TreeStore holding no admin override.
var ErrNoOverride = errors.New("no tree override")
