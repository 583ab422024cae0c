// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package guestfs

import (
	"errors"
	"fmt"
)

// Errors returned by the Handle.
var (
	ErrInvalidState      = errors.New("operation is not valid in this state")
	ErrAlreadyAttached   = errors.New("a drive is already attached")
	ErrUndecodable       = errors.New("container header is corrupt, no flat disk view can be derived")
	ErrUnknownFilesystem = errors.New("no such filesystem")
	ErrAlreadyMounted    = errors.New("filesystem is already mounted")
	ErrNotMounted        = errors.New("filesystem is not mounted")
)

// StateError is returned when a Handle operation is called out of lifecycle order.
type StateError struct {
	Op    string
	State State
	Err   error
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s in state %s: %s", e.Op, e.State, e.Err)
}

func (e *StateError) Unwrap() error {
	return e.Err
}

func stateError(op string, state State) *StateError {
	return &StateError{Op: op, State: state, Err: ErrInvalidState}
}
