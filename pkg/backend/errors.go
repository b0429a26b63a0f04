// Copyright 2024-2026 Aiku AI

package backend

import "fmt"

// UnresolvedIdentifierError is returned when a textual reference matches none
// of the accepted forms (@user, ~channel, raw ID) or the platform lookup
// returns nothing.
type UnresolvedIdentifierError struct {
	Ref string
	Err error
}

func (e *UnresolvedIdentifierError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cannot resolve identifier %q: %v", e.Ref, e.Err)
	}
	return fmt.Sprintf("cannot resolve identifier %q", e.Ref)
}

func (e *UnresolvedIdentifierError) Unwrap() error {
	return e.Err
}

// UserNotFoundError is returned when a username or user ID does not exist on
// the platform.
type UserNotFoundError struct {
	Name string
	Err  error
}

func (e *UserNotFoundError) Error() string {
	return fmt.Sprintf("user %q not found: %v", e.Name, e.Err)
}

func (e *UserNotFoundError) Unwrap() error {
	return e.Err
}

// RoomNotFoundError is returned when a channel cannot be found or a direct
// channel cannot be opened.
type RoomNotFoundError struct {
	Room string
	Err  error
}

func (e *RoomNotFoundError) Error() string {
	return fmt.Sprintf("room %q not found: %v", e.Room, e.Err)
}

func (e *RoomNotFoundError) Unwrap() error {
	return e.Err
}

// RoomOperationError wraps a platform failure during a room mutation such as
// create, join, leave, destroy or invite.
type RoomOperationError struct {
	Op   string
	Room string
	Err  error
}

func (e *RoomOperationError) Error() string {
	return fmt.Sprintf("room %s %q: %v", e.Op, e.Room, e.Err)
}

func (e *RoomOperationError) Unwrap() error {
	return e.Err
}
