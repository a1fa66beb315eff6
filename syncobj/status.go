// -*- Mode: Go; indent-tabs-mode: t -*-

/*
 * Copyright (C) 2025 Camcore Ltd
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License version 3 as
 * published by the Free Software Foundation.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 *
 */

package syncobj

import (
	"fmt"
)

// Status is the current state of a sync object.
//
// Transitions are monotonic: StatusActive may move to StatusSuccess or
// StatusFailure, and a signaled object moves to StatusInvalid only when it
// is destroyed. Nothing ever transitions back to StatusActive.
type Status int

const (
	// StatusInvalid is the state of an uninitialized or destroyed slot.
	StatusInvalid Status = iota

	// StatusActive means the object was created and not yet signaled.
	StatusActive

	// StatusSuccess means the object was signaled with success.
	StatusSuccess

	// StatusFailure means the object was signaled with failure.
	StatusFailure
)

// Ready returns whether the object has reached a terminal signaled state.
func (s Status) Ready() bool {
	return s == StatusSuccess || s == StatusFailure
}

func (s Status) String() string {
	switch s {
	case StatusInvalid:
		return "Invalid"
	case StatusActive:
		return "Active"
	case StatusSuccess:
		return "Success"
	case StatusFailure:
		return "Failure"
	}
	panic(fmt.Sprintf("internal error: unknown sync object status code: %d", s))
}
