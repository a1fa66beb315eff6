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

// Package strutil collects small string helpers.
package strutil

import (
	"strconv"
	"strings"
)

// Quoted formats a slice of strings to a quoted list of
// comma-separated strings, e.g. `"one", "two"`
func Quoted(names []string) string {
	quoted := make([]string, len(names))
	for i, name := range names {
		quoted[i] = strconv.Quote(name)
	}

	return strings.Join(quoted, ", ")
}

// ListContains determines whether the given string is contained in the
// given list of strings.
func ListContains(list []string, str string) bool {
	for _, k := range list {
		if k == str {
			return true
		}
	}
	return false
}

// ElliptRight returns a string that is at most n runes long,
// replacing the last rune with an ellipsis if necessary.
func ElliptRight(str string, n int) string {
	if n < 1 {
		panic("can't not truncate to zero characters")
	}
	rstr := []rune(str)
	if len(rstr) <= n {
		return str
	}

	return string(rstr[:n-1]) + "…"
}
