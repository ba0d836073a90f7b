// Oddsgate - Real-Time Betting Platform Edge Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/oddsgate

package bus

// Match reports whether s matches a redis glob pattern. Supported syntax is
// the subset redis implements for PSUBSCRIBE: '*' matches any run of
// characters, '?' matches one character, '[a-z]' matches a class (with '^'
// negation) and '\' escapes the next character.
//
// The memory transport needs this to mirror how the production Redis bus
// routes the registered channel-key patterns.
func Match(pattern, s string) bool {
	return matchBytes([]byte(pattern), []byte(s))
}

//nolint:gocyclo // direct port of the redis stringmatchlen state machine
func matchBytes(pattern, s []byte) bool {
	for len(pattern) > 0 {
		switch pattern[0] {
		case '*':
			// Collapse consecutive stars.
			for len(pattern) >= 2 && pattern[1] == '*' {
				pattern = pattern[1:]
			}
			if len(pattern) == 1 {
				return true
			}
			for i := 0; i <= len(s); i++ {
				if matchBytes(pattern[1:], s[i:]) {
					return true
				}
			}
			return false

		case '?':
			if len(s) == 0 {
				return false
			}
			s = s[1:]

		case '[':
			if len(s) == 0 {
				return false
			}
			pattern = pattern[1:]
			negate := len(pattern) > 0 && pattern[0] == '^'
			if negate {
				pattern = pattern[1:]
			}
			matched := false
			for len(pattern) > 0 && pattern[0] != ']' {
				switch {
				case pattern[0] == '\\' && len(pattern) >= 2:
					if pattern[1] == s[0] {
						matched = true
					}
					pattern = pattern[1:]
				case len(pattern) >= 3 && pattern[1] == '-':
					lo, hi := pattern[0], pattern[2]
					if lo > hi {
						lo, hi = hi, lo
					}
					if s[0] >= lo && s[0] <= hi {
						matched = true
					}
					pattern = pattern[2:]
				default:
					if pattern[0] == s[0] {
						matched = true
					}
				}
				pattern = pattern[1:]
			}
			if len(pattern) == 0 {
				// Unterminated class.
				return false
			}
			if negate {
				matched = !matched
			}
			if !matched {
				return false
			}
			s = s[1:]
			// Skip the closing bracket below.

		case '\\':
			if len(pattern) >= 2 {
				pattern = pattern[1:]
			}
			fallthrough

		default:
			if len(s) == 0 || pattern[0] != s[0] {
				return false
			}
			s = s[1:]
		}
		pattern = pattern[1:]
	}
	return len(s) == 0
}
