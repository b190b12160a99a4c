// SPDX-License-Identifier: MIT
// Copyright (c) 2026 Henrik Olsson

package rurp

import (
	"strconv"
	"strings"
)

// VersionAtLeast compares dotted firmware version strings, treating an "x"
// component as a wildcard that satisfies any requirement ("2.0.x" >= "2.0.4").
// Unparseable versions compare as insufficient.
func VersionAtLeast(current, required string) bool {
	cur, ok := parseVersion(current)
	if !ok {
		return false
	}
	req, ok := parseVersion(required)
	if !ok {
		return false
	}
	for len(cur) < len(req) {
		cur = append(cur, 0)
	}
	for i := range req {
		if cur[i] > req[i] {
			return true
		}
		if cur[i] < req[i] {
			return false
		}
	}
	return true
}

func parseVersion(v string) ([]int, bool) {
	v = strings.TrimPrefix(strings.TrimSpace(v), "v")
	parts := strings.Split(v, ".")
	if len(parts) == 0 {
		return nil, false
	}
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		if strings.EqualFold(p, "x") {
			// Wildcard component, counts as arbitrarily high
			out = append(out, 999)
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, false
		}
		out = append(out, n)
	}
	return out, true
}
