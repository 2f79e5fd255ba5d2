package hyperv

import (
	"fmt"
	"regexp"
	"strings"
)

// allowedArg matches the whitelist spec.md §9 requires for any value
// interpolated into a shell command: VM names, paths, and checkpoint
// names. The single quote is the one allowed character that needs
// escaping (escapePS doubles it); anything outside this set is rejected
// outright, since Windows paths and VM names never legitimately need
// shell metacharacters.
var allowedArg = regexp.MustCompile(`^[A-Za-z0-9_.:\\/ '-]+$`)

// escapePS validates s against the whitelist and doubles embedded single
// quotes so it can be safely interpolated inside a single-quoted
// PowerShell string literal. Ported from original_source's escape_ps,
// with the whitelist check added per spec.md §9.
func escapePS(s string) (string, error) {
	if s == "" {
		return "", fmt.Errorf("empty argument")
	}
	if !allowedArg.MatchString(s) {
		return "", fmt.Errorf("argument %q contains characters outside the allowed set", s)
	}
	return strings.ReplaceAll(s, "'", "''"), nil
}

// mustEscapePS is escapePS for call sites that already validated the
// argument (e.g. a VM name the store generated itself) and want to
// treat a whitelist violation as a programming error rather than a
// recoverable one.
func mustEscapePS(s string) string {
	out, err := escapePS(s)
	if err != nil {
		panic(err)
	}
	return out
}
