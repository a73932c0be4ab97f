// Package policy implements the broker's command deny/allow filter and the
// random token/path generators used by the setup handshake.
//
// The two-layer shape — a deny list that always wins, then an allow list
// that bounds what's left — follows the same "reject first, then check
// admission" pipeline the teacher applies to peer messages in
// node/p2p/peer.go (ban-score rejection ahead of command dispatch), and the
// path-safety convention of node/safeio.go (reject traversal before trusting
// a name).
package policy

import "strings"

// denySubstrings are checked first; a match rejects the command outright
// regardless of its leading word, per spec.md §4.2.
var denySubstrings = []string{
	"`", "$(", ";", "&&", "||", "|", ">", "<",
	"rm -rf /", "..", "sudo", "chmod 777", "/etc", "/root",
	"mkfifo", "nc ", "curl", "wget", "bash -i", "sh -i", "python -c", "perl -e",
}

// allowedCommands are the only first words permitted once the deny check
// passes.
var allowedCommands = map[string]struct{}{
	"ls": {}, "cd": {}, "pwd": {}, "cat": {}, "echo": {}, "find": {},
	"grep": {}, "head": {}, "tail": {}, "file": {}, "stat": {}, "wc": {},
	"openssl": {},
}

// CheckCommand reports whether s may be forwarded to a peer: it must contain
// no deny-list substring, and its first whitespace-delimited word must be in
// the allow list. The deny check takes precedence — a command can match the
// allow list and still be rejected by the deny list.
func CheckCommand(s string) bool {
	if HasDenySubstring(s) {
		return false
	}
	if isAbsoluteOutsideHome(s) {
		return false
	}
	first := firstWord(s)
	if first == "" {
		return false
	}
	_, ok := allowedCommands[first]
	return ok
}

// HasDenySubstring reports whether s contains any shell-escape substring
// from the deny list, independent of the allow-list/first-word check. The
// setup handshake's broker-composed flag-write command (an echo/redirect
// that is legitimately outside the CMD allow list and legitimately targets
// a path outside /home) is re-validated with this narrower check alone —
// it exists to catch an attacker-controlled directory path smuggling a
// shell escape into the composed command, not to re-run the general CMD
// policy against administrative commands the broker itself builds.
func HasDenySubstring(s string) bool {
	for _, bad := range denySubstrings {
		if strings.Contains(s, bad) {
			return true
		}
	}
	return false
}

// CheckPath reports whether a client-reported directory path is safe to
// interpolate, unquoted, into the broker-composed flag-write command. It
// follows the same reject-traversal-before-trust convention as the
// teacher's node/safeio.go path helpers, adapted from a filename check to a
// shell-interpolation check: no whitespace or quoting/escape characters, no
// ".." traversal, and must be absolute.
func CheckPath(p string) bool {
	if p == "" || !strings.HasPrefix(p, "/") {
		return false
	}
	if strings.Contains(p, "..") {
		return false
	}
	if strings.ContainsAny(p, " \t\r\n'\"`$;&|<>(){}") {
		return false
	}
	return true
}

// confinedRoots are the only absolute-path prefixes a CMD argument may
// target: /home (spec.md §4.2) and /tmp, where every flag directory
// actually lives (policy.RandomPath), so an opponent's directory can be
// explored at all per spec.md §8 scenario 1.
var confinedRoots = []string{"/home", "/tmp"}

// isAbsoluteOutsideHome rejects any absolute path argument outside the
// confined roots. The match is on path boundaries, not bare string
// prefixes, so a sibling directory like /tmpfs-secrets or /homeopath
// does not count as confined just because it shares its first few
// characters with /tmp or /home.
func isAbsoluteOutsideHome(s string) bool {
	for _, field := range strings.Fields(s) {
		if !strings.HasPrefix(field, "/") {
			continue
		}
		confined := false
		for _, root := range confinedRoots {
			if field == root || strings.HasPrefix(field, root+"/") {
				confined = true
				break
			}
		}
		if !confined {
			return true
		}
	}
	return false
}

func firstWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
