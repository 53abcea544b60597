// Package postcmd interprets a manifest's post-install command strings: a
// restricted Windows shell vocabulary limited to file deletion and rename
// (C13, §4.12).
package postcmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/woozymasta/pathrules"

	"github.com/ttw-community/mpi-installer/pkg/manifest"
	"github.com/ttw-community/mpi-installer/pkg/resolver"
)

// Action is the recognized command kind.
type Action int

const (
	ActionUnrecognized Action = iota
	ActionDelete
	ActionRename
)

// Parsed is one interpreted post-command.
type Parsed struct {
	Action Action
	Path   string // del target, or ren source
	NewPath string // ren destination only
}

// Parse expands variables in cmd.Command and interprets the trailing
// payload after "cmd.exe /C". Only "del <path>" and "ren <old> <new>" are
// recognized; anything else is ActionUnrecognized (§4.12).
func Parse(r *resolver.Resolver, cmd manifest.PostCommand) (Parsed, error) {
	expanded := r.ResolvePath(cmd.Command)

	idx := strings.Index(expanded, "cmd.exe")
	if idx < 0 {
		return Parsed{Action: ActionUnrecognized}, nil
	}
	rest := expanded[idx+len("cmd.exe"):]

	rest = strings.TrimSpace(rest)
	if !strings.HasPrefix(rest, "/C") {
		return Parsed{Action: ActionUnrecognized}, nil
	}
	payload := strings.TrimSpace(strings.TrimPrefix(rest, "/C"))

	tokens, err := tokenize(payload)
	if err != nil {
		return Parsed{}, fmt.Errorf("postcmd: tokenize payload: %w", err)
	}
	if len(tokens) == 0 {
		return Parsed{Action: ActionUnrecognized}, nil
	}

	switch strings.ToLower(tokens[0]) {
	case "del":
		if len(tokens) < 2 {
			return Parsed{Action: ActionUnrecognized}, nil
		}
		return Parsed{Action: ActionDelete, Path: tokens[1]}, nil
	case "ren":
		if len(tokens) < 3 {
			return Parsed{Action: ActionUnrecognized}, nil
		}
		return Parsed{Action: ActionRename, Path: tokens[1], NewPath: tokens[2]}, nil
	default:
		return Parsed{Action: ActionUnrecognized}, nil
	}
}

// tokenize splits payload on space characters, honoring double-quoted
// segments.
func tokenize(payload string) ([]string, error) {
	var tokens []string
	var cur strings.Builder
	inQuotes := false

	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}

	for _, r := range payload {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case r == ' ' && !inQuotes:
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	if inQuotes {
		return nil, fmt.Errorf("unterminated quoted path")
	}
	flush()
	return tokens, nil
}

// safetyMatcher restricts del/ren operands to paths rooted under one of
// the configured roots, refusing to touch anything outside them even if
// a manifest tries to point a command elsewhere.
type safetyMatcher struct {
	matcher *pathrules.Matcher
}

// newSafetyMatcher builds a matcher allowing only paths under one of
// roots. Post-commands normally operate against a game's Data directory,
// not just the install destination (§3), so every configured root must
// be included, not destRoot alone.
func newSafetyMatcher(roots []string) (*safetyMatcher, error) {
	rules := make([]pathrules.Rule, 0, len(roots))
	for _, root := range roots {
		if root == "" {
			continue
		}
		clean := filepath.ToSlash(filepath.Clean(root))
		rules = append(rules, pathrules.Rule{Action: pathrules.ActionInclude, Pattern: clean + "/**"})
	}
	m, err := pathrules.NewMatcher(rules, pathrules.MatcherOptions{CaseInsensitive: true, DefaultAction: pathrules.ActionExclude})
	if err != nil {
		return nil, fmt.Errorf("postcmd: compile safety rules: %w", err)
	}
	return &safetyMatcher{matcher: m}, nil
}

func (s *safetyMatcher) allowed(path string) bool {
	return s.matcher.Included(filepath.ToSlash(filepath.Clean(path)), false)
}

// Execute runs every post-command in order, refusing any operand that
// falls outside one of roots (the install destination plus every
// configured game root and data directory). Unrecognized payloads count
// as failures without raising; del of an absent path silently succeeds
// (§4.12).
func Execute(r *resolver.Resolver, roots []string, cmds []manifest.PostCommand) (failures int, err error) {
	safety, err := newSafetyMatcher(roots)
	if err != nil {
		return 0, err
	}

	for _, cmd := range cmds {
		parsed, err := Parse(r, cmd)
		if err != nil {
			failures++
			continue
		}
		if !runOne(safety, parsed) {
			failures++
		}
	}
	return failures, nil
}

func runOne(safety *safetyMatcher, p Parsed) bool {
	switch p.Action {
	case ActionDelete:
		if !safety.allowed(p.Path) {
			return false
		}
		if err := os.Remove(p.Path); err != nil && !os.IsNotExist(err) {
			return false
		}
		return true
	case ActionRename:
		target := filepath.Join(filepath.Dir(p.Path), filepath.Base(p.NewPath))
		if !safety.allowed(p.Path) || !safety.allowed(target) {
			return false
		}
		if err := os.Rename(p.Path, target); err != nil {
			return false
		}
		return true
	default:
		return false
	}
}
