package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Classification is the outcome of classifying a path for an operation.
type Classification struct {
	Allowed              bool
	Level                Level
	Reason               string
	RequiresConfirmation bool
	// Path is the canonical absolute path the decision was made for.
	Path string
}

// PathAccessChecker classifies filesystem paths against the policy tables.
type PathAccessChecker struct {
	blocked   []string
	sensitive []string
}

// NewPathAccessChecker creates a new path checker.
func NewPathAccessChecker(policy *SecurityPolicy) *PathAccessChecker {
	pc := &PathAccessChecker{}
	for _, b := range policy.BlockedPaths {
		if b = strings.TrimSpace(b); b != "" {
			pc.blocked = append(pc.blocked, b)
		}
	}
	for _, s := range policy.SensitiveFiles {
		if s = strings.TrimSpace(s); s != "" {
			pc.sensitive = append(pc.sensitive, strings.ToLower(filepath.ToSlash(s)))
		}
	}
	return pc
}

// Classify decides whether mode may be applied to checkPath and at which tier.
func (pc *PathAccessChecker) Classify(checkPath string, mode Mode) Classification {
	if checkPath == "" || strings.ContainsRune(checkPath, 0) {
		return Classification{Level: LevelBlocked, Reason: "invalid path: empty or contains NUL"}
	}
	switch mode {
	case ModeRead, ModeWrite, ModeDelete:
	default:
		return Classification{Level: LevelBlocked, Reason: fmt.Sprintf("invalid operation: %q", mode)}
	}

	canonical, err := pc.canonicalizePath(checkPath)
	if err != nil {
		return Classification{Level: LevelBlocked, Reason: fmt.Sprintf("cannot resolve path: %v", err)}
	}

	if pc.IsBlocked(canonical) {
		return Classification{
			Level:  LevelBlocked,
			Reason: fmt.Sprintf("access to system location is blocked: %s", canonical),
			Path:   canonical,
		}
	}

	if pc.IsSensitive(canonical) {
		if mode == ModeRead {
			return Classification{
				Level:  LevelBlocked,
				Reason: fmt.Sprintf("sensitive file, read blocked: %s", filepath.Base(canonical)),
				Path:   canonical,
			}
		}
		return Classification{
			Allowed:              true,
			Level:                LevelCritical,
			Reason:               fmt.Sprintf("sensitive file, %s requires critical confirmation", mode),
			RequiresConfirmation: true,
			Path:                 canonical,
		}
	}

	if mode == ModeWrite || mode == ModeDelete {
		return Classification{
			Allowed:              true,
			Level:                LevelWarning,
			Reason:               fmt.Sprintf("%s operation requires confirmation", mode),
			RequiresConfirmation: true,
			Path:                 canonical,
		}
	}

	return Classification{Allowed: true, Level: LevelFree, Path: canonical}
}

// IsBlocked reports whether a canonical path is at or under a blocked prefix.
func (pc *PathAccessChecker) IsBlocked(canonicalPath string) bool {
	target := foldPath(canonicalPath)
	for _, blocked := range pc.blocked {
		candidates := []string{blocked}
		// Prefixes are compared as written and resolved, so /etc still
		// matches when it is a symlink to /private/etc.
		if resolved, err := pc.canonicalizePath(blocked); err == nil && resolved != blocked {
			candidates = append(candidates, resolved)
		}
		for _, c := range candidates {
			prefix := strings.TrimSuffix(foldPath(c), "/")
			if prefix == "" {
				continue
			}
			if target == prefix || strings.HasPrefix(target, prefix+"/") {
				return true
			}
		}
	}
	return false
}

// IsSensitive reports whether the path names a credential-like file.
func (pc *PathAccessChecker) IsSensitive(canonicalPath string) bool {
	full := foldPath(canonicalPath)
	base := strings.ToLower(filepath.Base(canonicalPath))
	for _, s := range pc.sensitive {
		if strings.Contains(base, s) || strings.Contains(full, s) {
			return true
		}
	}
	return false
}

// foldPath lowercases and normalizes separators for prefix comparison.
func foldPath(p string) string {
	return strings.ToLower(strings.ReplaceAll(p, `\`, "/"))
}

// canonicalizePath expands home directory, converts to absolute path,
// and resolves symlinks to prevent bypass via symlink attacks.
func (pc *PathAccessChecker) canonicalizePath(path string) (string, error) {
	expandedPath := path
	if expandedPath == "~" || strings.HasPrefix(expandedPath, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		expandedPath = filepath.Join(home, strings.TrimPrefix(expandedPath, "~"))
	}

	// Abs also cleans . and .. components
	absPath, err := filepath.Abs(expandedPath)
	if err != nil {
		return "", err
	}

	canonicalPath, err := pc.resolveSymlinksWalkUp(absPath)
	if err != nil {
		return absPath, nil
	}
	return canonicalPath, nil
}

// maxLinkHops bounds how many dangling links are followed.
const maxLinkHops = 40

// resolveSymlinksWalkUp walks up the directory tree resolving symlinks
// until we find a path that exists, then rebuilds the path. A dangling
// link is followed to its target, since writing through it creates the
// target.
func (pc *PathAccessChecker) resolveSymlinksWalkUp(path string) (string, error) {
	return pc.resolveWalkUp(path, 0)
}

func (pc *PathAccessChecker) resolveWalkUp(path string, hops int) (string, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err == nil {
		return resolved, nil
	}

	if info, lerr := os.Lstat(path); lerr == nil && info.Mode()&os.ModeSymlink != 0 {
		if hops >= maxLinkHops {
			return "", fmt.Errorf("too many links: %s", path)
		}
		target, err := os.Readlink(path)
		if err != nil {
			return "", err
		}
		if !filepath.IsAbs(target) {
			target = filepath.Join(filepath.Dir(path), target)
		}
		return pc.resolveWalkUp(filepath.Clean(target), hops+1)
	}

	parent := filepath.Dir(path)
	base := filepath.Base(path)

	if parent == path {
		return path, nil
	}

	resolvedParent, err := pc.resolveWalkUp(parent, hops)
	if err != nil {
		return "", err
	}
	return filepath.Join(resolvedParent, base), nil
}
