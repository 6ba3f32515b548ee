package security

import (
	"fmt"
	"regexp"
)

// dangerRule pairs a compiled pattern with the reason reported on match.
type dangerRule struct {
	pattern *regexp.Regexp
	reason  string
}

// builtinDangerRules lists deletion, process spawning, shutdown and
// dynamic loading primitives. Matching is textual and case-insensitive.
var builtinDangerRules = []struct {
	pattern string
	reason  string
}{
	{`\brm\s+-[a-z]*[rf]`, "recursive or forced deletion"},
	{`\bdel\s+/[sq]\b`, "bulk deletion"},
	{`\bformat\s+[a-z]:`, "disk format"},
	{`\bmkfs(\.\w+)?\b`, "filesystem creation"},
	{`\bdd\s+if=`, "raw disk copy"},
	{`\b(shutdown|restart|reboot|halt|poweroff)\b`, "shutdown primitive"},
	{`\bkill\s+-9\b`, "process kill"},
	{`\bexec\s*\(`, "dynamic execution"},
	{`\beval\s*\(`, "dynamic evaluation"},
	{`child_process`, "process spawning"},
	{`\bsubprocess\b`, "process spawning"},
	{`\bos\.(system|popen|remove|unlink|rmdir|kill)\b`, "operating system call"},
	{`\b(spawn|fork|popen)\s*\(`, "process spawning"},
	{`\b(unlink|rmtree|rmdir)\s*\(`, "deletion primitive"},
	{`\brequire\s*\(`, "module loading"},
	{`__import__`, "module loading"},
	{`\bload\s*\(`, "module loading"},
}

// DangerousCodeChecker refuses code that contains dangerous textual patterns.
type DangerousCodeChecker struct {
	rules []dangerRule
}

// NewDangerousCodeChecker compiles the built-in rules plus any extra patterns.
func NewDangerousCodeChecker(extra []string) (*DangerousCodeChecker, error) {
	dc := &DangerousCodeChecker{}
	for _, r := range builtinDangerRules {
		dc.rules = append(dc.rules, dangerRule{
			pattern: regexp.MustCompile(`(?i)` + r.pattern),
			reason:  r.reason,
		})
	}
	for _, p := range extra {
		re, err := regexp.Compile(`(?i)` + p)
		if err != nil {
			return nil, fmt.Errorf("invalid dangerous pattern %q: %w", p, err)
		}
		dc.rules = append(dc.rules, dangerRule{pattern: re, reason: "configured dangerous pattern"})
	}
	return dc, nil
}

// Check returns the reason of the first matching rule.
func (dc *DangerousCodeChecker) Check(code string) (string, bool) {
	for _, r := range dc.rules {
		if r.pattern.MatchString(code) {
			return r.reason, true
		}
	}
	return "", false
}

// IsDangerous checks if code matches any dangerous pattern.
func (dc *DangerousCodeChecker) IsDangerous(code string) bool {
	_, dangerous := dc.Check(code)
	return dangerous
}
