package security

import (
	"fmt"
	"strings"
)

// ScreenResult is the outcome of screening script code before it runs.
type ScreenResult struct {
	Allowed   bool
	Dangerous bool
	Sensitive bool
	Reason    string
	Detection Detection
}

// SecurityController coordinates the path, content and code checks.
type SecurityController struct {
	policy        *SecurityPolicy
	pathChecker   *PathAccessChecker
	dangerChecker *DangerousCodeChecker
	scanner       *Scanner
}

// NewSecurityController creates a new security controller.
func NewSecurityController(policy *SecurityPolicy, scanner *Scanner) (*SecurityController, error) {
	if policy == nil {
		policy = DefaultPolicy()
	}
	if scanner == nil {
		scanner = NewScanner()
	}
	dangerChecker, err := NewDangerousCodeChecker(policy.DangerousPatterns)
	if err != nil {
		return nil, err
	}
	return &SecurityController{
		policy:        policy,
		pathChecker:   NewPathAccessChecker(policy),
		dangerChecker: dangerChecker,
		scanner:       scanner,
	}, nil
}

// Scanner returns the sensitive data scanner shared by all checks.
func (sc *SecurityController) Scanner() *Scanner {
	return sc.scanner
}

// ClassifyPath classifies a path for the given file operation.
func (sc *SecurityController) ClassifyPath(path string, mode Mode) Classification {
	return sc.pathChecker.Classify(path, mode)
}

// ClassifyWrite classifies a write, escalating to critical when the
// content itself carries sensitive data.
func (sc *SecurityController) ClassifyWrite(path, content string) (Classification, Detection) {
	c := sc.pathChecker.Classify(path, ModeWrite)
	if !c.Allowed {
		return c, Detection{}
	}
	d := sc.scanner.Detect(content)
	if d.HasSensitive && c.Level.Rank() < LevelCritical.Rank() {
		c.Level = LevelCritical
		c.RequiresConfirmation = true
		c.Reason = fmt.Sprintf("content contains sensitive data (%s)", strings.Join(d.Kinds(), ", "))
	}
	return c, d
}

// ClassifyDelete classifies a delete. Deletes never go below critical.
func (sc *SecurityController) ClassifyDelete(path string) Classification {
	c := sc.pathChecker.Classify(path, ModeDelete)
	if c.Allowed && c.Level.Rank() < LevelCritical.Rank() {
		c.Level = LevelCritical
		c.RequiresConfirmation = true
		c.Reason = "permanent deletion requires critical confirmation"
	}
	return c
}

// ScreenCode refuses code containing dangerous patterns or sensitive data.
func (sc *SecurityController) ScreenCode(code string) ScreenResult {
	if reason, dangerous := sc.dangerChecker.Check(code); dangerous {
		return ScreenResult{
			Dangerous: true,
			Reason:    fmt.Sprintf("code contains a dangerous operation: %s", reason),
		}
	}
	d := sc.scanner.Detect(code)
	if d.HasSensitive {
		return ScreenResult{
			Sensitive: true,
			Reason:    fmt.Sprintf("code contains sensitive data (%s)", strings.Join(d.Kinds(), ", ")),
			Detection: d,
		}
	}
	return ScreenResult{Allowed: true}
}
