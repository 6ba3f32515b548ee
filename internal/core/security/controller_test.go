package security

import (
	"path/filepath"
	"testing"
)

func newTestController(t *testing.T) *SecurityController {
	t.Helper()
	policy := &SecurityPolicy{
		BlockedPaths:   []string{"/etc"},
		SensitiveFiles: DefaultSensitiveFiles,
	}
	controller, err := NewSecurityController(policy, nil)
	if err != nil {
		t.Fatalf("NewSecurityController() error = %v", err)
	}
	return controller
}

func TestSecurityController_ClassifyWrite(t *testing.T) {
	controller := newTestController(t)
	target := filepath.Join(t.TempDir(), "notes.txt")

	t.Run("plain content is a warning", func(t *testing.T) {
		c, d := controller.ClassifyWrite(target, "shopping list: milk, eggs")
		if c.Level != LevelWarning {
			t.Errorf("Expected warning, got %s", c.Level)
		}
		if d.HasSensitive {
			t.Errorf("Expected no detection, got %v", d.Kinds())
		}
	})

	t.Run("sensitive content escalates to critical", func(t *testing.T) {
		c, d := controller.ClassifyWrite(target, "password=hunter2hunter2")
		if c.Level != LevelCritical || !c.RequiresConfirmation {
			t.Errorf("Expected critical with confirmation, got %+v", c)
		}
		if !d.HasSensitive {
			t.Error("Expected detection to be returned")
		}
	})

	t.Run("blocked path is not scanned", func(t *testing.T) {
		c, d := controller.ClassifyWrite("/etc/hosts", "password=hunter2hunter2")
		if c.Level != LevelBlocked || c.Allowed {
			t.Errorf("Expected blocked, got %+v", c)
		}
		if d.HasSensitive {
			t.Error("Expected blocked write to skip content scanning")
		}
	})
}

func TestSecurityController_ClassifyDelete(t *testing.T) {
	controller := newTestController(t)

	tests := []struct {
		name  string
		path  string
		level Level
	}{
		{"normal file", filepath.Join(t.TempDir(), "old.txt"), LevelCritical},
		{"sensitive file", filepath.Join(t.TempDir(), ".env"), LevelCritical},
		{"blocked file", "/etc/passwd", LevelBlocked},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := controller.ClassifyDelete(tt.path)
			if c.Level != tt.level {
				t.Errorf("ClassifyDelete(%s) = %s, want %s", tt.path, c.Level, tt.level)
			}
		})
	}
}

func TestSecurityController_ScreenCode(t *testing.T) {
	controller := newTestController(t)

	tests := []struct {
		name      string
		code      string
		allowed   bool
		dangerous bool
		sensitive bool
	}{
		{"arithmetic", "1 + 1", true, false, false},
		{"loop", "total = 0\nfor i in range(5):\n    total += i", true, false, false},
		{"dangerous", `exec("x")`, false, true, false},
		{"embedded secret", `key = "sk-proj-abcdefghijklmnopqrstuvwxyz012345"`, false, false, true},
		{"dangerous wins over sensitive", `os.system("password=abcdef")`, false, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := controller.ScreenCode(tt.code)
			if r.Allowed != tt.allowed || r.Dangerous != tt.dangerous || r.Sensitive != tt.sensitive {
				t.Errorf("ScreenCode(%q) = %+v", tt.code, r)
			}
			if !r.Allowed && r.Reason == "" {
				t.Error("Expected refusal reason")
			}
		})
	}
}

func TestNewSecurityController_Defaults(t *testing.T) {
	controller, err := NewSecurityController(nil, nil)
	if err != nil {
		t.Fatalf("NewSecurityController(nil, nil) error = %v", err)
	}
	if controller.Scanner() == nil {
		t.Error("Expected default scanner")
	}
	if c := controller.ClassifyPath("/etc/shadow", ModeRead); c.Level != LevelBlocked {
		t.Errorf("Expected default policy to block /etc, got %s", c.Level)
	}
}

func TestNewSecurityController_InvalidPattern(t *testing.T) {
	_, err := NewSecurityController(&SecurityPolicy{DangerousPatterns: []string{"("}}, nil)
	if err == nil {
		t.Error("Expected error for invalid dangerous pattern")
	}
}
