package security

import "testing"

func TestDangerousCodeChecker_IsDangerous(t *testing.T) {
	checker, err := NewDangerousCodeChecker(nil)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name      string
		code      string
		dangerous bool
	}{
		{"rm -rf", `shell("rm -rf /")`, true},
		{"windows bulk delete", `del /s C:\\temp`, true},
		{"format drive", "format c:", true},
		{"shutdown", "shutdown now", true},
		{"reboot uppercase", "REBOOT", true},
		{"exec call", `exec("print(1)")`, true},
		{"child_process", `require('child_process')`, true},
		{"subprocess", "import subprocess", true},
		{"os.system", `os.system("ls")`, true},
		{"load statement", `load("lib.star", "x")`, true},
		{"arithmetic", "1+1", false},
		{"loop", "for i in range(10):\n    print(i)", false},
		{"word containing exec", "executor = 1", false},
		{"restartable is not restart", "restartable = True", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := checker.IsDangerous(tt.code); got != tt.dangerous {
				t.Errorf("IsDangerous(%q) = %v, want %v", tt.code, got, tt.dangerous)
			}
		})
	}
}

func TestDangerousCodeChecker_ExtraPatterns(t *testing.T) {
	checker, err := NewDangerousCodeChecker([]string{`\bcurl\b`})
	if err != nil {
		t.Fatal(err)
	}

	reason, dangerous := checker.Check("curl http://example.com")
	if !dangerous {
		t.Fatal("Expected configured pattern to match")
	}
	if reason == "" {
		t.Error("Expected a reason for the match")
	}
}

func TestDangerousCodeChecker_InvalidPattern(t *testing.T) {
	if _, err := NewDangerousCodeChecker([]string{"("}); err == nil {
		t.Error("Expected error for invalid pattern")
	}
}
