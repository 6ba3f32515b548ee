package security

// SecurityPolicy defines the path and code screening configuration.
type SecurityPolicy struct {
	// BlockedPaths contains path prefixes that can never be read, written or deleted.
	// Comparison is case-insensitive and on path component boundaries.
	BlockedPaths []string `mapstructure:"blocked_paths"`

	// SensitiveFiles contains filename fragments that mark credential-like files.
	// Reads are blocked; writes and deletes require critical confirmation.
	SensitiveFiles []string `mapstructure:"sensitive_files"`

	// DangerousPatterns are extra regular expressions that refuse code before it runs.
	// They are added on top of the built-in list.
	DangerousPatterns []string `mapstructure:"dangerous_patterns"`
}

// Level is the confirmation tier attached to a decision.
type Level string

const (
	LevelFree     Level = "free"
	LevelWarning  Level = "warning"
	LevelCritical Level = "critical"
	LevelBlocked  Level = "blocked"
)

// Rank orders levels from least to most severe. Unknown levels rank as blocked.
func (l Level) Rank() int {
	switch l {
	case LevelFree:
		return 0
	case LevelWarning:
		return 1
	case LevelCritical:
		return 2
	default:
		return 3
	}
}

// MaxLevel returns the more severe of a and b.
func MaxLevel(a, b Level) Level {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// Mode is the file operation being classified.
type Mode string

const (
	ModeRead   Mode = "read"
	ModeWrite  Mode = "write"
	ModeDelete Mode = "delete"
)

// DefaultBlockedPaths are system locations no action may touch.
var DefaultBlockedPaths = []string{
	`C:\Windows`,
	`C:\Program Files`,
	`C:\Program Files (x86)`,
	`C:\ProgramData`,
	"/etc",
	"/usr",
	"/bin",
	"/sbin",
	"/var",
	"/root",
	"/boot",
	"/proc",
	"/sys",
	"/dev",
}

// DefaultSensitiveFiles are filename fragments of credential and key files.
var DefaultSensitiveFiles = []string{
	".env",
	".env.local",
	".env.production",
	"credentials",
	"secrets",
	".git/config",
	".ssh",
	"id_rsa",
	"id_ed25519",
	".aws/credentials",
	".azure",
	".netrc",
	".pgpass",
	"wallet.dat",
}

// DefaultPolicy returns the default security policy.
func DefaultPolicy() *SecurityPolicy {
	return &SecurityPolicy{
		BlockedPaths:      append([]string(nil), DefaultBlockedPaths...),
		SensitiveFiles:    append([]string(nil), DefaultSensitiveFiles...),
		DangerousPatterns: []string{},
	}
}
