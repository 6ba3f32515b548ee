package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Lin-Jiong-HDU/actionguard/internal/core/audit"
	"github.com/Lin-Jiong-HDU/actionguard/internal/core/confirm"
	"github.com/Lin-Jiong-HDU/actionguard/internal/core/guard"
	"github.com/Lin-Jiong-HDU/actionguard/internal/core/ratelimit"
	"github.com/Lin-Jiong-HDU/actionguard/internal/core/sandbox"
	"github.com/Lin-Jiong-HDU/actionguard/internal/core/security"
	"github.com/Lin-Jiong-HDU/actionguard/internal/logs"
	"github.com/Lin-Jiong-HDU/actionguard/internal/storage"
)

// confirmMode selects how the guard asks for confirmation
type confirmMode int

const (
	// confirmBlocking prompts on the terminal and waits
	confirmBlocking confirmMode = iota
	// confirmChallenge answers with a challenge the caller replies to
	confirmChallenge
	// confirmServer is challenge mode for many principals
	confirmServer
)

// app holds the wired components of one process
type app struct {
	cfg         *storage.Config
	logger      *slog.Logger
	guard       *guard.Guard
	execLimiter *ratelimit.Limiter
	fileLimiter *ratelimit.Limiter
	audit       *audit.Log
	redis       *redis.Client
	challenges  *confirm.ChallengeConfirmer
}

// buildApp wires config, logging, policy, limiters, sandbox, audit and guard.
func buildApp(ctx context.Context, cfg *storage.Config, mode confirmMode, in io.Reader, out io.Writer) (*app, error) {
	controller, err := security.NewSecurityController(&cfg.Security, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid security policy: %w", err)
	}
	scanner := controller.Scanner()

	logger := logs.New(os.Stderr, logs.Options{
		Level:   cfg.Log.Level,
		Journal: cfg.Log.Journal,
		Masker:  scanner,
	})

	a := &app{cfg: cfg, logger: logger}

	execStore, fileStore, err := a.stores(ctx)
	if err != nil {
		return nil, err
	}
	window := cfg.RateLimit.Window()
	a.execLimiter = ratelimit.New(cfg.RateLimit.MaxExecutions, window,
		ratelimit.WithStore(execStore), ratelimit.WithLogger(logger.With("limiter", "exec")))
	if cfg.RateLimit.FileOpsPerWindow > 0 {
		a.fileLimiter = ratelimit.New(cfg.RateLimit.FileOpsPerWindow, window,
			ratelimit.WithStore(fileStore), ratelimit.WithLogger(logger.With("limiter", "files")))
	}
	for _, l := range []*ratelimit.Limiter{a.execLimiter, a.fileLimiter} {
		if l == nil {
			continue
		}
		if err := l.Load(ctx); err != nil {
			// a snapshot we cannot read is not worth refusing to start over
			logger.Warn("rate limiter state not restored", "error", err)
		}
		go l.Sweep(ctx, time.Duration(cfg.RateLimit.SweepIntervalSecs)*time.Second)
	}

	a.audit, err = audit.Open(cfg.AuditLogPath(), scanner)
	if err != nil {
		a.close()
		return nil, err
	}

	a.challenges = confirm.NewChallengeConfirmer(cfg.Confirm.CodeDigits)
	deps := guard.Deps{
		Security:    controller,
		ExecLimiter: a.execLimiter,
		FileLimiter: a.fileLimiter,
		Challenges:  a.challenges,
		Sandbox:     sandbox.New(cfg.Sandbox.MaxSteps, scanner.Mask),
		Audit:       a.audit,
		Logger:      logger,
	}
	if mode == confirmBlocking {
		// the real terminal gets the interactive check
		if in == os.Stdin {
			in = nil
		}
		if out == os.Stdout {
			out = nil
		}
		deps.Blocking = confirm.NewBlockingConfirmer(in, out, cfg.Confirm.CodeDigits)
	}

	a.guard, err = guard.New(deps, guard.Options{
		MaxReadBytes: cfg.Guard.MaxReadBytes,
		ExecTimeout:  cfg.Sandbox.Timeout(),
		AsyncOnly:    mode == confirmServer,
	})
	if err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

// stores picks Redis when configured, otherwise snapshot files in the config dir.
func (a *app) stores(ctx context.Context) (ratelimit.Store, ratelimit.Store, error) {
	rl := a.cfg.RateLimit
	if rl.RedisAddr == "" {
		return ratelimit.NewFileStore(a.cfg.ExecSnapshotPath()), ratelimit.NewFileStore(a.cfg.FileSnapshotPath()), nil
	}

	client, err := ratelimit.NewRedisClient(ctx, rl.RedisAddr)
	if err != nil {
		return nil, nil, err
	}
	a.redis = client
	ttl := 2 * rl.Window()
	return ratelimit.NewRedisStore(client, rl.RedisKeyPrefix+":exec", ttl),
		ratelimit.NewRedisStore(client, rl.RedisKeyPrefix+":files", ttl),
		nil
}

// close flushes limiter state and releases files and connections.
func (a *app) close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var errs []error
	for _, l := range []*ratelimit.Limiter{a.execLimiter, a.fileLimiter} {
		if l != nil {
			errs = append(errs, l.Close(ctx))
		}
	}
	if a.audit != nil {
		errs = append(errs, a.audit.Close())
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	return errors.Join(errs...)
}

// localPrincipal names the user running the CLI.
func localPrincipal() string {
	user := os.Getenv("USER")
	if user == "" {
		user = os.Getenv("USERNAME")
	}
	if user == "" {
		user = "local"
	}
	return guard.PrincipalFor("cli", user)
}
