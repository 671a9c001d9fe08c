package builder

import (
	"bufio"
	"context"
	stdErrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"git.home.luguber.info/inful/buildcore/internal/logfields"
	"git.home.luguber.info/inful/buildcore/internal/model"
	"git.home.luguber.info/inful/buildcore/internal/store"
	"git.home.luguber.info/inful/buildcore/internal/workspace"
)

// CommandBuilder runs a shell script inside the build directory. A non-zero
// exit status finishes the build as FAILED; a script that cannot be started
// is returned as an error.
type CommandBuilder struct {
	builds  store.BuildStore
	layout  *workspace.Layout
	shell   string
	command string
	now     func() time.Time
}

// NewCommandBuilder creates a CommandBuilder. command is resolved against the
// build directory when relative.
func NewCommandBuilder(builds store.BuildStore, layout *workspace.Layout, shell, command string) *CommandBuilder {
	if shell == "" {
		shell = "/bin/sh"
	}
	return &CommandBuilder{
		builds:  builds,
		layout:  layout,
		shell:   shell,
		command: command,
		now:     time.Now,
	}
}

// Execute implements Builder.
func (b *CommandBuilder) Execute(ctx context.Context, build *model.Build, logger *slog.Logger) error {
	if err := build.StartAttempt(b.now()); err != nil {
		return err
	}
	if _, err := b.builds.Save(ctx, build); err != nil {
		return err
	}

	dir, err := b.layout.EnsureBuildDirectory(build)
	if err != nil {
		return err
	}
	script := b.command
	if !filepath.IsAbs(script) {
		script = filepath.Join(dir, script)
	}
	if _, err := os.Stat(script); err != nil {
		return fmt.Errorf("build script: %w", err)
	}

	logger.Info("Running build script", logfields.Path(script))
	started := time.Now()
	exitErr := b.run(ctx, dir, script, build, logger)

	status := model.StatusSuccess
	var ee *exec.ExitError
	switch {
	case exitErr == nil:
	case stdErrors.As(exitErr, &ee):
		status = model.StatusFailed
		logger.Warn("Build script failed", logfields.ExitCode(ee.ExitCode()))
	default:
		return exitErr
	}

	if err := build.Finish(status, b.now()); err != nil {
		return err
	}
	logger.Info("Build finished",
		logfields.BuildStatus(status.String()),
		logfields.DurationMS(time.Since(started)))
	_, err = b.builds.Save(ctx, build)
	return err
}

func (b *CommandBuilder) run(ctx context.Context, dir, script string, build *model.Build, logger *slog.Logger) error {
	cmd := exec.CommandContext(ctx, b.shell, script)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"BUILD_ID="+strconv.FormatInt(build.ID, 10),
		"PROJECT_ID="+strconv.FormatInt(build.ProjectID, 10),
		"BRANCH="+build.Branch,
		"COMMIT_ID="+build.CommitID,
		"ENVIRONMENT="+build.Environment,
		"TAG="+build.Tag,
	)

	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	scanned := make(chan struct{})
	go func() {
		defer close(scanned)
		scanner := bufio.NewScanner(pr)
		for scanner.Scan() {
			logger.Info(scanner.Text())
		}
		_, _ = io.Copy(io.Discard, pr)
	}()

	err := cmd.Run()
	_ = pw.Close()
	<-scanned
	return err
}
