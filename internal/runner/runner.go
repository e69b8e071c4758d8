// Package runner запускает pyRevit CLI:
//
//	pyrevit run <script> --models Task<версия>.txt --revit <версия> [--debug]
//
// Вывод процесса стримится построчно в лог; код возврата процесса
// возвращается вызывающему (0 — успех).
package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"
)

// Runner — исполнитель вызовов pyRevit CLI.
type Runner struct {
	// Путь к скрипту, выполняемому внутри Revit
	Script string
	// Добавляет --debug к команде
	Debug bool
	// Таймаут одного запуска; 0 — без таймаута
	Timeout time.Duration

	log *slog.Logger
}

func New(script string, debug bool, timeout time.Duration, log *slog.Logger) *Runner {
	return &Runner{
		Script:  script,
		Debug:   debug,
		Timeout: timeout,
		log:     log.With("component", "pyrevit"),
	}
}

// Args собирает аргументы команды для версии и файла задания.
func (r *Runner) Args(version int, taskFile string) []string {
	args := []string{
		"run", r.Script,
		"--models", taskFile,
		"--revit", strconv.Itoa(version),
	}
	if r.Debug {
		args = append(args, "--debug")
	}
	return args
}

// Env формирует окружение дочернего процесса: к текущему окружению
// добавляется EXPORTIFC_ROOT и корень скрипта в начале PYTHONPATH и
// IRONPYTHONPATH — IronPython внутри pyRevit должен видеть код проекта.
func (r *Runner) Env() []string {
	root := filepath.Dir(r.Script)

	merge := func(key string) string {
		prev := os.Getenv(key)
		if prev == "" {
			return root
		}
		return root + string(os.PathListSeparator) + prev
	}

	env := os.Environ()
	env = append(env,
		"EXPORTIFC_ROOT="+root,
		"PYTHONPATH="+merge("PYTHONPATH"),
		"IRONPYTHONPATH="+merge("IRONPYTHONPATH"),
	)
	return env
}

// streamOutput построчно переносит вывод процесса в лог. Возвращает
// ошибку сканера: строка длиннее буфера или сбой чтения из пайпа.
func (r *Runner) streamOutput(rd io.Reader) error {
	sc := bufio.NewScanner(rd)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		r.log.Info(sc.Text())
	}
	return sc.Err()
}

// RunForVersion запускает pyRevit для версии Revit и ждёт завершения.
// Возвращает код возврата процесса и ошибку запуска (если процесс
// вообще не стартовал).
func (r *Runner) RunForVersion(ctx context.Context, version int, taskFile string) (int, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, "pyrevit", r.Args(version, taskFile)...)
	cmd.Env = r.Env()

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return -1, fmt.Errorf("pyrevit stdout pipe: %w", err)
	}
	cmd.Stderr = cmd.Stdout

	r.log.Info("запуск pyrevit", "version", version, "task", taskFile)
	if err := cmd.Start(); err != nil {
		return -1, fmt.Errorf("start pyrevit: %w", err)
	}

	if err := r.streamOutput(stdout); err != nil {
		// Процесс продолжает работать, но его вывод больше не читается
		r.log.Warn("чтение вывода pyrevit прервано", "err", err)
	}

	err = cmd.Wait()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		r.log.Warn("pyrevit завершился с ошибкой",
			"version", version, "code", exitErr.ExitCode())
		return exitErr.ExitCode(), nil
	}
	return -1, fmt.Errorf("wait pyrevit: %w", err)
}
