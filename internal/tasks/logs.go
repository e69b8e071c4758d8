package tasks

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Базовые имена txt-логов. Нумерация задаёт порядок просмотра в папке.
const (
	LogOpeningErrors       = "1_errors_when_opening_models"
	logMissingViewTemplate = "2_not_view_$$$_in_models"
	LogVersionNotFound     = "3_not_found_versions"
	LogVersionTooNew       = "4_not_supported_versions"
	LogExportErrors        = "5_export_errors"
	LogMtimeIssues         = "6_mtime_issues"
)

// LogSeparator завершает блок записей одного запуска.
const LogSeparator = "--------------------------------------------------"

const logDateFormat = "2006.01.02"

// FormatLogNameWithView подставляет имя 3D-вида в шаблон лога
// «модели без вида». Шаблон без "$$$" возвращается как есть.
func FormatLogNameWithView(viewName string) string {
	return strings.ReplaceAll(logMissingViewTemplate, "$$$", viewName)
}

// buildLogPath — "<base>_<YYYY.MM.DD>.txt" в папке логов.
func buildLogPath(logDir, baseName string, now time.Time) string {
	name := fmt.Sprintf("%s_%s.txt", baseName, now.Format(logDateFormat))
	return filepath.Join(logDir, name)
}

// WriteLogLines дописывает строки в датированный txt-лог и завершает блок
// разделителем. Папка логов создаётся при необходимости.
func WriteLogLines(logDir, baseName string, lines []string, now time.Time) error {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}

	path := buildLogPath(logDir, baseName, now)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log %s: %w", path, err)
	}
	defer f.Close()

	var sb strings.Builder
	for _, line := range lines {
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	sb.WriteString(LogSeparator)
	sb.WriteByte('\n')

	if _, err := f.WriteString(sb.String()); err != nil {
		return fmt.Errorf("write log %s: %w", path, err)
	}
	return nil
}

// AppendLogSeparator дописывает разделитель в конец существующего
// датированного лога. Используется для логов pyRevit-скрипта, куда строки
// дописываются из другого процесса, а разделитель ставится один раз
// на запуск. Файл не трогается, если его нет или он не менялся после
// since (лог не затронут текущим прогоном).
func AppendLogSeparator(logDir, baseName string, now, since time.Time) error {
	path := buildLogPath(logDir, baseName, now)
	st, err := os.Stat(path)
	if err != nil {
		return nil
	}
	if !since.IsZero() && st.ModTime().Before(since) {
		return nil
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log %s: %w", path, err)
	}
	defer f.Close()

	if _, err := f.WriteString(LogSeparator + "\n"); err != nil {
		return fmt.Errorf("write log %s: %w", path, err)
	}
	return nil
}
