// Package exporter — оркестрация полного цикла выгрузки IFC:
// загрузка manage, проверка актуальности (журнал + IFC на диске),
// группировка по версиям Revit, формирование Task/CSV и запуск pyRevit.
package exporter

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"

	"exportifc/internal/config"
	"exportifc/internal/ifccheck"
	"exportifc/internal/manage"
	"exportifc/internal/revit"
	"exportifc/internal/runner"
	"exportifc/internal/tasks"
)

// Options управляют режимом прогона.
type Options struct {
	// Debug добавляет --debug к вызову pyrevit
	Debug bool
	// DryRun формирует Task/CSV по всем версиям без запуска pyRevit.
	// Журнал выгрузок обновляется и в этом режиме: он фиксирует факт
	// проверки моделей, а актуальность IFC всегда перепроверяется
	// по файлам.
	DryRun bool
}

// HistoryManager — журнал выгрузок с точки зрения оркестратора.
type HistoryManager interface {
	revit.History
	UpdateRecord(m *revit.Model, runID string)
	Save(ctx context.Context) error
}

// Orchestrator — фасадная точка запуска выгрузки.
type Orchestrator struct {
	cfg     config.Config
	opts    Options
	log     *slog.Logger
	history HistoryManager
	checker *ifccheck.Checker
	loader  *manage.Loader
	runner  *runner.Runner

	runID     string
	startedAt time.Time
}

func New(cfg config.Config, opts Options, history HistoryManager, log *slog.Logger) *Orchestrator {
	entropy := ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
	return &Orchestrator{
		cfg:     cfg,
		opts:    opts,
		log:     log.With("component", "exporter"),
		history: history,
		checker: ifccheck.New(log),
		loader:  manage.NewLoader(cfg, log),
		runner: runner.New(cfg.PyRevitScript, opts.Debug,
			time.Duration(cfg.RunTimeoutMinutes)*time.Minute, log),
		runID: ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String(),
	}
}

// RunID — идентификатор текущего прогона; им помечаются записи журнала.
func (o *Orchestrator) RunID() string { return o.runID }

// Run выполняет полный цикл. Ошибки отдельных моделей не прерывают
// прогон: они копятся в txt-логах. Журнал выгрузок сохраняется всегда,
// даже если часть версий завершилась с ошибкой.
//
// Возвращает nil, если ни одна версия не завершилась с ошибкой и журнал
// сохранён.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.startedAt = time.Now()
	o.log.Info("старт прогона", "run_id", o.runID, "dry_run", o.opts.DryRun)

	// 1. Модели из manage.yaml, игнор-лист уже применён загрузчиком.
	res, err := o.loader.Load()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(o.cfg.LogsDir(), 0o755); err != nil {
		return fmt.Errorf("create logs dir: %w", err)
	}

	// 2. Проблемы с mtime моделей — в отдельный txt-лог.
	o.logMtimeIssues(res.MtimeIssues)

	// 3. Решение о необходимости экспорта и группировка по версиям.
	tm, err := tasks.NewManager(o.cfg)
	if err != nil {
		return err
	}
	o.collectExportTasks(res.Models, tm)

	// 4. Task<версия>.txt по всем собранным версиям.
	if err := tm.WriteTaskFiles(); err != nil {
		return err
	}
	o.logTasksSummary(tm)

	// 5. Запуск pyRevit по версиям (или dry-run).
	anyFailures := o.runVersions(ctx, tm)

	// 6. Журнал сохраняем всегда.
	historySaved := true
	if err := o.history.Save(ctx); err != nil {
		historySaved = false
		o.log.Error("не удалось сохранить журнал выгрузок", "error", err)
	}
	if anyFailures && historySaved {
		o.log.Warn("журнал сохранён, но часть версий Revit завершилась с ошибкой; " +
			"актуальность IFC при следующих запусках перепроверяется по файлам")
	}

	// 7. Финализация логов pyRevit-скрипта: один разделитель на прогон.
	if !o.opts.DryRun {
		o.finalizePyrevitLogs()
	}

	// 8. Сводные txt-логи этапа формирования задач.
	if err := tm.Logs.WriteLogs(o.cfg.LogsDir(), o.startedAt); err != nil {
		o.log.Error("не удалось записать txt-логи задач", "error", err)
	}

	if anyFailures || !historySaved {
		return fmt.Errorf("export finished with errors (failures=%v, history_saved=%v)",
			anyFailures, historySaved)
	}
	o.log.Info("прогон завершён без ошибок", "run_id", o.runID)
	return nil
}

func (o *Orchestrator) logMtimeIssues(issues []string) {
	if len(issues) == 0 {
		return
	}
	lines := dedupeSorted(issues)
	if err := tasks.WriteLogLines(o.cfg.LogsDir(), tasks.LogMtimeIssues, lines, o.startedAt); err != nil {
		o.log.Error("не удалось записать лог mtime-проблем", "error", err)
		return
	}
	o.log.Warn("обнаружены проблемы с mtime моделей", "count", len(lines))
}

// collectExportTasks отбирает модели, требующие выгрузки, раскладывает их
// по версиям и обновляет журнал (только для распознанных версий).
func (o *Orchestrator) collectExportTasks(models []*revit.Model, tm *tasks.Manager) {
	toExport := 0
	for _, m := range models {
		if !m.NeedsExport(o.history, o.checker) {
			continue
		}
		toExport++

		m.LoadVersion()
		tm.AddModel(m, m.Version)

		if m.Version != 0 {
			o.history.UpdateRecord(m, o.runID)
		}
	}
	o.log.Info("моделей, требующих проверки/экспорта", "count", toExport)
}

func (o *Orchestrator) logTasksSummary(tm *tasks.Manager) {
	versions := tm.Versions()
	if len(versions) == 0 {
		o.log.Info("нет моделей, требующих экспорта: Task-файлы пусты")
		return
	}
	for _, v := range versions {
		o.log.Info("задание сформировано", "version", v, "models", len(tm.Tasks[v]))
	}
}

// runVersions обрабатывает версии по возрастанию; tmp.csv удаляется
// только при успешном запуске соответствующей версии.
func (o *Orchestrator) runVersions(ctx context.Context, tm *tasks.Manager) bool {
	anyFailures := false
	for _, ver := range tm.Versions() {
		taskFile := o.cfg.TaskPath(ver)
		tmpCSV, err := tm.WriteTmpCSV(ver)
		if err != nil {
			o.log.Error("не удалось записать tmp.csv", "version", ver, "error", err)
			anyFailures = true
			continue
		}

		if o.opts.DryRun {
			// tmp.csv осознанно сохраняем для анализа состава задания.
			o.log.Info("[DRY-RUN] pyrevit не запускается",
				"version", ver, "task", taskFile, "csv", tmpCSV)
			continue
		}

		rc, err := o.runner.RunForVersion(ctx, ver, taskFile)
		if err != nil {
			anyFailures = true
			o.log.Error("не удалось запустить pyrevit", "version", ver, "error", err)
			continue
		}
		if rc != 0 {
			anyFailures = true
			o.log.Error("pyrevit завершился с ошибкой, tmp.csv сохранён для анализа",
				"version", ver, "code", rc, "csv", tmpCSV)
			continue
		}

		if err := os.Remove(tmpCSV); err != nil && !os.IsNotExist(err) {
			o.log.Warn("не удалось удалить tmp.csv", "csv", tmpCSV, "error", err)
		}
		o.log.Info("pyrevit завершился успешно", "version", ver)
	}
	return anyFailures
}

// finalizePyrevitLogs доводит логи 1_/2_/5_ до формата «один прогон —
// один блок»: скрипт в Revit дописывает только строки, разделитель
// ставит оркестратор, и только для логов, затронутых текущим прогоном.
func (o *Orchestrator) finalizePyrevitLogs() {
	names := []string{
		tasks.LogOpeningErrors,
		tasks.FormatLogNameWithView(o.cfg.ExportView3Name),
		tasks.LogExportErrors,
	}
	for _, name := range names {
		if err := tasks.AppendLogSeparator(o.cfg.LogsDir(), name, o.startedAt, o.startedAt); err != nil {
			o.log.Warn("не удалось финализировать лог", "log", name, "error", err)
		}
	}
}

func dedupeSorted(in []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}
