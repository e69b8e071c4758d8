// Package tasks группирует модели по версиям Revit и формирует файлы
// задания: Task<версия>.txt со списком моделей и tmp.csv для
// pyRevit-скрипта.
//
// Правила распределения версий:
//   - версия не определена → лог «версия не найдена»;
//   - версия выше максимума поддерживаемых → лог «версия выше поддерживаемых»;
//   - версия ниже минимума → используется минимум (старые модели Revit
//     открывает с апгрейдом);
//   - иначе — корзина своей версии.
package tasks

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"exportifc/internal/config"
	"exportifc/internal/revit"
)

// LogBucket копит проблемные кейсы этапа формирования задач; запись
// в txt-логи выполняется снаружи одним вызовом WriteLogs.
type LogBucket struct {
	VersionNotFound []string
	VersionTooNew   []string
}

// WriteLogs сбрасывает накопленные кейсы в датированные логи.
// Строки сортируются для детерминированного вывода.
func (b *LogBucket) WriteLogs(logDir string, now time.Time) error {
	if len(b.VersionNotFound) > 0 {
		sort.Strings(b.VersionNotFound)
		if err := WriteLogLines(logDir, LogVersionNotFound, b.VersionNotFound, now); err != nil {
			return err
		}
	}
	if len(b.VersionTooNew) > 0 {
		sort.Strings(b.VersionTooNew)
		if err := WriteLogLines(logDir, LogVersionTooNew, b.VersionTooNew, now); err != nil {
			return err
		}
	}
	return nil
}

// Manager — корзины моделей по версиям Revit. Не решает, нужна ли
// выгрузка: работает только с уже отфильтрованными моделями.
type Manager struct {
	cfg   config.Config
	Tasks map[int][]*revit.Model
	Logs  LogBucket

	minSupported int
	maxSupported int
}

// NewManager требует непустой список поддерживаемых версий в настройках.
func NewManager(cfg config.Config) (*Manager, error) {
	if len(cfg.RevitVersions) == 0 {
		return nil, fmt.Errorf("revit_versions must not be empty")
	}
	return &Manager{
		cfg:          cfg,
		Tasks:        map[int][]*revit.Model{},
		minSupported: cfg.RevitVersions[0],
		maxSupported: cfg.RevitVersions[len(cfg.RevitVersions)-1],
	}, nil
}

// AddModel раскладывает модель в корзину по её версии (0 — не определена).
func (t *Manager) AddModel(m *revit.Model, version int) {
	if version == 0 {
		t.Logs.VersionNotFound = append(t.Logs.VersionNotFound,
			fmt.Sprintf("%s — у модели не найдена версия Revit", m.RVTPath))
		return
	}
	if version > t.maxSupported {
		t.Logs.VersionTooNew = append(t.Logs.VersionTooNew,
			fmt.Sprintf("%s — версия Revit %d выше поддерживаемых (%d…%d)",
				m.RVTPath, version, t.minSupported, t.maxSupported))
		return
	}
	if version < t.minSupported {
		version = t.minSupported
	}
	t.Tasks[version] = append(t.Tasks[version], m)
}

// Versions — собранные версии по возрастанию.
func (t *Manager) Versions() []int {
	out := make([]int, 0, len(t.Tasks))
	for v := range t.Tasks {
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}

func (t *Manager) sortedModels(version int) []*revit.Model {
	models := make([]*revit.Model, len(t.Tasks[version]))
	copy(models, t.Tasks[version])
	sort.Slice(models, func(i, j int) bool {
		return models[i].RVTPath < models[j].RVTPath
	})
	return models
}

// WriteTaskFiles создаёт Task<версия>.txt по всем собранным версиям:
// одна строка — один путь к модели, версии по возрастанию.
func (t *Manager) WriteTaskFiles() error {
	for _, version := range t.Versions() {
		var sb strings.Builder
		for _, m := range t.sortedModels(version) {
			sb.WriteString(m.RVTPath)
			sb.WriteByte('\n')
		}
		path := t.cfg.TaskPath(version)
		if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
			return fmt.Errorf("write task file %s: %w", path, err)
		}
	}
	return nil
}

// WriteTmpCSV создаёт tmp.csv для указанной версии. Формат строки
// (разделитель ";", без заголовка):
//
//	rvt;out_mapped;mapping_json;family_mapping;out_nomap;nomap_json
//
// Файл пишется с BOM (utf-8-sig): его читает IronPython-скрипт в Revit.
func (t *Manager) WriteTmpCSV(version int) (string, error) {
	path := t.cfg.CSVPath()

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	if _, err := f.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
		return "", fmt.Errorf("write BOM: %w", err)
	}

	w := csv.NewWriter(f)
	w.Comma = ';'
	for _, m := range t.sortedModels(version) {
		rec := []string{
			m.RVTPath,
			m.OutputDirMapped,
			m.MappingJSON,
			m.FamilyMappingFile,
			m.OutputDirNomap,
			m.NomapJSON,
		}
		if err := w.Write(rec); err != nil {
			return "", fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flush %s: %w", path, err)
	}
	return path, nil
}
