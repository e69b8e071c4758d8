// Package manage читает manage.yaml и превращает его в список моделей
// для выгрузки: по каждой записи сканируется папка с .rvt, проверяются
// конфиги маппинга и создаются выходные директории.
package manage

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"exportifc/internal/config"
	"exportifc/internal/mapping"
	"exportifc/internal/revit"
)

// Entry — одна запись manage.yaml: источник моделей и конфигурация
// выгрузки для них.
type Entry struct {
	// Папка с исходными .rvt
	RVTDir string `yaml:"rvt_dir"`
	// Целевая папка mapped-IFC (создаётся при необходимости)
	OutMappedDir string `yaml:"out_mapped_dir"`
	// Папка с JSON-конфигом маппинга, внутри ожидается IFC_config.json
	MappingDir string `yaml:"mapping_dir"`
	// Имя txt-файла сопоставления категорий (лежит в 01_Export_Layers)
	FamilyMapping string `yaml:"family_mapping"`

	// Сценарий «без маппинга»: обе ячейки либо заполнены, либо пусты
	OutNomapDir string `yaml:"out_nomap_dir,omitempty"`
	NomapJSON   string `yaml:"nomap_json,omitempty"`
}

// fileDoc — структура manage.yaml целиком.
type fileDoc struct {
	Models []Entry  `yaml:"models"`
	Ignore []string `yaml:"ignore"`
}

// Result — итог загрузки: модели, игнор-маски и список проблем с mtime.
type Result struct {
	Models      []*revit.Model
	Ignore      []string
	MtimeIssues []string
}

// Loader собирает модели из manage.yaml. Ничего не пишет, кроме
// создания выходных папок.
type Loader struct {
	cfg config.Config
	log *slog.Logger
}

func NewLoader(cfg config.Config, log *slog.Logger) *Loader {
	return &Loader{cfg: cfg, log: log.With("component", "manage")}
}

// Load читает manage.yaml по пути из настроек. Отсутствие файла —
// ошибка: без него идти дальше нет смысла.
func (l *Loader) Load() (*Result, error) {
	return l.LoadPath(l.cfg.ManagePath())
}

func (l *Loader) LoadPath(path string) (*Result, error) {
	l.log.Info("чтение управляющего списка моделей", "path", path)

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manage file: %w", err)
	}
	var doc fileDoc
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	res := &Result{Ignore: doc.Ignore}

	seen := map[Entry]bool{}
	for i, e := range doc.Models {
		e.normalize()
		if err := e.validate(); err != nil {
			l.log.Warn("запись пропущена из-за неполных данных",
				"index", i, "error", err)
			continue
		}
		if seen[e] {
			l.log.Warn("запись пропущена из-за дублирования конфигурации", "index", i)
			continue
		}
		seen[e] = true

		if err := l.checkEntryConfigs(e); err != nil {
			return nil, err
		}
		if err := l.prepareOutputDirs(e); err != nil {
			return nil, err
		}
		l.collectModels(e, res)
	}

	res.Models = l.filterIgnored(res.Models, res.Ignore)

	l.log.Info("загрузка управляющего списка завершена",
		"models", len(res.Models),
		"ignore", len(res.Ignore),
		"mtime_issues", len(res.MtimeIssues))
	return res, nil
}

func (e *Entry) normalize() {
	e.RVTDir = strings.TrimSpace(e.RVTDir)
	e.OutMappedDir = strings.TrimSpace(e.OutMappedDir)
	e.MappingDir = strings.TrimSpace(e.MappingDir)
	e.FamilyMapping = ensureExt(strings.TrimSpace(e.FamilyMapping), ".txt")
	e.OutNomapDir = strings.TrimSpace(e.OutNomapDir)
	e.NomapJSON = strings.TrimSpace(e.NomapJSON)
	if e.NomapJSON != "" {
		e.NomapJSON = ensureExt(e.NomapJSON, ".json")
	}
}

func (e *Entry) validate() error {
	if e.RVTDir == "" || e.OutMappedDir == "" || e.MappingDir == "" {
		return fmt.Errorf("rvt_dir, out_mapped_dir and mapping_dir are required")
	}
	if e.FamilyMapping == "" {
		return fmt.Errorf("family_mapping is required")
	}
	// Неполная конфигурация nomap-сценария — ошибка: либо обе ячейки,
	// либо ни одной, иначе проверки IFC и задание разойдутся.
	if (e.OutNomapDir == "") != (e.NomapJSON == "") {
		return fmt.Errorf("nomap config is incomplete: both out_nomap_dir and nomap_json must be set")
	}
	return nil
}

// checkEntryConfigs — fail-fast: все конфиги записи обязаны существовать,
// а файл сопоставления категорий — ещё и корректно разбираться.
func (l *Loader) checkEntryConfigs(e Entry) error {
	if err := assertExists(e.RVTDir, "папка с моделями"); err != nil {
		return err
	}
	if err := assertExists(e.mappingJSON(l.cfg), "файл JSON настроек выгрузки с маппингом"); err != nil {
		return err
	}

	famPath := l.cfg.MappingLayersPath(e.FamilyMapping)
	if _, err := mapping.Load(famPath); err != nil {
		return fmt.Errorf("файл маппинга категорий: %w", err)
	}

	if l.cfg.EnableUnmapped && e.NomapJSON != "" {
		if err := assertExists(l.cfg.MappingCommonPath(e.NomapJSON),
			"файл JSON настроек выгрузки без маппинга"); err != nil {
			return err
		}
	}
	return nil
}

func (e Entry) mappingJSON(cfg config.Config) string {
	return filepath.Join(e.MappingDir, cfg.JSONConfigName())
}

func (l *Loader) prepareOutputDirs(e Entry) error {
	if err := os.MkdirAll(e.OutMappedDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if l.cfg.EnableUnmapped && e.OutNomapDir != "" {
		if err := os.MkdirAll(e.OutNomapDir, 0o755); err != nil {
			return fmt.Errorf("create nomap output dir: %w", err)
		}
	}
	return nil
}

// collectModels сканирует папку записи и добавляет в результат модели
// по всем «чистым» .rvt. Порядок детерминирован сортировкой по имени.
func (l *Loader) collectModels(e Entry, res *Result) {
	entries, err := os.ReadDir(e.RVTDir)
	if err != nil {
		l.log.Warn("не удалось прочитать папку с моделями",
			"dir", e.RVTDir, "error", err)
		return
	}

	var names []string
	for _, de := range entries {
		if !de.IsDir() && revit.IsPureRVT(de.Name()) {
			names = append(names, de.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		rvtPath := filepath.Join(e.RVTDir, name)
		mtime, ok := revit.MtimeMinute(rvtPath)
		if !ok {
			res.MtimeIssues = append(res.MtimeIssues,
				fmt.Sprintf("%s — не удалось определить время модификации", rvtPath))
			continue
		}

		m := &revit.Model{
			RVTPath:           rvtPath,
			LastModified:      mtime,
			OutputDirMapped:   e.OutMappedDir,
			MappingJSON:       e.mappingJSON(l.cfg),
			FamilyMappingFile: l.cfg.MappingLayersPath(e.FamilyMapping),
			EnableUnmapped:    l.cfg.EnableUnmapped,
		}
		if l.cfg.EnableUnmapped && e.OutNomapDir != "" {
			m.OutputDirNomap = e.OutNomapDir
			m.NomapJSON = l.cfg.MappingCommonPath(e.NomapJSON)
		}
		res.Models = append(res.Models, m)
	}
}

// filterIgnored убирает модели, чей путь совпадает с игнор-записью:
// точное совпадение или glob-маска (поддерживается **).
func (l *Loader) filterIgnored(models []*revit.Model, ignore []string) []*revit.Model {
	if len(ignore) == 0 {
		return models
	}

	kept := models[:0]
	for _, m := range models {
		if pat, skip := matchIgnore(m.RVTPath, ignore); skip {
			l.log.Info("модель исключена игнор-списком",
				"rvt", m.RVTPath, "pattern", pat)
			continue
		}
		kept = append(kept, m)
	}
	return kept
}

func matchIgnore(path string, patterns []string) (string, bool) {
	// Сопоставление с масками ведём в слэшевой нотации.
	norm := filepath.ToSlash(path)
	for _, pat := range patterns {
		if pat == path || pat == norm {
			return pat, true
		}
		if ok, err := doublestar.Match(filepath.ToSlash(pat), norm); err == nil && ok {
			return pat, true
		}
	}
	return "", false
}

func assertExists(path, what string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("не найден %s: %s: %w", what, path, err)
	}
	return nil
}

// ensureExt добавляет расширение, если его ещё нет (без учёта регистра).
func ensureExt(name, ext string) string {
	if name == "" {
		return name
	}
	if strings.EqualFold(filepath.Ext(name), ext) {
		return name
	}
	return name + ext
}
