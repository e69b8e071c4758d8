package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Имена служебных файлов внутри admin_data.
const (
	ManageName  = "manage"  // manage.yaml — управляющий список моделей
	HistoryName = "history" // history.db — журнал выгрузок
	TmpName     = "tmp"     // tmp.csv — задание для pyRevit-скрипта
)

type Config struct {
	// Базовые директории
	AdminDataDir    string `yaml:"admin_data_dir"`
	ExportConfigDir string `yaml:"export_config_dir"`

	// Режимы работы
	ProdMode       bool `yaml:"prod_mode"`
	EnableUnmapped bool `yaml:"enable_unmapped"`

	// Revit
	RevitVersions   []int  `yaml:"revit_versions"`
	ExportView3Name string `yaml:"export_view3d_name"`

	// Подпапки маппинга внутри export_config_dir
	MappingCommonDir string `yaml:"mapping_common_dir"`
	MappingLayersDir string `yaml:"mapping_layers_dir"`

	// Имя JSON-файла настроек выгрузки (без расширения)
	ConfigJSON string `yaml:"config_json"`

	// Скрипт, запускаемый через pyrevit run
	PyRevitScript string `yaml:"pyrevit_script"`

	// Таймаут одного запуска pyRevit в минутах; 0 — без таймаута
	RunTimeoutMinutes int `yaml:"run_timeout_minutes"`
}

func def() Config {
	return Config{
		AdminDataDir:    "admin_data",
		ExportConfigDir: "export_config",

		ProdMode:       false,
		EnableUnmapped: false,

		RevitVersions:   nil,
		ExportView3Name: "Navisworks",

		MappingCommonDir: "00_Common",
		MappingLayersDir: "01_Export_Layers",

		ConfigJSON:    "IFC_config",
		PyRevitScript: "ExportIFC.py",

		RunTimeoutMinutes: 0,
	}
}

func loadYAML(path string) (Config, error) {
	c := def()
	b, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return c, fmt.Errorf("parse %s: %w", path, err)
	}
	return c, nil
}

func getenv(k, fallback string) string {
	if v, ok := os.LookupEnv(k); ok && strings.TrimSpace(v) != "" {
		return v
	}
	return fallback
}

func getenvBool(k string, fallback bool) bool {
	if v, ok := os.LookupEnv(k); ok {
		v = strings.TrimSpace(strings.ToLower(v))
		if v == "1" || v == "true" || v == "yes" {
			return true
		}
		if v == "0" || v == "false" || v == "no" {
			return false
		}
	}
	return fallback
}

// LoadWithPath читает settings.yaml по указанному пути, затем применяет
// ENV-переопределения и нормализует результат. Отсутствующий файл —
// ошибка: без настроек запуск не имеет смысла.
func LoadWithPath(path string) (Config, error) {
	cfg, err := loadYAML(path)
	if err != nil {
		return cfg, fmt.Errorf("load settings: %w", err)
	}

	// ENV overrides
	cfg.AdminDataDir = getenv("EXPORTIFC_ADMIN_DATA", cfg.AdminDataDir)
	cfg.ExportConfigDir = getenv("EXPORTIFC_EXPORT_CONFIG", cfg.ExportConfigDir)
	cfg.ProdMode = getenvBool("EXPORTIFC_PROD_MODE", cfg.ProdMode)
	cfg.EnableUnmapped = getenvBool("EXPORTIFC_ENABLE_UNMAPPED", cfg.EnableUnmapped)
	cfg.PyRevitScript = getenv("EXPORTIFC_SCRIPT", cfg.PyRevitScript)

	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// normalize приводит список версий к каноническому виду:
// сортировка по возрастанию, без дубликатов.
func (c *Config) normalize() {
	seen := map[int]bool{}
	var versions []int
	for _, v := range c.RevitVersions {
		if !seen[v] {
			seen[v] = true
			versions = append(versions, v)
		}
	}
	sort.Ints(versions)
	c.RevitVersions = versions
}

// Validate проверяет обязательные параметры и существование базовых папок.
func (c *Config) Validate() error {
	if len(c.RevitVersions) == 0 {
		return fmt.Errorf("revit_versions must not be empty")
	}
	if err := assertDir(c.ExportConfigDir, "export_config_dir"); err != nil {
		return err
	}
	if err := assertDir(c.AdminDataDir, "admin_data_dir"); err != nil {
		return err
	}
	return nil
}

func assertDir(path, name string) error {
	st, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%s = %q does not exist: %w", name, path, err)
	}
	if !st.IsDir() {
		return fmt.Errorf("%s = %q is not a directory", name, path)
	}
	return nil
}

// ------------------------- производные пути -------------------------

// LogsDir — папка txt-логов внутри admin_data.
func (c *Config) LogsDir() string {
	return filepath.Join(c.AdminDataDir, "_logs")
}

// HistoryDir — папка журнала выгрузок внутри admin_data.
func (c *Config) HistoryDir() string {
	return filepath.Join(c.AdminDataDir, HistoryName)
}

// HistoryDBPath — путь к базе журнала выгрузок.
func (c *Config) HistoryDBPath() string {
	return filepath.Join(c.HistoryDir(), HistoryName+".db")
}

// ManagePath — путь к управляющему списку моделей.
func (c *Config) ManagePath() string {
	return filepath.Join(c.AdminDataDir, ManageName+".yaml")
}

// TaskPath — путь к файлу задания Task<версия>.txt.
func (c *Config) TaskPath(version int) string {
	return filepath.Join(c.AdminDataDir, fmt.Sprintf("Task%d.txt", version))
}

// CSVPath — путь к временному CSV с заданиями для pyRevit-скрипта.
func (c *Config) CSVPath() string {
	return filepath.Join(c.AdminDataDir, TmpName+".csv")
}

// JSONConfigName — имя JSON-файла настроек выгрузки с расширением.
func (c *Config) JSONConfigName() string {
	return c.ConfigJSON + ".json"
}

// MappingLayersPath — путь к txt-файлу маппинга категорий по его имени.
func (c *Config) MappingLayersPath(name string) string {
	return filepath.Join(c.ExportConfigDir, c.MappingLayersDir, name)
}

// MappingCommonPath — путь к файлу общих настроек по его имени.
func (c *Config) MappingCommonPath(name string) string {
	return filepath.Join(c.ExportConfigDir, c.MappingCommonDir, name)
}
