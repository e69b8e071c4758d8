package revit

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// MtimeMinute возвращает время модификации файла, усечённое до минуты.
// Секунды отбрасываются, чтобы сравнение с историей и с IFC на диске
// не зависело от точности таймстемпов у разных файловых систем.
func MtimeMinute(path string) (time.Time, bool) {
	st, err := os.Stat(path)
	if err != nil {
		return time.Time{}, false
	}
	return st.ModTime().Truncate(time.Minute), true
}

// IsPureRVT проверяет, что у файла РОВНО одно расширение и это ".rvt".
// Отсеивает резервные копии вида "Проект1.0001.rvt" и прочие файлы
// с несколькими суффиксами.
func IsPureRVT(path string) bool {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	if !strings.EqualFold(ext, ".rvt") {
		return false
	}
	stem := strings.TrimSuffix(base, ext)
	return stem != "" && filepath.Ext(stem) == ""
}

// History — проверка актуальности модели по журналу выгрузок.
type History interface {
	IsUpToDate(m *Model) bool
}

// IFCChecker — проверка наличия и свежести IFC-файлов на диске.
type IFCChecker interface {
	IsIFCUpToDateMapped(m *Model) bool
	IsIFCUpToDateNomap(m *Model) bool
}

// ExportDecision — результат проверок для одной модели.
type ExportDecision struct {
	HistoryOK  bool // запись в журнале актуальна
	IFCMapOK   bool // mapped-IFC существует и не старее модели
	IFCNomapOK bool // nomap-IFC не нужен или актуален
}

func (d ExportDecision) NeedMapped() bool { return !d.IFCMapOK }
func (d ExportDecision) NeedNomap() bool  { return !d.IFCNomapOK }

// NeedsAnyExport — требуется ли выгрузка хотя бы по одному направлению.
func (d ExportDecision) NeedsAnyExport() bool {
	return !(d.HistoryOK && d.IFCMapOK && d.IFCNomapOK)
}

// Model — одна Revit-модель в процессе экспорта IFC: путь к .rvt,
// время модификации (до минуты), целевые папки mapped/nomap и файлы
// конфигураций. Версия Revit определяется лениво через LoadVersion.
type Model struct {
	RVTPath      string
	LastModified time.Time

	// Папка для IFC с маппингом. Обязательна при загрузке из manage,
	// но обнуляется в NeedsExport, если выгрузка по направлению не нужна.
	OutputDirMapped string
	// JSON с настройками IFC-экспорта
	MappingJSON string
	// txt-сопоставление категорий
	FamilyMappingFile string

	// Сценарий «без маппинга» (опционально)
	OutputDirNomap string
	NomapJSON      string

	// Версия Revit, лениво
	Version int
	Build   string

	// Глобальный флаг сценария «без маппинга»
	EnableUnmapped bool
}

// Name — имя модели без расширения; им же называется IFC-файл.
func (m *Model) Name() string {
	base := filepath.Base(m.RVTPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// LoadVersion определяет год версии и сборку, если это ещё не сделано.
func (m *Model) LoadVersion() {
	if m.Version != 0 {
		return
	}
	info := ProbeVersion(m.RVTPath)
	if !info.Known() {
		return
	}
	m.Version = info.Year
	m.Build = info.Build
}

// DecideExport выполняет все проверки, состояние модели не меняет.
func (m *Model) DecideExport(h History, c IFCChecker) ExportDecision {
	return ExportDecision{
		HistoryOK:  h.IsUpToDate(m),
		IFCMapOK:   c.IsIFCUpToDateMapped(m),
		IFCNomapOK: c.IsIFCUpToDateNomap(m),
	}
}

// NeedsExport решает, нужна ли выгрузка, и обнуляет направления,
// по которым IFC уже актуален: они не должны попадать в задание.
func (m *Model) NeedsExport(h History, c IFCChecker) bool {
	d := m.DecideExport(h, c)
	if d.IFCMapOK {
		m.OutputDirMapped = ""
	}
	if d.IFCNomapOK {
		m.OutputDirNomap = ""
	}
	return d.NeedsAnyExport()
}

// ExpectedIFCPathMapped — ожидаемый путь mapped-IFC или "" при
// обнулённом направлении.
func (m *Model) ExpectedIFCPathMapped() string {
	if m.OutputDirMapped == "" {
		return ""
	}
	return filepath.Join(m.OutputDirMapped, m.Name()+".ifc")
}

// ExpectedIFCPathNomap — ожидаемый путь nomap-IFC с учётом флага
// EnableUnmapped.
func (m *Model) ExpectedIFCPathNomap() string {
	if !m.EnableUnmapped || m.OutputDirNomap == "" {
		return ""
	}
	return filepath.Join(m.OutputDirNomap, m.Name()+".ifc")
}
