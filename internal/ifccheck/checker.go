// Package ifccheck проверяет актуальность IFC-файлов на диске.
//
// IFC считается актуальным, если его mtime (до минуты) не меньше времени
// модификации исходного RVT. Для скорости время модификации кэшируется
// по папкам: папка читается один раз за прогон.
package ifccheck

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"exportifc/internal/revit"
)

type folderCache map[string]time.Time // имя файла → mtime до минуты

// Checker реализует revit.IFCChecker. Модели не изменяет: обнуление
// направлений выполняет revit.Model.NeedsExport.
type Checker struct {
	log   *slog.Logger
	cache map[string]folderCache
}

func New(log *slog.Logger) *Checker {
	return &Checker{
		log:   log.With("component", "ifccheck"),
		cache: map[string]folderCache{},
	}
}

// IsIFCUpToDateMapped: путь не задан (направление не настроено) → false.
func (c *Checker) IsIFCUpToDateMapped(m *revit.Model) bool {
	path := m.ExpectedIFCPathMapped()
	if path == "" {
		c.log.Debug("mapped-IFC не настроен для модели", "rvt", m.RVTPath)
		return false
	}
	return c.isFresh(path, m.LastModified, "mapped-IFC")
}

// IsIFCUpToDateNomap: путь не задан (nomap выключен или не настроен) →
// условие считается выполненным.
func (c *Checker) IsIFCUpToDateNomap(m *revit.Model) bool {
	path := m.ExpectedIFCPathNomap()
	if path == "" {
		c.log.Debug("nomap-IFC не требуется для модели", "rvt", m.RVTPath)
		return true
	}
	return c.isFresh(path, m.LastModified, "nomap-IFC")
}

func (c *Checker) isFresh(ifcPath string, rvtMtime time.Time, label string) bool {
	mtime, ok := c.cachedMtime(ifcPath)
	if !ok {
		c.log.Debug("IFC-файл не найден", "label", label, "ifc", ifcPath)
		return false
	}
	if mtime.Before(rvtMtime) {
		c.log.Debug("IFC-файл старее RVT",
			"label", label, "ifc", ifcPath, "ifc_mtime", mtime, "rvt_mtime", rvtMtime)
		return false
	}
	return true
}

// cachedMtime возвращает mtime файла из кэша папки, при первом обращении
// к папке кэш заполняется единым проходом.
func (c *Checker) cachedMtime(path string) (time.Time, bool) {
	folder := filepath.Dir(path)
	name := filepath.Base(path)

	fc, ok := c.cache[folder]
	if ok {
		t, ok := fc[name]
		return t, ok
	}

	fc = folderCache{}
	c.cache[folder] = fc

	entries, err := os.ReadDir(folder)
	if err != nil {
		c.log.Debug("папка IFC недоступна", "folder", folder, "error", err)
		return time.Time{}, false
	}
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".ifc") {
			continue
		}
		full := filepath.Join(folder, e.Name())
		t, ok := revit.MtimeMinute(full)
		if !ok {
			c.log.Debug("не удалось получить mtime IFC-файла", "file", full)
			continue
		}
		fc[e.Name()] = t
	}

	t, ok := fc[name]
	return t, ok
}

// Reset полностью сбрасывает кэш перед новым прогоном.
func (c *Checker) Reset() {
	c.cache = map[string]folderCache{}
}
