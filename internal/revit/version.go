package revit

import (
	"bytes"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf16"
)

// Строки ресурсов внутри *.rvt хранятся в UTF-16 (встречаются LE и BE).
// Год версии ищем по маркеру "Format:", номер сборки — по "Build:",
// fallback — по подписи "Autodesk Revit 20xx".

const (
	readHeadBytes       = 128 * 1024 // быстрый путь: читаем только голову файла
	yearTailBytes       = 32         // сколько байт берём после "Format:"
	buildTailBytes      = 64         // сколько байт берём после "Build:"
	autodeskSuffixBytes = 128        // окно поиска года после "Autodesk Revit"

	minYear = 2000 // фильтр от ложных совпадений
	maxYear = 2100
)

var (
	reYear  = regexp.MustCompile(`\b(20\d{2})\b`)
	reBuild = regexp.MustCompile(`[\d._]+`)
)

// VersionInfo — год версии Revit и номер сборки, извлечённые из бинарного
// *.rvt без запуска Revit. Year == 0 означает, что версию определить
// не удалось; ошибки ввода-вывода наружу не пробрасываются.
type VersionInfo struct {
	Year  int
	Build string
}

// Known сообщает, удалось ли определить год версии.
func (v VersionInfo) Known() bool { return v.Year != 0 }

type encoding int

const (
	encLE encoding = iota
	encBE
)

// marker кодирует ASCII-строку в UTF-16 нужного порядка байт.
func marker(s string, enc encoding) []byte {
	b := make([]byte, 0, len(s)*2)
	for i := 0; i < len(s); i++ {
		if enc == encLE {
			b = append(b, s[i], 0)
		} else {
			b = append(b, 0, s[i])
		}
	}
	return b
}

// decodeUTF16 превращает байтовый хвост в строку, игнорируя битые пары.
func decodeUTF16(data []byte, enc encoding) string {
	n := len(data) / 2
	u := make([]uint16, 0, n)
	for i := 0; i+1 < len(data); i += 2 {
		if enc == encLE {
			u = append(u, uint16(data[i])|uint16(data[i+1])<<8)
		} else {
			u = append(u, uint16(data[i])<<8|uint16(data[i+1]))
		}
	}
	return string(utf16.Decode(u))
}

// ProbeVersion извлекает год версии и номер сборки из файла .rvt.
// Сначала читается голова файла, при неудаче — файл целиком.
func ProbeVersion(path string) VersionInfo {
	var info VersionInfo

	f, err := os.Open(path)
	if err != nil {
		return info
	}
	defer f.Close()

	head := make([]byte, readHeadBytes)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return info
	}
	head = head[:n]

	info.Year = extractYear(head)
	info.Build = extractBuild(head)
	if info.Year == 0 {
		info.Year = extractYearFromAutodesk(head)
	}
	if info.Year != 0 && info.Build != "" {
		return info
	}

	// Медленный путь: читаем остаток и повторяем поиск на всём содержимом.
	rest, err := io.ReadAll(f)
	if err != nil {
		return info
	}
	data := append(head, rest...)

	if info.Year == 0 {
		info.Year = extractYear(data)
		if info.Year == 0 {
			info.Year = extractYearFromAutodesk(data)
		}
	}
	if info.Build == "" {
		info.Build = extractBuild(data)
	}
	return info
}

// findMarker ищет маркер в обоих вариантах UTF-16 и возвращает позицию
// сразу после него вместе с кодировкой.
func findMarker(data []byte, s string) (start int, enc encoding, ok bool) {
	for _, e := range []encoding{encLE, encBE} {
		m := marker(s, e)
		if i := bytes.Index(data, m); i != -1 {
			return i + len(m), e, true
		}
	}
	return 0, 0, false
}

func tail(data []byte, start, size int) []byte {
	end := start + size
	if end > len(data) {
		end = len(data)
	}
	return data[start:end]
}

// extractYear ищет "Format:" и берёт год 20xx из короткого хвоста после него.
func extractYear(data []byte) int {
	start, enc, ok := findMarker(data, "Format:")
	if !ok {
		return 0
	}
	txt := decodeUTF16(tail(data, start, yearTailBytes), enc)
	return parseYear(txt)
}

// extractBuild ищет "Build:" и парсит номер сборки из хвоста.
func extractBuild(data []byte) string {
	start, enc, ok := findMarker(data, "Build:")
	if !ok {
		return ""
	}
	txt := decodeUTF16(tail(data, start, buildTailBytes), enc)

	// Чистим типичный шум: скобки и переводы строк после номера.
	txt, _, _ = strings.Cut(txt, ")")
	txt, _, _ = strings.Cut(txt, "\r")
	txt, _, _ = strings.Cut(txt, "\n")
	return reBuild.FindString(txt)
}

// extractYearFromAutodesk — fallback: год идёт ПОСЛЕ подписи "Autodesk Revit".
func extractYearFromAutodesk(data []byte) int {
	for _, e := range []encoding{encLE, encBE} {
		m := marker("Autodesk Revit", e)
		i := bytes.Index(data, m)
		if i == -1 {
			continue
		}
		txt := decodeUTF16(tail(data, i+len(m), autodeskSuffixBytes), e)
		if y := parseYear(txt); y != 0 {
			return y
		}
	}
	return 0
}

func parseYear(txt string) int {
	m := reYear.FindStringSubmatch(txt)
	if m == nil {
		return 0
	}
	y, err := strconv.Atoi(m[1])
	if err != nil || y < minYear || y > maxYear {
		return 0
	}
	return y
}
