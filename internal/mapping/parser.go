package mapping

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Маркер строки, открывающей новый набор свойств.
const setMarker = "PropertySet:"

// Виды ошибок загрузки. Конкретная строка и токен — в *Error.
var (
	ErrMalformedMapping         = errors.New("malformed mapping")
	ErrInvalidDataType          = errors.New("invalid data type")
	ErrDuplicatePropertyName    = errors.New("duplicate property name")
	ErrDuplicatePropertySetName = errors.New("duplicate property set name")
)

// Error — ошибка разбора с привязкой к файлу и строке.
// Первая же ошибка прерывает загрузку: частичный результат не отдаётся.
type Error struct {
	Path   string // пусто при разборе из io.Reader
	Line   int
	Err    error // один из Err*-маркеров выше
	Detail string
}

func (e *Error) Error() string {
	loc := fmt.Sprintf("line %d", e.Line)
	if e.Path != "" {
		loc = fmt.Sprintf("%s:%d", e.Path, e.Line)
	}
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", loc, e.Err, e.Detail)
	}
	return fmt.Sprintf("%s: %s", loc, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func errAt(line int, kind error, format string, args ...any) *Error {
	return &Error{Line: line, Err: kind, Detail: fmt.Sprintf(format, args...)}
}

// Load читает файл маппинга с диска.
func Load(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open mapping: %w", err)
	}
	defer f.Close()

	file, err := Parse(f)
	if err != nil {
		// дополняем ошибку путём к файлу для диагностики
		var perr *Error
		if errors.As(err, &perr) {
			perr.Path = path
		}
		return nil, err
	}
	return file, nil
}

// Parse разбирает текстовый формат маппинга.
//
// Формат построчный, поля разделены табуляцией:
//
//	PropertySet:<TAB>Имя<TAB>I|T<TAB>Категория1,Категория2,...
//	<TAB>ИмяСвойства<TAB>ТипДанных<TAB>[АлиасИсточника]
//
// Строки, начинающиеся с '#' (допустимы ведущие пробелы), и пустые
// строки пропускаются. Экранирования нет: табуляции и запятые внутри
// значений форматом не поддерживаются.
func Parse(r io.Reader) (*File, error) {
	var (
		file      File
		current   *PropertySet
		seenSets  = map[string]bool{}
		seenProps map[string]bool
		lineNo    int
	)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lineNo++
		raw := scanner.Text()

		trimmed := strings.TrimSpace(raw)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		fields := splitFields(raw)

		// новый набор свойств
		if strings.HasPrefix(trimmed, setMarker) {
			set, err := parseSetLine(fields, lineNo)
			if err != nil {
				return nil, err
			}
			if seenSets[set.Name] {
				return nil, errAt(lineNo, ErrDuplicatePropertySetName, "%q", set.Name)
			}
			seenSets[set.Name] = true
			seenProps = map[string]bool{}
			current = set
			file.Sets = append(file.Sets, set)
			continue
		}

		// объявление свойства вне набора — структурная ошибка
		if current == nil {
			return nil, errAt(lineNo, ErrMalformedMapping,
				"property declaration before any %s line", setMarker)
		}

		prop, err := parsePropertyLine(fields, lineNo)
		if err != nil {
			return nil, err
		}
		if seenProps[prop.Name] {
			return nil, errAt(lineNo, ErrDuplicatePropertyName,
				"%q in set %q", prop.Name, current.Name)
		}
		seenProps[prop.Name] = true
		current.Properties = append(current.Properties, prop)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read mapping: %w", err)
	}

	return &file, nil
}

// splitFields делит строку по табуляциям и отбрасывает пустые поля
// (ведущая табуляция у строк свойств даёт пустой первый элемент).
func splitFields(line string) []string {
	parts := strings.Split(line, "\t")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseSetLine: маркер + имя + код применимости + список категорий.
func parseSetLine(fields []string, lineNo int) (*PropertySet, error) {
	if len(fields) != 4 || fields[0] != setMarker {
		return nil, errAt(lineNo, ErrMalformedMapping,
			"%s line must carry exactly 4 tab-separated fields, got %d",
			setMarker, len(fields))
	}

	name := fields[1]

	app, ok := ParseApplicability(fields[2])
	if !ok {
		return nil, errAt(lineNo, ErrMalformedMapping,
			"applicability must be a prefix of Instance or Type, got %q", fields[2])
	}

	var categories []string
	for _, c := range strings.Split(fields[3], ",") {
		c = strings.TrimSpace(c)
		if c != "" {
			categories = append(categories, c)
		}
	}
	if len(categories) == 0 {
		return nil, errAt(lineNo, ErrMalformedMapping,
			"set %q has no applicable categories", name)
	}

	return &PropertySet{
		Name:          name,
		Applicability: app,
		Categories:    categories,
	}, nil
}

// parsePropertyLine: имя + тип данных + необязательный алиас источника.
func parsePropertyLine(fields []string, lineNo int) (Property, error) {
	if len(fields) < 2 || len(fields) > 3 {
		return Property{}, errAt(lineNo, ErrMalformedMapping,
			"property line must carry 2 or 3 tab-separated fields, got %d",
			len(fields))
	}

	dt, ok := ParseDataType(fields[1])
	if !ok {
		return Property{}, errAt(lineNo, ErrInvalidDataType, "%q", fields[1])
	}

	p := Property{Name: fields[0], Type: dt}
	if len(fields) == 3 {
		p.SourceAlias = fields[2]
	}
	return p, nil
}
