package history

import (
	"sort"
	"time"

	"exportifc/internal/revit"
)

// Row — одна запись журнала: путь к модели, время её модификации на момент
// выгрузки (до минуты) и идентификатор прогона, который её записал.
type Row struct {
	Path  string
	Mtime time.Time
	RunID string
}

type rowKey struct {
	path  string
	mtime int64
}

// Store держит записи журнала в памяти. На один путь допускается несколько
// записей (история изменений); актуальной считается запись с максимальной
// датой. Точные дубли (путь + дата) игнорируются.
type Store struct {
	rows []Row
	last map[string]time.Time
	seen map[rowKey]bool
}

func NewStore(initial []Row) *Store {
	s := &Store{
		last: map[string]time.Time{},
		seen: map[rowKey]bool{},
	}
	for _, r := range initial {
		s.Add(r.Path, r.Mtime, r.RunID)
	}
	return s
}

// Add добавляет запись и обновляет индекс последних дат.
func (s *Store) Add(path string, mtime time.Time, runID string) {
	key := rowKey{path: path, mtime: mtime.Unix()}
	if s.seen[key] {
		return
	}
	s.rows = append(s.rows, Row{Path: path, Mtime: mtime, RunID: runID})
	s.seen[key] = true
	if last, ok := s.last[path]; !ok || mtime.After(last) {
		s.last[path] = mtime
	}
}

// IsUpToDate — дата модели совпадает с последней записью по её пути.
func (s *Store) IsUpToDate(m *revit.Model) bool {
	last, ok := s.last[m.RVTPath]
	return ok && last.Equal(m.LastModified)
}

// UpdateRecord обновляет журнал по модели с учётом возможного отката:
//   - записи нет или дата больше последней → добавляем;
//   - дата равна последней → ничего не делаем;
//   - дата меньше последней → проект «откатили»: удаляем записи пути
//     с датой больше новой и фиксируем новое состояние.
func (s *Store) UpdateRecord(m *revit.Model, runID string) {
	path := m.RVTPath
	current := m.LastModified

	last, ok := s.last[path]
	if !ok || current.After(last) {
		s.Add(path, current, runID)
		return
	}
	if current.Equal(last) {
		return
	}

	s.pruneFuture(path, current)
	s.Add(path, current, runID)
}

// pruneFuture удаляет записи пути с датой позже threshold и пересобирает
// индексы.
func (s *Store) pruneFuture(path string, threshold time.Time) {
	kept := s.rows[:0]
	for _, r := range s.rows {
		if r.Path != path || !r.Mtime.After(threshold) {
			kept = append(kept, r)
		}
	}
	s.rows = kept

	s.seen = make(map[rowKey]bool, len(s.rows))
	for _, r := range s.rows {
		s.seen[rowKey{path: r.Path, mtime: r.Mtime.Unix()}] = true
	}

	delete(s.last, path)
	for _, r := range s.rows {
		if r.Path != path {
			continue
		}
		if last, ok := s.last[path]; !ok || r.Mtime.After(last) {
			s.last[path] = r.Mtime
		}
	}
}

// RowsSorted — детерминированный порядок для записи: путь по возрастанию,
// внутри пути — от новых записей к старым.
func (s *Store) RowsSorted() []Row {
	out := make([]Row, len(s.rows))
	copy(out, s.rows)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].Mtime.After(out[j].Mtime)
	})
	return out
}

// Len — количество записей в журнале.
func (s *Store) Len() int { return len(s.rows) }
