// Package history — журнал выгрузок в SQLite: по каждой модели хранится
// путь и время модификации RVT на момент выгрузки (до минуты). Журнал
// отвечает на вопрос «актуальна ли модель» и переживает откаты проекта
// во времени.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"exportifc/internal/revit"
)

// Manager — фасад журнала: загрузка при старте, проверки и обновления
// в памяти, сохранение одной транзакцией в конце прогона.
type Manager struct {
	db    *sql.DB
	store *Store
	log   *slog.Logger
	path  string
}

// Open открывает (или создаёт) базу журнала и загружает записи в память.
func Open(ctx context.Context, path string, log *slog.Logger) (*Manager, error) {
	log = log.With("component", "history")
	log.Info("инициализация журнала выгрузок", "path", path)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}

	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate history db: %w", err)
	}

	rows, err := loadRows(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Info("журнал загружен", "rows", len(rows))

	return &Manager{
		db:    db,
		store: NewStore(rows),
		log:   log,
		path:  path,
	}, nil
}

func loadRows(ctx context.Context, db *sql.DB) ([]Row, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT path, mtime, run_id FROM history ORDER BY path ASC, mtime DESC")
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var (
			r    Row
			unix int64
		)
		if err := rows.Scan(&r.Path, &unix, &r.RunID); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		// В базе время хранится unix-секундами, в памяти работаем
		// с минутной точностью.
		r.Mtime = time.Unix(unix, 0).Truncate(time.Minute)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (m *Manager) Close() error { return m.db.Close() }

// IsUpToDate реализует revit.History.
func (m *Manager) IsUpToDate(model *revit.Model) bool {
	return m.store.IsUpToDate(model)
}

// UpdateRecord фиксирует состояние модели в памяти (с учётом отката).
func (m *Manager) UpdateRecord(model *revit.Model, runID string) {
	m.store.UpdateRecord(model, runID)
}

// Rows возвращает записи журнала в каноническом порядке.
func (m *Manager) Rows() []Row { return m.store.RowsSorted() }

// Save перезаписывает таблицу журнала текущим состоянием одной
// транзакцией.
func (m *Manager) Save(ctx context.Context) error {
	rows := m.store.RowsSorted()
	m.log.Info("сохранение журнала выгрузок", "rows", len(rows))

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save history: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM history"); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO history (path, mtime, run_id) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare insert history: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r.Path, r.Mtime.Unix(), r.RunID); err != nil {
			return fmt.Errorf("insert history row %s: %w", r.Path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit history: %w", err)
	}
	m.log.Info("журнал выгрузок сохранён", "path", m.path)
	return nil
}
