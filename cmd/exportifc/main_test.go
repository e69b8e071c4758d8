package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"exportifc/internal/history"
	"exportifc/internal/revit"
)

func writeMapping(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "КЖ.txt")
	body := "PropertySet:\tОбщие\tI\tСтены,Перекрытия\n" +
		"\tНаименование\tText\n" +
		"\tОтметка\tLength\tУровень\n" +
		"PropertySet:\tТип\tT\tСтены\n" +
		"\tМарка\tLabel\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := rootCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestPsetsListsSets(t *testing.T) {
	path := writeMapping(t)

	out, err := execute(t, "psets", "--file", path)
	require.NoError(t, err)

	assert.Contains(t, out, "Общие\tInstance\t2 свойств\t[Стены,Перекрытия]")
	assert.Contains(t, out, "Тип\tType\t1 свойств\t[Стены]")
}

func TestPsetsFilterByCategory(t *testing.T) {
	path := writeMapping(t)

	out, err := execute(t, "psets", "--file", path, "--category", "Стены")
	require.NoError(t, err)

	// instance-наборы по умолчанию; алиас разрешён
	assert.Contains(t, out, "Общие\tНаименование\tText\tНаименование")
	assert.Contains(t, out, "Общие\tОтметка\tLength\tУровень")
	assert.NotContains(t, out, "Марка")
}

func TestPsetsFilterByType(t *testing.T) {
	path := writeMapping(t)

	out, err := execute(t, "psets", "--file", path, "--category", "Стены", "--type", "type")
	require.NoError(t, err)

	assert.Contains(t, out, "Тип\tМарка\tLabel\tМарка")
	assert.NotContains(t, out, "Наименование")
}

func TestPsetsBadFile(t *testing.T) {
	_, err := execute(t, "psets", "--file", filepath.Join(t.TempDir(), "nope.txt"))
	require.Error(t, err)
}

func TestPsetsUnknownApplicability(t *testing.T) {
	path := writeMapping(t)
	_, err := execute(t, "psets", "--file", path, "--category", "Стены", "--type", "wat")
	require.Error(t, err)
}

func TestValidateMappingFiles(t *testing.T) {
	path := writeMapping(t)

	// проверка файлов маппинга не требует settings.yaml
	out, err := execute(t, "validate", path)
	require.NoError(t, err)

	assert.Contains(t, out, path+": наборов=2, свойств=3")
}

func TestValidateMappingFirstErrorStops(t *testing.T) {
	good := writeMapping(t)
	bad := filepath.Join(t.TempDir(), "bad.txt")
	body := "PropertySet:\tОбщие\tI\tСтены\n\tНаименование\tНеТип\n"
	require.NoError(t, os.WriteFile(bad, []byte(body), 0o644))

	_, err := execute(t, "validate", bad, good)
	require.Error(t, err)
	// файл и номер строки попадают в текст ошибки
	assert.Contains(t, err.Error(), "bad.txt:2")
}

func TestHistoryLimitShowsRecent(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "settings.yaml")
	cfgBody := "admin_data_dir: " + dir + "\n" +
		"export_config_dir: " + dir + "\n" +
		"revit_versions: [2022]\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfgBody), 0o644))

	ctx := context.Background()
	hist, err := history.Open(ctx, filepath.Join(dir, "history", "history.db"),
		newLogger(false))
	require.NoError(t, err)

	base := time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC)
	for i, name := range []string{"a.rvt", "b.rvt", "c.rvt"} {
		m := &revit.Model{
			RVTPath:      filepath.Join(dir, name),
			LastModified: base.Add(time.Duration(i) * time.Minute),
		}
		hist.UpdateRecord(m, "run-1")
	}
	require.NoError(t, hist.Save(ctx))
	require.NoError(t, hist.Close())

	out, err := execute(t, "history", "--config", cfgPath, "--limit", "1")
	require.NoError(t, err)

	// самая свежая запись, а не первая по алфавиту
	assert.Contains(t, out, "c.rvt")
	assert.NotContains(t, out, "a.rvt")
}
