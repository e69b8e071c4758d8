// Package main — точка входа exportifc: пакетная выгрузка IFC из Revit
// через pyRevit CLI.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"exportifc/internal/config"
	"exportifc/internal/exporter"
	"exportifc/internal/history"
	"exportifc/internal/manage"
	"exportifc/internal/mapping"
)

const appName = "exportifc"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Пакетная выгрузка IFC из Revit-моделей",
		Long: `exportifc готовит и запускает пакетную выгрузку IFC:
читает manage.yaml, сравнивает модели с журналом выгрузок и IFC на диске,
группирует устаревшие модели по версиям Revit и запускает pyRevit CLI
для каждой версии.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "settings.yaml",
		"путь к файлу настроек (YAML)")
	cmd.PersistentFlags().BoolVar(&debug, "debug", false,
		"подробный лог и --debug для pyrevit")

	cmd.AddCommand(
		runCmd(&configPath, &debug),
		validateCmd(&configPath, &debug),
		psetsCmd(),
		historyCmd(&configPath, &debug),
	)
	return cmd
}

func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func loadConfig(path string) (config.Config, error) {
	return config.LoadWithPath(path)
}

// signalContext отменяется по Ctrl+C/SIGTERM: запущенный pyrevit
// получает kill через exec.CommandContext.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runCmd(configPath *string, debug *bool) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Выполнить полный цикл выгрузки",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger(*debug)

			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()

			hist, err := history.Open(ctx, cfg.HistoryDBPath(), log)
			if err != nil {
				return err
			}
			defer hist.Close()

			o := exporter.New(cfg, exporter.Options{Debug: *debug, DryRun: dryRun}, hist, log)
			return o.Run(ctx)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false,
		"сформировать Task/CSV без запуска pyrevit")
	return cmd
}

func validateCmd(configPath *string, debug *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [mapping.txt...]",
		Short: "Проверить файлы маппинга; без аргументов — настройки и manage.yaml",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger(*debug)

			if len(args) > 0 {
				return validateMappings(cmd, args)
			}

			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}

			res, err := manage.NewLoader(cfg, log).Load()
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(),
				"OK: моделей=%d, ignore=%d, mtime_issues=%d\n",
				len(res.Models), len(res.Ignore), len(res.MtimeIssues))
			for _, issue := range res.MtimeIssues {
				fmt.Fprintln(cmd.OutOrStdout(), "  mtime:", issue)
			}
			return nil
		},
	}
}

// validateMappings разбирает каждый txt-файл маппинга и печатает число
// наборов и свойств. Первая ошибка (с файлом и номером строки в тексте)
// прерывает проверку.
func validateMappings(cmd *cobra.Command, paths []string) error {
	for _, path := range paths {
		f, err := mapping.Load(path)
		if err != nil {
			return err
		}

		props := 0
		for _, set := range f.Sets {
			props += len(set.Properties)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: наборов=%d, свойств=%d\n",
			path, len(f.Sets), props)
	}
	return nil
}

func psetsCmd() *cobra.Command {
	var (
		file     string
		category string
		appCode  string
	)

	cmd := &cobra.Command{
		Use:   "psets",
		Short: "Показать наборы свойств из txt-файла маппинга",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := mapping.Load(file)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if category != "" {
				app, ok := mapping.ParseApplicability(appCode)
				if !ok {
					return fmt.Errorf("unknown applicability %q (instance|type)", appCode)
				}
				for _, p := range f.PropertiesFor(category, app) {
					fmt.Fprintf(out, "%s\t%s\t%s\t%s\n", p.Set, p.Name, p.Type, p.SourceField)
				}
				return nil
			}

			for _, set := range f.Sets {
				fmt.Fprintf(out, "%s\t%s\t%d свойств\t[%s]\n",
					set.Name, set.Applicability, len(set.Properties),
					strings.Join(set.Categories, ","))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "путь к txt-файлу маппинга")
	cmd.Flags().StringVar(&category, "category", "", "фильтр по категории Revit")
	cmd.Flags().StringVar(&appCode, "type", "instance", "применимость: instance или type")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func historyCmd(configPath *string, debug *bool) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Показать журнал выгрузок",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger(*debug)

			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()

			hist, err := history.Open(ctx, cfg.HistoryDBPath(), log)
			if err != nil {
				return err
			}
			defer hist.Close()

			rows := hist.Rows()
			// свежие записи первыми, при равном mtime — по пути
			sort.SliceStable(rows, func(i, j int) bool {
				return rows[i].Mtime.After(rows[j].Mtime)
			})
			if limit > 0 && len(rows) > limit {
				rows = rows[:limit]
			}
			for _, r := range rows {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n",
					r.Path, r.Mtime.Format("2006.01.02 15:04"), r.RunID)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "показать не больше N записей (0 — все)")
	return cmd
}
