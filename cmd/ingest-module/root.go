// root.go — корневая команда CLI и общая инициализация рантайма.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/trizel/ingest-module/internal/config"
	"github.com/trizel/ingest-module/internal/domain/classify"
	"github.com/trizel/ingest-module/internal/service"
	"github.com/trizel/ingest-module/internal/sources"
	"github.com/trizel/ingest-module/internal/storage/ident"
	"github.com/trizel/ingest-module/internal/storage/index"
	"github.com/trizel/ingest-module/internal/storage/paths"
	"github.com/trizel/ingest-module/internal/storage/recordstore"
)

var rootCmd = &cobra.Command{
	Use:   "ingest-module",
	Short: "Ингест научных данных с сохранением происхождения",
	Long: "Ingest Module принимает научные данные из внешних источников\n" +
		"(Zenodo, JPL Horizons, локальные файлы), классифицирует их\n" +
		"(RAW_DATA / SNAPSHOT / DERIVED) и сохраняет append-only записи\n" +
		"с полными метаданными происхождения.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// runtime — собранные зависимости для одного запуска команды.
type runtime struct {
	cfg        *config.Config
	logger     *slog.Logger
	reg        *sources.Registry
	classifier *classify.Classifier
	store      *recordstore.Store
	idx        *index.Index
}

// newRuntime загружает конфигурацию и собирает зависимости.
// quiet — логгер уровня WARN в stderr, чтобы не мешать выводу
// [OK]/[ERROR] одноразовых команд; false — полный SetupLogger.
func newRuntime(quiet bool) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("ошибка конфигурации: %w", err)
	}

	var logger *slog.Logger
	if quiet {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelWarn,
		}))
		slog.SetDefault(logger)
	} else {
		logger = config.SetupLogger(cfg)
	}

	reg, err := sources.Load(cfg.SourcesFile)
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки реестра источников: %w", err)
	}

	store := recordstore.New(paths.NewResolver(cfg.DataRoot), ident.New())
	idx := index.New(logger)

	return &runtime{
		cfg:        cfg,
		logger:     logger,
		reg:        reg,
		classifier: classify.NewClassifier(reg),
		store:      store,
		idx:        idx,
	}, nil
}

// printIngestError печатает структурированную ошибку ингеста в stderr:
// минимум одна строка [ERROR] и 1–3 строки [HINT].
func printIngestError(ierr *service.IngestError) {
	fmt.Fprintf(os.Stderr, "[ERROR] %s: %s\n", ierr.Code, ierr.Message)
	for _, v := range ierr.Violations {
		fmt.Fprintf(os.Stderr, "[ERROR] %s\n", v.String())
	}
	for _, hint := range ierr.Hints {
		fmt.Fprintf(os.Stderr, "[HINT] %s\n", hint)
	}
}
