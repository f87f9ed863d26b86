// ingest.go — команда ingest: один проход «payload → классификация →
// валидация → запись». Offline-first: при --input сеть не используется.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/trizel/ingest-module/internal/fetch"
	"github.com/trizel/ingest-module/internal/service"
	"github.com/trizel/ingest-module/internal/sources"
)

var (
	ingestSource     string
	ingestDOI        string
	ingestTarget     string
	ingestInput      string
	ingestDataset    string
	ingestPipeline   string
	ingestMode       string
	ingestOutputOnly bool
)

func init() {
	ingestCmd.Flags().StringVar(&ingestSource, "source", "", "идентификатор источника из allow-list реестра (обязательный)")
	ingestCmd.Flags().StringVar(&ingestDOI, "doi", "", "DOI записи в архивном репозитории (для archive_doi)")
	ingestCmd.Flags().StringVar(&ingestTarget, "target", "", "целевой объект эфемеридного API (для ephemeris_api)")
	ingestCmd.Flags().StringVar(&ingestInput, "input", "", "путь локального JSON-файла (offline-режим, сеть не используется)")
	ingestCmd.Flags().StringVar(&ingestDataset, "dataset", "", "ключ датасета (по умолчанию — default_endpoint источника)")
	ingestCmd.Flags().StringVar(&ingestPipeline, "pipeline", "", "идентификатор конвейера обработки (для DERIVED)")
	ingestCmd.Flags().StringVar(&ingestMode, "mode", "ingest", "режим: ingest или dry_run")
	ingestCmd.Flags().BoolVar(&ingestOutputOnly, "output-only", false, "показать планируемые действия, ничего не записывая (принудительный dry_run)")
	_ = ingestCmd.MarkFlagRequired("source")
	rootCmd.AddCommand(ingestCmd)
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ингест одного payload с записью парных артефактов",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if ingestDOI != "" && ingestTarget != "" {
			fmt.Fprintln(os.Stderr, "[ERROR] флаги --doi и --target взаимоисключающие")
			fmt.Fprintln(os.Stderr, "[HINT] --doi для архивных источников, --target для эфемеридных API")
			return fmt.Errorf("несовместимые флаги")
		}

		rt, err := newRuntime(true)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[ERROR] %v\n", err)
			return err
		}

		locator := ingestDOI
		if locator == "" {
			locator = ingestTarget
		}

		// --output-only никогда не пишет на диск
		mode := service.Mode(ingestMode)
		if ingestOutputOnly {
			mode = service.ModeDryRun
		}

		archive, ephemeris := buildFetchers(rt, ingestSource)
		cache := service.NewCacheService(rt.cfg.CacheSize, rt.cfg.CacheTTL)
		svc := service.NewIngestService(
			rt.reg, rt.classifier, rt.store, rt.idx,
			archive, ephemeris, cache, rt.logger,
		)

		result, ierr := svc.Ingest(cmd.Context(), service.Request{
			Source:     ingestSource,
			Locator:    locator,
			Input:      ingestInput,
			DatasetKey: ingestDataset,
			Pipeline:   ingestPipeline,
			Mode:       mode,
		})
		if ierr != nil {
			printIngestError(ierr)
			return ierr
		}

		printIngestResult(result)
		return nil
	},
}

// buildFetchers создаёт сетевые клиенты для источника по его endpoint
// из реестра. Для local_file источников клиенты не нужны.
func buildFetchers(rt *runtime, sourceID string) (service.ArchiveFetcher, service.EphemerisFetcher) {
	src, ok := rt.reg.Source(sourceID)
	if !ok {
		// Неизвестный источник отклонит оркестратор — с подсказками.
		return nil, nil
	}
	ep := src.Endpoints[src.DefaultEndpoint]

	switch src.Kind {
	case sources.KindArchiveDOI:
		return fetch.NewZenodoClient(ep.URL, src.DOIPrefix, rt.cfg.FetchTimeout, rt.logger), nil
	case sources.KindEphemerisAPI:
		return nil, fetch.NewHorizonsClient(ep.URL, rt.cfg.FetchTimeout, rt.logger)
	}
	return nil, nil
}

// printIngestResult печатает итог ингеста в stdout.
// В dry_run (включая --output-only) показываются планируемые
// действия, файлы не упоминаются: их нет.
func printIngestResult(result *service.Result) {
	tag := "[OK]"
	if result.DryRun {
		tag = "[DRY-RUN]"
	}
	rec := result.Record
	fmt.Printf("%s запись %s (%s)\n", tag, rec.RecordID, rec.Classification)
	fmt.Printf("[INFO] sha256=%s size=%d\n", rec.SHA256, rec.SizeBytes)
	if !result.DryRun {
		fmt.Printf("[INFO] запись: %s\n", result.RecordPath)
		fmt.Printf("[INFO] payload: %s\n", result.PayloadPath)
	}
	for _, w := range result.Warnings {
		fmt.Printf("[WARN] %s\n", w.String())
	}
}
