// serve.go — команда serve: служебный HTTP-сервер (health, status,
// metrics, ручной запуск аудита) с периодическим аудитом хранилища
// и мониторингом upstream-зависимостей.
package main

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/trizel/ingest-module/internal/api/handlers"
	"github.com/trizel/ingest-module/internal/api/middleware"
	"github.com/trizel/ingest-module/internal/config"
	"github.com/trizel/ingest-module/internal/server"
	"github.com/trizel/ingest-module/internal/service"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Служебный HTTP-сервер с периодическим аудитом хранилища",
	RunE: func(_ *cobra.Command, _ []string) error {
		rt, err := newRuntime(false)
		if err != nil {
			return err
		}

		rt.logger.Info("Ingest Module запускается",
			slog.String("version", config.Version),
			slog.Int("port", rt.cfg.Port),
			slog.String("data_root", rt.cfg.DataRoot),
			slog.Bool("tls", rt.cfg.TLSEnabled()),
		)

		// Индекс строится из хранилища до начала обслуживания;
		// до завершения readiness отдаёт 503.
		if err := rt.idx.BuildFromStore(rt.store); err != nil {
			rt.logger.Error("Ошибка построения индекса", slog.String("error", err.Error()))
			return err
		}

		ctx := context.Background()

		// Фоновый аудит хранилища
		auditSvc := service.NewAuditService(rt.store, rt.idx, rt.classifier, rt.cfg.AuditInterval, rt.logger)
		auditSvc.Start(ctx)
		defer auditSvc.Stop()

		// topologymetrics — мониторинг upstream-источников
		var upstream handlers.UpstreamHealth
		dephealthSvc, dephealthErr := service.NewDephealthService(
			rt.cfg.DephealthName,
			rt.cfg.DephealthGroup,
			rt.reg,
			rt.cfg.DephealthCheckInterval,
			rt.logger,
		)
		if dephealthErr != nil {
			rt.logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
				slog.String("error", dephealthErr.Error()),
			)
		} else {
			if startErr := dephealthSvc.Start(ctx); startErr != nil {
				rt.logger.Warn("Ошибка запуска topologymetrics",
					slog.String("error", startErr.Error()),
				)
			} else {
				upstream = dephealthSvc
				defer dephealthSvc.Stop()
			}
		}

		h := server.Handlers{
			Health:      handlers.NewHealthHandler(rt.idx),
			Status:      handlers.NewStatusHandler(rt.idx, auditSvc, upstream),
			Maintenance: handlers.NewMaintenanceHandler(auditSvc),
		}

		middlewares := []func(http.Handler) http.Handler{
			middleware.MetricsMiddleware(),
			middleware.RequestLogger(rt.logger),
		}

		return server.New(rt.cfg, rt.logger, h, middlewares...).Run()
	},
}
