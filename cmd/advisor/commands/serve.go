package commands

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/wonny/tradepulse/internal/api"
	"github.com/wonny/tradepulse/internal/api/handlers"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "API 서버 시작",
	Long: `REST API 서버를 시작합니다.

Endpoints:
  GET  /health                      - 저장소/공급자 상태
  GET  /api/reports/daily/latest    - 최신 일일 리포트
  GET  /api/reports/daily/{date}    - 날짜별 일일 리포트
  GET  /api/reports/summary/{id}    - 요약 리포트 조회
  POST /api/reports/summary         - 요약 리포트 생성
  GET  /api/providers               - 추론 공급자 상태
  GET  /metrics                     - Prometheus 메트릭

Example:
  go run ./cmd/advisor serve
  go run ./cmd/advisor serve --port 8080`,
	RunE: runAPIServer,
}

var servePort string

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&servePort, "port", "", "API 서버 포트 (default PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== tradepulse API Server ===")

	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if servePort != "" {
		a.cfg.Port = servePort
	}

	var metricsHandler http.Handler
	if a.metrics != nil {
		metricsHandler = a.metrics.Handler()
	}

	router := api.NewRouter(handlers.NewReportHandler(a.service, a.log), metricsHandler, a.log)
	server := api.New("api", a.cfg.Port, router, a.log)

	fmt.Printf("\n✅ Server running on http://localhost:%s\n", a.cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	// ctx 취소(Ctrl+C) 시 graceful shutdown
	return server.Run(ctx)
}
