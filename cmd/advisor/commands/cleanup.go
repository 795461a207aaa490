package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/tradepulse/internal/contracts"
)

// cleanupCmd represents the cleanup command
var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "보관 기간 지난 데이터 정리",
	Long: `보관 기간이 지난 시그널/리포트/요약을 삭제합니다.
플래그를 생략하면 SIGNAL_RETENTION_DAYS / REPORT_RETENTION_DAYS 설정을 사용합니다.
리포트 보관 기간 기본값은 시그널 보관 기간의 2배입니다.

Example:
  go run ./cmd/advisor cleanup
  go run ./cmd/advisor cleanup --signal-days 14 --report-days 90`,
	RunE: runCleanup,
}

var (
	cleanupSignalDays int
	cleanupReportDays int
)

func init() {
	rootCmd.AddCommand(cleanupCmd)

	cleanupCmd.Flags().IntVar(&cleanupSignalDays, "signal-days", 0, "signal retention in days (0 = config)")
	cleanupCmd.Flags().IntVar(&cleanupReportDays, "report-days", 0, "report retention in days (0 = 2x signal days)")
}

func runCleanup(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	signalDays := cleanupSignalDays
	if signalDays < 1 {
		signalDays = a.cfg.Storage.SignalRetentionDays
	}
	reportDays := cleanupReportDays
	if cleanupSignalDays < 1 && reportDays < 1 {
		reportDays = a.cfg.Storage.ReportRetention()
	}

	PrintHeader("Retention Cleanup",
		[2]string{"Signals", fmt.Sprintf("%d days", signalDays)},
		[2]string{"Reports", fmt.Sprintf("%d days", contracts.EffectiveReportDays(signalDays, reportDays))},
	)

	result, err := a.service.Cleanup(ctx, signalDays, reportDays)
	if err != nil {
		return fmt.Errorf("cleanup: %w", err)
	}

	PrintKeyValue("Signals", fmt.Sprintf("%d removed", result.SignalsDeleted), 10)
	PrintKeyValue("Reports", fmt.Sprintf("%d removed", result.ReportsDeleted), 10)
	PrintKeyValue("Summaries", fmt.Sprintf("%d removed", result.SummariesDeleted), 10)
	fmt.Println()
	PrintSuccess(fmt.Sprintf("Cleanup completed (%d total)", result.Total()))
	return nil
}
