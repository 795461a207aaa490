package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/tradepulse/internal/contracts"
)

// reportCmd represents the report command
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "저장된 리포트 조회",
	Long: `저장된 일일/요약 리포트를 조회합니다.

Subcommands:
  latest          - 오늘(없으면 어제) 일일 리포트
  daily [date]    - 특정 날짜 일일 리포트
  summary [id]    - 요약 리포트 (SR_<start>_<end>)

Example:
  go run ./cmd/advisor report latest
  go run ./cmd/advisor report daily 2024-03-15 --json
  go run ./cmd/advisor report summary SR_2024-02-01_2024-02-29`,
}

var reportJSON bool

var (
	reportLatestCmd = &cobra.Command{
		Use:   "latest",
		Short: "최신 일일 리포트",
		Args:  cobra.NoArgs,
		RunE:  showLatestReport,
	}

	reportDailyCmd = &cobra.Command{
		Use:   "daily [date]",
		Short: "특정 날짜 일일 리포트",
		Args:  cobra.ExactArgs(1),
		RunE:  showDailyReport,
	}

	reportSummaryCmd = &cobra.Command{
		Use:   "summary [id]",
		Short: "요약 리포트",
		Args:  cobra.ExactArgs(1),
		RunE:  showSummaryReport,
	}
)

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.AddCommand(reportLatestCmd)
	reportCmd.AddCommand(reportDailyCmd)
	reportCmd.AddCommand(reportSummaryCmd)

	reportCmd.PersistentFlags().BoolVar(&reportJSON, "json", false, "print JSON instead of markdown")
}

func showLatestReport(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	r, err := a.service.GetLatestDailyReport(ctx)
	if err != nil {
		return fmt.Errorf("latest daily report: %w", err)
	}
	return printDaily(r)
}

func showDailyReport(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	r, err := a.service.GetDailyReport(ctx, args[0])
	if err != nil {
		return fmt.Errorf("daily report %s: %w", args[0], err)
	}
	return printDaily(r)
}

func showSummaryReport(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	s, err := a.service.GetSummaryReport(ctx, args[0])
	if err != nil {
		return fmt.Errorf("summary report %s: %w", args[0], err)
	}

	if reportJSON {
		return PrintJSON(s)
	}
	fmt.Println(s.Content)
	return nil
}

func printDaily(r contracts.DailyReport) error {
	if reportJSON {
		return PrintJSON(r)
	}
	fmt.Println(r.Content)
	return nil
}
