package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/tradepulse/internal/contracts"
	"github.com/wonny/tradepulse/internal/scheduler/jobs"
)

// summaryCmd represents the summary command
var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "기간 요약 리포트 생성",
	Long: `기간 내 일일 리포트를 집계해 요약 리포트를 생성하고 저장합니다.
기간은 최대 60일이며, 생략하면 지난 달 전체를 사용합니다.

Example:
  go run ./cmd/advisor summary
  go run ./cmd/advisor summary --start 2024-02-01 --end 2024-02-29 --picks`,
	RunE: runSummary,
}

var (
	summaryStart string
	summaryEnd   string
	summaryPicks bool
	summaryJSON  bool
)

func init() {
	rootCmd.AddCommand(summaryCmd)

	summaryCmd.Flags().StringVar(&summaryStart, "start", "", "start date YYYY-MM-DD")
	summaryCmd.Flags().StringVar(&summaryEnd, "end", "", "end date YYYY-MM-DD")
	summaryCmd.Flags().BoolVar(&summaryPicks, "picks", false, "include AI investment picks")
	summaryCmd.Flags().BoolVar(&summaryJSON, "json", false, "print JSON instead of markdown")
}

func summaryRange() (time.Time, time.Time, error) {
	if summaryStart == "" && summaryEnd == "" {
		start, end := jobs.PreviousMonth(time.Now())
		return start, end, nil
	}

	start, err := contracts.ParseDate(summaryStart)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid --start: %w", err)
	}
	end, err := contracts.ParseDate(summaryEnd)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid --end: %w", err)
	}
	return start, end, nil
}

func runSummary(cmd *cobra.Command, args []string) error {
	start, end, err := summaryRange()
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	summary, err := a.service.GenerateSummaryReport(ctx, start, end, summaryPicks)
	if err != nil {
		return fmt.Errorf("generate summary: %w", err)
	}

	if summaryJSON {
		return PrintJSON(summary)
	}

	PrintHeader("Summary Report",
		[2]string{"Report ID", summary.ReportID},
		[2]string{"Period", summary.StartDate + " ~ " + summary.EndDate},
		[2]string{"Days", fmt.Sprintf("%d", summary.DaysAnalyzed)},
	)
	fmt.Println(summary.Content)

	if summary.Empty() {
		PrintWarning("No daily reports in range; summary was not saved")
	}
	return nil
}
