package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/tradepulse/internal/contracts"
	"github.com/wonny/tradepulse/internal/pipeline"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "일일 분석 파이프라인 실행",
	Long: `시그널 번들을 읽어 분석하고 일일 리포트를 저장합니다.

단계:
  load → analyze → signals → report → save

Example:
  go run ./cmd/advisor run
  go run ./cmd/advisor run --date 2024-03-15 --dry-run`,
	RunE: runPipeline,
}

var (
	runDate   string
	runDryRun bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runDate, "date", "", "run date YYYY-MM-DD (default today, UTC)")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "analyze and build without saving")
}

// signalContext is cancelled on Ctrl+C / SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runPipeline(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	date := time.Now().UTC()
	if runDate != "" {
		d, err := contracts.ParseDate(runDate)
		if err != nil {
			return fmt.Errorf("invalid --date: %w", err)
		}
		date = d
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	PrintHeader("Daily Analysis",
		[2]string{"Date", contracts.FormatDate(date)},
		[2]string{"Dry run", fmt.Sprintf("%v", runDryRun)},
	)

	result, err := a.pipeline.Run(ctx, pipeline.RunConfig{Date: date, DryRun: runDryRun})
	if err != nil {
		PrintError(fmt.Sprintf("Run %s failed after %v: %v", result.RunID, result.CompletedStages, err))
		return err
	}

	r := result.Report
	PrintKeyValue("Run ID", result.RunID, 12)
	PrintKeyValue("Bundles", fmt.Sprintf("%d (%d fallback)", result.Bundles, result.Fallbacks), 12)
	PrintKeyValue("Sentiment", string(r.MarketOverview.Sentiment), 12)
	PrintKeyValue("Stable", recommendationText(r.StableRecommendation), 12)
	PrintKeyValue("Risky", recommendationText(r.RiskyRecommendation), 12)
	PrintKeyValue("Quality", fmt.Sprintf("%.2f", r.DataQualityScore), 12)
	fmt.Println()
	PrintSuccess(fmt.Sprintf("Completed in %s", result.Duration.Round(time.Millisecond)))
	return nil
}

func recommendationText(r contracts.Recommendation) string {
	return fmt.Sprintf("%s $%d (confidence %.2f)", r.Symbol, r.Allocation, r.Confidence)
}
