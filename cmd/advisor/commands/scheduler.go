package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/tradepulse/internal/api"
	"github.com/wonny/tradepulse/internal/scheduler"
	"github.com/wonny/tradepulse/internal/scheduler/jobs"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "스케줄러 관리",
	Long: `스케줄러를 시작하거나 작업을 관리합니다.

Subcommands:
  start   - 스케줄러 시작
  list    - 등록된 작업 목록
  run     - 특정 작업 즉시 실행 (완료까지 대기)

Example:
  go run ./cmd/advisor scheduler start
  go run ./cmd/advisor scheduler list
  go run ./cmd/advisor scheduler run monthly_summary`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "스케줄러 시작",
		Long: `스케줄러를 시작하고 등록된 모든 작업을 스케줄합니다.

등록되는 작업:
- daily_analysis: 평일 16:30 (SCHEDULE_DAILY_ANALYSIS)
- monthly_summary: 매월 1일 06:00, 지난 달 요약 (SCHEDULE_SUMMARY)
- retention_cleanup: 일요일 03:00 (SCHEDULE_CLEANUP)

METRICS_ENABLED이면 METRICS_PORT에서 /metrics를 제공합니다.
스케줄러는 Ctrl+C로 종료할 수 있습니다.`,
		RunE: runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "등록된 작업 목록",
		RunE:  listJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "특정 작업 즉시 실행",
		Args:  cobra.ExactArgs(1),
		RunE:  runJob,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
}

func runScheduler(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := initScheduler(a)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	var metricsDone chan struct{}
	if a.metrics != nil {
		metricsDone = make(chan struct{})
		metricsServer := api.New("metrics", a.cfg.MetricsPort, a.metrics.Handler(), a.log).
			WithShutdownTimeout(5 * time.Second)
		go func() {
			defer close(metricsDone)
			if err := metricsServer.Run(ctx); err != nil {
				a.log.WithError(err).Error("Metrics server stopped")
			}
		}()
	}

	sched.Start()

	fmt.Println("\n✅ Scheduler started successfully")
	fmt.Println("\nRegistered jobs:")
	printJobs(sched)
	fmt.Println("\nPress Ctrl+C to stop")

	<-ctx.Done()

	fmt.Println("\nShutting down scheduler...")
	sched.Stop()

	if metricsDone != nil {
		<-metricsDone
	}

	fmt.Println("Scheduler stopped")
	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	a, err := newApp(context.Background())
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := initScheduler(a)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	fmt.Println("Registered jobs:")
	printJobs(sched)
	return nil
}

func runJob(cmd *cobra.Command, args []string) error {
	jobName := args[0]

	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := initScheduler(a)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	// 수동 실행은 재시도 없이 결과를 바로 보고
	sched.SetRetry(0, 0)

	fmt.Printf("Running job: %s\n", jobName)

	result, err := sched.RunJobNow(ctx, jobName)
	if err != nil {
		return fmt.Errorf("run job: %w", err)
	}

	if !result.Success {
		PrintError(fmt.Sprintf("%s failed after %d attempt(s): %s", jobName, result.Attempts, result.Error))
		return fmt.Errorf("job %s failed", jobName)
	}

	PrintSuccess(fmt.Sprintf("%s completed in %s", jobName, result.Duration.Round(time.Millisecond)))
	return nil
}

func printJobs(sched *scheduler.Scheduler) {
	for _, jobName := range sched.GetAllJobs() {
		next, _ := sched.NextRun(jobName)
		fmt.Printf("  - %-18s next: %s\n", jobName, next.Format("2006-01-02 15:04:05"))
	}
}

func initScheduler(a *app) (*scheduler.Scheduler, error) {
	sched := scheduler.New(a.log)
	sched.SetMetrics(a.metrics)

	toAdd := []scheduler.Job{
		jobs.NewDailyAnalysisJob(a.pipeline, a.cfg.Schedule.DailyAnalysis, a.log),
		jobs.NewMonthlySummaryJob(a.service, a.cfg.Schedule.Summary, true, a.log),
		jobs.NewRetentionCleanupJob(a.service, a.cfg.Schedule.Cleanup, a.log),
	}
	for _, job := range toAdd {
		if err := sched.AddJob(job); err != nil {
			return nil, err
		}
	}

	return sched, nil
}
