package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	env     string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "advisor",
	Short: "tradepulse - watchlist analysis and reporting pipeline",
	Long: `tradepulse Unified CLI

관심 종목 시그널을 분석해 카테고리별(STABLE/RISKY) 추천을 만들고,
일일 리포트와 기간 요약 리포트를 저장/조회합니다.

Usage:
  go run ./cmd/advisor [command]

Examples:
  go run ./cmd/advisor run --date 2024-03-15
  go run ./cmd/advisor summary --start 2024-02-01 --end 2024-02-29 --picks
  go run ./cmd/advisor report latest
  go run ./cmd/advisor scheduler start
  go run ./cmd/advisor serve`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&env, "env", "", "environment override (development|staging|production)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")
}
