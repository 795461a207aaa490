package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/tradepulse/internal/contracts"
)

// healthCmd represents the health command
var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "저장소/추론 공급자 상태 확인",
	Long: `리포트 저장소와 추론 공급자 상태를 확인합니다.
저장소가 error 상태이면 0이 아닌 코드로 종료합니다.

Example:
  go run ./cmd/advisor health
  go run ./cmd/advisor health --json`,
	RunE: runHealth,
}

var healthJSON bool

func init() {
	rootCmd.AddCommand(healthCmd)

	healthCmd.Flags().BoolVar(&healthJSON, "json", false, "print JSON")
}

func runHealth(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	h := a.service.Health(ctx)

	if healthJSON {
		if err := PrintJSON(h); err != nil {
			return err
		}
	} else {
		PrintHeader("Health",
			[2]string{"Status", string(h.Status)},
			[2]string{"Store", fmt.Sprintf("%s (%s)", h.Store.Status, h.Store.Detail)},
		)

		t := newTable("Provider", "Primary", "Configured", "Breaker", "Model")
		for _, p := range h.Providers {
			t.row(p.Name, fmt.Sprintf("%v", p.Primary), fmt.Sprintf("%v", p.Configured), p.Breaker, p.Model)
		}
		t.flush()
		fmt.Println()
	}

	if h.Status == contracts.HealthError {
		return fmt.Errorf("store unhealthy: %s", h.Store.Detail)
	}
	return nil
}
