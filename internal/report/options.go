package report

import (
	"time"

	"github.com/wonny/tradepulse/internal/inference"
	"github.com/wonny/tradepulse/pkg/config"
)

// Budgets holds the inference budgets of the report stages
type Budgets struct {
	Narrative inference.Request // 일별 리포트 본문
	Outlook   inference.Request // 요약 리포트 전망
	Picks     inference.Request // AI 추천 종목
}

// DefaultBudgets returns the standard report budgets
func DefaultBudgets() Budgets {
	return Budgets{
		Narrative: inference.Request{Temperature: 0.5, MaxTokens: 2000, Timeout: 45 * time.Second},
		Outlook:   inference.Request{Temperature: 0.4, MaxTokens: 500, Timeout: 30 * time.Second},
		Picks:     inference.Request{Temperature: 0.3, MaxTokens: 800, Timeout: 30 * time.Second},
	}
}

// BudgetsFromConfig applies configured timeouts to the default budgets
func BudgetsFromConfig(cfg config.AnalysisConfig) Budgets {
	b := DefaultBudgets()
	if cfg.NarrativeTimeout > 0 {
		b.Narrative.Timeout = cfg.NarrativeTimeout
	}
	if cfg.OutlookTimeout > 0 {
		b.Outlook.Timeout = cfg.OutlookTimeout
	}
	if cfg.AnalysisTimeout > 0 {
		b.Picks.Timeout = cfg.AnalysisTimeout
	}
	return b
}

// with returns the budget carrying prompt
func with(budget inference.Request, prompt string) inference.Request {
	budget.Prompt = prompt
	return budget
}
