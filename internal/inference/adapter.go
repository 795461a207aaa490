package inference

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wonny/tradepulse/internal/contracts"
	"github.com/wonny/tradepulse/pkg/logger"
	"github.com/wonny/tradepulse/pkg/metrics"
)

// Inferer is what analysis and reporting code depends on
type Inferer interface {
	Infer(ctx context.Context, req Request) (string, error)
}

// ProviderInfo describes a provider for health reporting
type ProviderInfo struct {
	Name       string `json:"name"`
	Model      string `json:"model,omitempty"`
	BaseURL    string `json:"base_url,omitempty"`
	Configured bool   `json:"configured"`
	Breaker    string `json:"breaker"`
	Primary    bool   `json:"primary"`
}

// Adapter tries an ordered provider list once per call
// ⭐ SSOT: 공급자 폴백 로직은 여기서만 (호출부에서 재시도 금지)
type Adapter struct {
	providers []*guarded
	logger    *logger.Logger
	metrics   *metrics.Recorder
}

// NewAdapter builds an adapter over providers in priority order
func NewAdapter(log *logger.Logger, rec *metrics.Recorder, settings BreakerSettings, providers ...Provider) *Adapter {
	a := &Adapter{
		logger:  log.Component("inference"),
		metrics: rec,
	}
	for _, p := range providers {
		a.providers = append(a.providers, &guarded{
			provider: p,
			breaker:  newBreaker(p.Name(), settings),
		})
	}
	return a
}

// Infer returns the first non-empty response. Each provider gets its own
// req.Timeout. When every provider fails the error wraps
// contracts.ErrAllProvidersExhausted.
func (a *Adapter) Infer(ctx context.Context, req Request) (string, error) {
	var errs []error

	for _, g := range a.providers {
		name := g.provider.Name()

		if err := ctx.Err(); err != nil {
			// 실행 취소 시 다음 공급자 시도하지 않음
			errs = append(errs, err)
			break
		}
		if !g.provider.IsAvailable() {
			errs = append(errs, fmt.Errorf("%s: not configured", name))
			continue
		}

		text, err := a.call(ctx, g, req)
		if err == nil && text != "" {
			return text, nil
		}
		if err == nil {
			err = fmt.Errorf("%s: empty response", name)
		}
		errs = append(errs, err)

		a.logger.WithFields(map[string]interface{}{
			"provider": name,
			"error":    err.Error(),
		}).Warn("Inference provider failed, falling back")
	}

	if len(errs) == 0 {
		errs = append(errs, errors.New("no providers registered"))
	}
	return "", fmt.Errorf("%w: %w", contracts.ErrAllProvidersExhausted, errors.Join(errs...))
}

func (a *Adapter) call(ctx context.Context, g *guarded, req Request) (string, error) {
	callCtx := ctx
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := g.infer(callCtx, req)
	text = strings.TrimSpace(text)

	outcome := "ok"
	switch {
	case err != nil && errors.Is(err, context.DeadlineExceeded):
		outcome = "timeout"
	case err != nil:
		outcome = "error"
	case text == "":
		outcome = "empty"
	}
	a.metrics.RecordInference(g.provider.Name(), outcome, time.Since(start))

	return text, err
}

// ProviderStatus reports configuration and breaker state without any network call
func (a *Adapter) ProviderStatus() []ProviderInfo {
	infos := make([]ProviderInfo, 0, len(a.providers))
	for i, g := range a.providers {
		info := ProviderInfo{
			Name:       g.provider.Name(),
			Configured: g.provider.IsAvailable(),
			Breaker:    g.breaker.State().String(),
			Primary:    i == 0,
		}
		if d, ok := g.provider.(describer); ok {
			info.Model = d.Model()
			info.BaseURL = d.BaseURL()
		}
		infos = append(infos, info)
	}
	return infos
}

// AnyConfigured reports whether at least one provider can be called
func (a *Adapter) AnyConfigured() bool {
	for _, g := range a.providers {
		if g.provider.IsAvailable() {
			return true
		}
	}
	return false
}
