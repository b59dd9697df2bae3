package embedding

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/voicewise/insights/internal/providers/breaker"
	"github.com/voicewise/insights/internal/utils"
)

// Resilient puts a circuit breaker in front of a Provider. While the breaker
// is open, Embed fails immediately and callers continue without vectors.
type Resilient struct {
	base Provider
	cb   *gobreaker.CircuitBreaker
}

func NewResilient(base Provider, log *logrus.Logger) *Resilient {
	return &Resilient{base: base, cb: breaker.New(breaker.DefaultConfig("embedding"), log)}
}

func (r *Resilient) Dimensions() int { return r.base.Dimensions() }

func (r *Resilient) Embed(ctx context.Context, text string) ([]float32, error) {
	const op = "Resilient.Embed"
	v, err := breaker.Execute(r.cb, func() ([]float32, error) {
		return r.base.Embed(ctx, text)
	})
	if breaker.Open(err) {
		return nil, utils.E(utils.CodeUnavailable, op, "embedding circuit open", err)
	}
	return v, err
}
