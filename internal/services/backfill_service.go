package services

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/voicewise/insights/internal/repositories/postgres"
	"github.com/voicewise/insights/internal/retrieval"
	"github.com/voicewise/insights/internal/utils"
)

type BackfillReport struct {
	Scanned   int `json:"scanned"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// BackfillService embeds stored transcripts that have no vector yet.
type BackfillService interface {
	// Run processes up to limit calls in batches. limit <= 0 means until
	// no call is left or a whole batch fails.
	Run(ctx context.Context, batchSize, limit int) (BackfillReport, error)
}

type backfillService struct {
	calls    postgres.CallRepo
	embedder retrieval.Embedder
	log      *logrus.Logger
}

func NewBackfillService(calls postgres.CallRepo, embedder retrieval.Embedder, log *logrus.Logger) BackfillService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &backfillService{calls: calls, embedder: embedder, log: log}
}

func (s *backfillService) Run(ctx context.Context, batchSize, limit int) (BackfillReport, error) {
	const op = "BackfillService.Run"

	var rep BackfillReport
	if batchSize <= 0 {
		batchSize = 50
	}
	for limit <= 0 || rep.Scanned < limit {
		if err := ctx.Err(); err != nil {
			return rep, utils.E(utils.CodeTimeout, op, "backfill interrupted", err)
		}
		n := batchSize
		if limit > 0 && limit-rep.Scanned < n {
			n = limit - rep.Scanned
		}
		batch, err := s.calls.MissingEmbeddings(ctx, n)
		if err != nil {
			return rep, utils.E(utils.CodeInternal, op, "failed to list calls", err)
		}
		if len(batch) == 0 {
			break
		}

		ok := 0
		for _, c := range batch {
			rep.Scanned++
			text := ""
			if c.RawTranscript != nil {
				text = strings.TrimSpace(*c.RawTranscript)
			}
			v, err := s.embedder.Embed(ctx, text)
			if err == nil {
				err = s.calls.SetEmbedding(ctx, c.CallID, v)
			}
			if err != nil {
				rep.Failed++
				s.log.WithFields(logrus.Fields{"call_id": c.CallID, "tenant_id": c.TenantID}).WithError(err).Warn("backfill embedding failed")
				continue
			}
			ok++
			rep.Succeeded++
		}
		s.log.WithFields(logrus.Fields{"batch": len(batch), "succeeded": ok, "total_scanned": rep.Scanned}).Info("backfill batch done")

		// Failed rows stay unembedded and would be returned again.
		if ok == 0 {
			break
		}
	}
	return rep, nil
}
