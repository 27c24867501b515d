package ports

import (
	"context"

	"github.com/alphaboard/research-qa/internal/core/domain"
)

// QuestionAnswerer is the inbound contract for the enhanced query pipeline.
type QuestionAnswerer interface {
	Ask(ctx context.Context, req domain.QueryRequest) (*domain.FinalResponse, error)
}
