package ports

import (
	"context"

	"github.com/vshulcz/Migrascope/internal/domain"
)

type SampleRepo interface {
	Append(ctx context.Context, s domain.Sample) error
	AppendMany(ctx context.Context, items []domain.Sample) error
	Recent(ctx context.Context, limit int) ([]domain.Sample, error)
	Ping(ctx context.Context) error
}

type Persister interface {
	Save(ctx context.Context, items []domain.Sample) error
	Restore(ctx context.Context, repo SampleRepo) error
}
