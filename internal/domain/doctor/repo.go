package doctor

import "context"

type Repository interface {
	List(ctx context.Context) ([]*Doctor, error)
	Get(ctx context.Context, id string) (*Doctor, error)
	Create(ctx context.Context, d *Doctor) error
}
