package instance

import (
	"context"
	"errors"

	"vrp-search-service/internal/domain"
	"vrp-search-service/internal/ports"
)

// Resolver sends http(s) references to HTTP and everything else to Files,
// falling back to the HTTP mirror for names missing on disk.
type Resolver struct {
	Files FileSource
	HTTP  *HTTPSource
}

var _ ports.InstanceSource = Resolver{}

func (r Resolver) Load(ctx context.Context, ref string) (*domain.Instance, error) {
	if r.HTTP != nil && isURL(ref) {
		return r.HTTP.Load(ctx, ref)
	}
	in, err := r.Files.Load(ctx, ref)
	if errors.Is(err, ports.ErrNotFound) && r.HTTP != nil && r.HTTP.baseURL != "" {
		if in, herr := r.HTTP.Load(ctx, ref); herr == nil {
			return in, nil
		}
	}
	return in, err
}
