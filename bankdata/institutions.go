package bankdata

import (
	"context"
	"net/url"
)

// InstitutionsService lists the banks reachable through the service.
type InstitutionsService struct {
	http doer
}

// List returns the institutions available in a country (ISO 3166 code).
func (s *InstitutionsService) List(ctx context.Context, country string) ([]Institution, error) {
	query := url.Values{}
	if country != "" {
		query.Set("country", country)
	}

	raw, err := s.http.Get(ctx, "/api/v2/institutions/", query)
	if err != nil {
		return nil, err
	}

	out, err := decode[[]Institution](raw)
	if err != nil {
		return nil, err
	}
	return *out, nil
}

// Get returns a single institution by ID.
func (s *InstitutionsService) Get(ctx context.Context, id string) (*Institution, error) {
	raw, err := s.http.Get(ctx, "/api/v2/institutions/"+url.PathEscape(id)+"/", nil)
	if err != nil {
		return nil, err
	}
	return decode[Institution](raw)
}
