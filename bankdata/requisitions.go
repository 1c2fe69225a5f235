package bankdata

import (
	"context"
	"net/url"
)

const requisitionsPath = "/api/v2/requisitions/"

// RequisitionsService manages requisitions, the links that carry an end
// user through their bank's authorization flow.
type RequisitionsService struct {
	http doer
}

// Create starts a new requisition; the returned Link is the URL the end
// user must visit to authorize access.
func (s *RequisitionsService) Create(ctx context.Context, req CreateRequisitionRequest) (*Requisition, error) {
	raw, err := s.http.Post(ctx, requisitionsPath, req)
	if err != nil {
		return nil, err
	}
	return decode[Requisition](raw)
}

// List returns a page of requisitions.
func (s *RequisitionsService) List(ctx context.Context, params ListParams) (*Page[Requisition], error) {
	raw, err := s.http.Get(ctx, requisitionsPath, listQuery(params))
	if err != nil {
		return nil, err
	}
	return decode[Page[Requisition]](raw)
}

// Get returns a single requisition by ID, including the accounts granted
// so far.
func (s *RequisitionsService) Get(ctx context.Context, id string) (*Requisition, error) {
	raw, err := s.http.Get(ctx, requisitionsPath+url.PathEscape(id)+"/", nil)
	if err != nil {
		return nil, err
	}
	return decode[Requisition](raw)
}

// Delete removes a requisition and revokes the access it granted.
func (s *RequisitionsService) Delete(ctx context.Context, id string) error {
	_, err := s.http.Delete(ctx, requisitionsPath+url.PathEscape(id)+"/", nil)
	return err
}
