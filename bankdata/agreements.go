package bankdata

import (
	"context"
	"net/url"
)

const agreementsPath = "/api/v2/agreements/enduser/"

// AgreementsService manages end-user agreements.
type AgreementsService struct {
	http doer
}

// Create registers a new end-user agreement with an institution.
func (s *AgreementsService) Create(ctx context.Context, req CreateAgreementRequest) (*EndUserAgreement, error) {
	raw, err := s.http.Post(ctx, agreementsPath, req)
	if err != nil {
		return nil, err
	}
	return decode[EndUserAgreement](raw)
}

// List returns a page of agreements.
func (s *AgreementsService) List(ctx context.Context, params ListParams) (*Page[EndUserAgreement], error) {
	raw, err := s.http.Get(ctx, agreementsPath, listQuery(params))
	if err != nil {
		return nil, err
	}
	return decode[Page[EndUserAgreement]](raw)
}

// Get returns a single agreement by ID.
func (s *AgreementsService) Get(ctx context.Context, id string) (*EndUserAgreement, error) {
	raw, err := s.http.Get(ctx, agreementsPath+url.PathEscape(id)+"/", nil)
	if err != nil {
		return nil, err
	}
	return decode[EndUserAgreement](raw)
}

// Delete removes an agreement. Only agreements without a linked
// requisition can be deleted.
func (s *AgreementsService) Delete(ctx context.Context, id string) error {
	_, err := s.http.Delete(ctx, agreementsPath+url.PathEscape(id)+"/", nil)
	return err
}

// Accept marks an agreement as accepted by the end user. Most institutions
// handle acceptance inside their own authorization flow; this endpoint is
// only open to clients with an eIDAS certificate.
func (s *AgreementsService) Accept(ctx context.Context, id string, req AcceptAgreementRequest) (*EndUserAgreement, error) {
	raw, err := s.http.Put(ctx, agreementsPath+url.PathEscape(id)+"/accept/", req)
	if err != nil {
		return nil, err
	}
	return decode[EndUserAgreement](raw)
}
