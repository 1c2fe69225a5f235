package bankdata

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
)

// doer is the executor surface the resource services consume. Narrowing
// to an interface keeps the services testable without a live transport.
type doer interface {
	Get(ctx context.Context, path string, query url.Values) (json.RawMessage, error)
	Post(ctx context.Context, path string, body any) (json.RawMessage, error)
	Put(ctx context.Context, path string, body any) (json.RawMessage, error)
	Delete(ctx context.Context, path string, query url.Values) (json.RawMessage, error)
}

// listQuery renders manual pagination parameters as a query string.
func listQuery(params ListParams) url.Values {
	query := url.Values{}
	if params.Limit > 0 {
		query.Set("limit", strconv.Itoa(params.Limit))
	}
	if params.Offset > 0 {
		query.Set("offset", strconv.Itoa(params.Offset))
	}
	return query
}
