package pocketbase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/couchcryptid/quake-sync/internal/domain"
	"github.com/couchcryptid/quake-sync/internal/reconcile"
)

type listResponse struct {
	Page       int          `json:"page"`
	PerPage    int          `json:"perPage"`
	TotalItems int          `json:"totalItems"`
	Items      []recordMeta `json:"items"`
}

type recordMeta struct {
	ID string `json:"id"`
}

// FindByExternalID looks up the first record whose usgs_id equals
// externalID. It implements reconcile.Collection.
func (c *Client) FindByExternalID(ctx context.Context, externalID string) (string, bool, error) {
	params := url.Values{
		"page":    {"1"},
		"perPage": {"1"},
		"filter":  {"(usgs_id=" + quoteFilter(externalID) + ")"},
	}
	var list listResponse
	if err := c.do(ctx, http.MethodGet, c.recordsURL(c.collection)+"?"+params.Encode(), nil, &list, true); err != nil {
		return "", false, fmt.Errorf("find %s: %w", externalID, err)
	}
	if len(list.Items) == 0 {
		return "", false, nil
	}
	return list.Items[0].ID, true, nil
}

// Create inserts a new record.
func (c *Client) Create(ctx context.Context, doc domain.QuakeDocument) error {
	if err := c.do(ctx, http.MethodPost, c.recordsURL(c.collection), doc, nil, true); err != nil {
		return fmt.Errorf("create %s: %w", doc.USGSID, err)
	}
	return nil
}

// Update overwrites every field of record recordID.
func (c *Client) Update(ctx context.Context, recordID string, doc domain.QuakeDocument) error {
	u := c.recordsURL(c.collection) + "/" + url.PathEscape(recordID)
	if err := c.do(ctx, http.MethodPatch, u, doc, nil, true); err != nil {
		var apiErr *apiError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			return fmt.Errorf("update %s: %w", doc.USGSID, reconcile.ErrRecordNotFound)
		}
		return fmt.Errorf("update %s: %w", doc.USGSID, err)
	}
	return nil
}
