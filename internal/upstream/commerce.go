// Package upstream implements the typed facades over the Retry Transport
// (C6): the Rakuten Ichiba commerce endpoints and the embedding provider
// endpoint. Grounded on internal/connector/jira's typed-endpoint style
// layered over internal/connector/http.Client, generalized from Jira's
// issue/project endpoints to ranking/item/genre/tag.
package upstream

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/nucleus/giftreco/internal/httpclient"
)

// CommerceConfig configures the Rakuten Ichiba API facade.
type CommerceConfig struct {
	BaseURL     string
	AppID       string
	AffiliateID string
}

// CommerceClient exposes the four read-only Rakuten Ichiba endpoints (§6).
type CommerceClient struct {
	http *httpclient.Client
	cfg  CommerceConfig
}

// NewCommerceClient builds a client sharing the Retry Transport's policy.
func NewCommerceClient(http *httpclient.Client, cfg CommerceConfig) *CommerceClient {
	return &CommerceClient{http: http, cfg: cfg}
}

func (c *CommerceClient) baseQuery() url.Values {
	q := url.Values{}
	q.Set("applicationId", c.cfg.AppID)
	q.Set("format", "json")
	q.Set("formatVersion", "2")
	if c.cfg.AffiliateID != "" {
		q.Set("affiliateId", c.cfg.AffiliateID)
	}
	return q
}

// FetchRanking returns the raw ranking payload for a genre.
func (c *CommerceClient) FetchRanking(ctx context.Context, genreID int) (any, error) {
	q := c.baseQuery()
	q.Set("genreId", strconv.Itoa(genreID))
	return c.getJSON(ctx, "/IchibaItem/Ranking/20220601", q)
}

// FetchItem returns the raw item payload for a rakuten item code.
func (c *CommerceClient) FetchItem(ctx context.Context, itemCode string) (any, error) {
	q := c.baseQuery()
	q.Set("itemCode", itemCode)
	q.Set("hits", "1")
	q.Set("page", "1")
	return c.getJSON(ctx, "/IchibaItem/Search/20220601", q)
}

// FetchGenre returns the raw genre payload for a genre id.
func (c *CommerceClient) FetchGenre(ctx context.Context, genreID int) (any, error) {
	q := c.baseQuery()
	q.Set("genreId", strconv.Itoa(genreID))
	return c.getJSON(ctx, "/IchibaGenre/Search/20140222", q)
}

// FetchTag returns the raw tag payload for a tag id.
func (c *CommerceClient) FetchTag(ctx context.Context, tagID int) (any, error) {
	q := c.baseQuery()
	q.Set("tagId", strconv.Itoa(tagID))
	return c.getJSON(ctx, "/IchibaTag/Search/20140222", q)
}

func (c *CommerceClient) getJSON(ctx context.Context, path string, q url.Values) (any, error) {
	resp, err := c.http.Get(ctx, path, q)
	if err != nil {
		return nil, err
	}
	v, err := resp.DecodeAny()
	if err != nil {
		return nil, fmt.Errorf("upstream: decode %s: %w", path, err)
	}
	return v, nil
}
