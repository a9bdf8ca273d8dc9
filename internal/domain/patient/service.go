package patient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/chartview/chartview/internal/platform/ehr"
	"github.com/chartview/chartview/internal/platform/fhir"
	"github.com/chartview/chartview/internal/platform/token"
	"github.com/chartview/chartview/pkg/pagination"
)

// ErrIDMismatch is returned when an edited document's id does not match the
// id the update was addressed to.
var ErrIDMismatch = errors.New("patient id in body does not match path id")

type Service struct {
	client *ehr.Client
}

func NewService(client *ehr.Client) *Service {
	return &Service{client: client}
}

// Session binds a token store to the upstream client for one request chain.
func (s *Service) Session(store token.Store) *ehr.Session {
	return s.client.Session(store)
}

// List fetches one page of the remote patient collection and flattens it.
func (s *Service) List(ctx context.Context, sess *ehr.Session, pg pagination.Params) (*ListPage, error) {
	query := url.Values{}
	query.Set("_count", strconv.Itoa(pg.Count))
	query.Set("page", strconv.Itoa(pg.Page))

	body, err := sess.Get(ctx, "/Patient", query)
	if err != nil {
		return nil, err
	}

	var bundle fhir.Bundle
	if err := json.Unmarshal(body, &bundle); err != nil {
		return nil, fmt.Errorf("parse patient bundle: %w", err)
	}
	resources, err := bundle.Resources()
	if err != nil {
		return nil, fmt.Errorf("parse bundle entries: %w", err)
	}

	views := make([]View, 0, len(resources))
	for _, res := range resources {
		views = append(views, ToView(res))
	}

	links := bundle.Link
	if links == nil {
		links = []fhir.BundleLink{}
	}

	return &ListPage{
		Total:      bundle.TotalCount(),
		Patients:   views,
		Links:      links,
		Pagination: pagination.NewPageInfo(pg.Page, bundle.HasLink("next"), bundle.HasLink("previous")),
	}, nil
}

// Get fetches a single patient and returns the raw document alongside the
// flattened view.
func (s *Service) Get(ctx context.Context, sess *ehr.Session, id string) (*Detail, error) {
	body, err := sess.Get(ctx, "/Patient/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	return detailFrom(body)
}

// Update merges the edits into the current raw document and replaces it on
// the remote. The merge runs against a freshly fetched document so fields
// the edit form does not carry survive the write-back.
func (s *Service) Update(ctx context.Context, sess *ehr.Session, id string, edits Edits) (*Detail, error) {
	if edits.ID != id {
		return nil, ErrIDMismatch
	}

	existing, err := s.Get(ctx, sess, id)
	if err != nil {
		return nil, err
	}

	updated := ToRaw(existing.Raw, edits)
	body, err := sess.Put(ctx, "/Patient/"+url.PathEscape(id), updated)
	if err != nil {
		return nil, err
	}

	// Most servers echo the stored resource; fall back to what was sent
	// when the reply body is empty.
	if len(body) == 0 {
		return newDetail(updated), nil
	}
	detail, err := detailFrom(body)
	if err != nil {
		return newDetail(updated), nil
	}
	return detail, nil
}

func detailFrom(body []byte) (*Detail, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parse patient resource: %w", err)
	}
	return newDetail(raw), nil
}

func newDetail(raw map[string]interface{}) *Detail {
	resourceType, _ := raw["resourceType"].(string)
	if resourceType == "" {
		resourceType = "Patient"
	}
	id, _ := raw["id"].(string)
	return &Detail{
		ID:           id,
		ResourceType: resourceType,
		Raw:          raw,
		Formatted:    ToView(raw),
	}
}
