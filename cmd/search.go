package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// searchContext carries one API request through the query layer

type apiPagination struct {
	Start int `json:"start"`
	Rows  int `json:"rows"`
}

type apiSort struct {
	Field string `json:"field,omitempty"`
	Order string `json:"order,omitempty"`
}

type apiFilter struct {
	Attribute string `json:"attribute"`
	Value     string `json:"value"`
}

type apiSearchRequest struct {
	Type       string        `json:"type"`
	Query      string        `json:"query,omitempty"`
	Fuzzy      bool          `json:"fuzzy,omitempty"`
	Sort       *apiSort      `json:"sort,omitempty"`
	Pagination apiPagination `json:"pagination"`
	Filters    []apiFilter   `json:"filters,omitempty"`
}

type apiFacetValue struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

type apiFacet struct {
	Attribute string          `json:"attribute"`
	Label     string          `json:"label"`
	Values    []apiFacetValue `json:"values,omitempty"`
}

type apiSearchResponse struct {
	Total      int                      `json:"total"`
	Start      int                      `json:"start"`
	Records    []map[string]interface{} `json:"records"`
	FacetList  []apiFacet               `json:"facet_list,omitempty"`
	SortField  string                   `json:"sort_field,omitempty"`
	SortOrder  string                   `json:"sort_order,omitempty"`
	Warnings   []string                 `json:"warnings,omitempty"`
	ElapsedMS  int64                    `json:"elapsed_ms,omitempty"`
	DebugQuery interface{}              `json:"debug,omitempty"`
}

type searchResponse struct {
	status int
	data   interface{}
	err    error
}

type searchContext struct {
	catalog *catalogContext
	client  *clientContext
	req     apiSearchRequest
}

func (s *searchContext) init(p *catalogContext, c *clientContext) {
	s.catalog = p
	s.client = c
}

func (s *searchContext) log(format string, args ...interface{}) {
	s.client.log(format, args...)
}

func (s *searchContext) queryForType(entity string) (*solrQuery, *searchResponse) {
	q := s.catalog.registry.queryFor(entity)
	if q == nil {
		err := fmt.Errorf("unknown entity type: [%s]", entity)
		return nil, &searchResponse{status: http.StatusBadRequest, err: err}
	}

	return q, nil
}

// buildRequestFacets maps the configured facets for this entity type and
// applies any filter values the client selected
func (s *searchContext) buildRequestFacets(q *solrQuery) []searchFacet {
	requests := s.catalog.facetRequestsFor(q.def.name)

	selected := make(map[string][]string)
	for _, filter := range s.req.Filters {
		selected[filter.Attribute] = append(selected[filter.Attribute], filter.Value)
	}

	var facets []searchFacet

	for _, f := range q.getFacets(requests) {
		if values, ok := selected[f.Attribute]; ok == true {
			f.setValues(values)
		}

		facets = append(facets, f)
	}

	return facets
}

// buildFilters maps filters on non-facet attributes to namespaced equality
// expressions.  facet attributes are handled through facet selection instead;
// an undeclared attribute is a client error, never a silent no-op.
func (s *searchContext) buildFilters(q *solrQuery, requestFacets bool) ([]string, *searchResponse) {
	faceted := make(map[string]bool)

	if requestFacets == true {
		for _, req := range s.catalog.facetRequestsFor(q.def.name) {
			faceted[req.Attribute] = true
		}
	}

	var filters []string

	for _, filter := range s.req.Filters {
		if faceted[filter.Attribute] == true {
			continue
		}

		field := q.def.fieldMap[filter.Attribute]
		if field == nil {
			err := fmt.Errorf("unknown filter attribute: [%s]", filter.Attribute)
			return nil, &searchResponse{status: http.StatusBadRequest, err: err}
		}

		filters = append(filters, fmt.Sprintf(`%s:"%s"`, field.wireName(q.def.name), escapeFilterValue(filter.Value)))
	}

	return filters, nil
}

func (s *searchContext) performSearch(requestFacets bool) searchResponse {
	q, errResp := s.queryForType(s.req.Type)
	if errResp != nil {
		return *errResp
	}

	sortField, sortOrder := q.getDefaultSort(s.req.Query)

	if s.req.Sort != nil && (s.req.Sort.Field != "" || s.req.Sort.Order != "") {
		if s.req.Sort.Field != "" && sliceContainsString(q.getSortOptions(), s.req.Sort.Field, false) == false && s.req.Sort.Field != "score" {
			return searchResponse{status: http.StatusBadRequest, err: errors.New("invalid sort")}
		}

		if s.req.Sort.Order != "" && isValidSortOrder(s.req.Sort.Order) == false {
			return searchResponse{status: http.StatusBadRequest, err: errors.New("invalid sort order")}
		}

		sortField = s.req.Sort.Field
		sortOrder = s.req.Sort.Order
	}

	opts := searchOptions{
		Query:     s.req.Query,
		Fuzzy:     s.req.Fuzzy,
		Sort:      sortField,
		SortOrder: sortOrder,
		Start:     s.req.Pagination.Start,
		Rows:      s.req.Pagination.Rows,
	}

	var facets []searchFacet
	if requestFacets == true {
		facets = s.buildRequestFacets(q)
		opts.Facets = facets
	}

	filters, errResp := s.buildFilters(q, requestFacets)
	if errResp != nil {
		return *errResp
	}
	opts.Filters = filters

	if s.client.opts.verbose == true {
		if reqBytes, jsonErr := json.Marshal(q.buildSearchRequest(opts)); jsonErr == nil {
			s.log("[SOLR] req: %s", reqBytes)
		}
	}

	result, err := q.search(opts)
	if err != nil {
		var qErr *queryError
		if errors.As(err, &qErr) {
			return searchResponse{status: http.StatusBadRequest, err: qErr}
		}

		return searchResponse{status: http.StatusInternalServerError, err: err}
	}

	res := apiSearchResponse{
		Total:     result.Total,
		Start:     result.Start,
		Records:   []map[string]interface{}{},
		SortField: sortField,
		SortOrder: sortOrder,
	}

	for _, entity := range result.Entities {
		res.Records = append(res.Records, entity.toAPIDict())
	}

	for _, f := range facets {
		block, ok := result.Facets[f.attributeName()]
		if ok == false {
			continue
		}

		af := apiFacet{Attribute: f.attributeName()}

		if plain, isPlain := f.(*facet); isPlain == true {
			af.Label = plain.Label
		}

		for _, bucket := range block.Buckets {
			af.Values = append(af.Values, apiFacetValue{
				Value: fmt.Sprintf("%v", bucket.Val),
				Count: bucket.Count,
			})
		}

		res.FacetList = append(res.FacetList, af)
	}

	if s.client.opts.debug == true {
		res.DebugQuery = q.buildSearchRequest(opts)
		res.ElapsedMS = int64(time.Since(s.client.start) / time.Millisecond)
	}

	return searchResponse{status: http.StatusOK, data: &res}
}

func (s *searchContext) handleSearchRequest() searchResponse {
	return s.performSearch(true)
}

// handleFacetsRequest returns the aggregations only, with no records
func (s *searchContext) handleFacetsRequest() searchResponse {
	s.req.Pagination.Rows = -1

	resp := s.performSearch(true)
	if resp.err != nil {
		return resp
	}

	if res, ok := resp.data.(*apiSearchResponse); ok == true {
		res.Records = nil
	}

	return resp
}

func (s *searchContext) handleRecordRequest(entity, id string) searchResponse {
	q, errResp := s.queryForType(entity)
	if errResp != nil {
		return *errResp
	}

	record, err := q.getOr404(id)

	switch {
	case errors.Is(err, errNotFound):
		return searchResponse{status: http.StatusNotFound, err: err}
	case err != nil:
		return searchResponse{status: http.StatusInternalServerError, err: err}
	}

	return searchResponse{status: http.StatusOK, data: record.toAPIDict()}
}

func (s *searchContext) handlePingRequest() searchResponse {
	if err := s.catalog.solr.ping(); err != nil {
		return searchResponse{status: http.StatusInternalServerError, err: err}
	}

	return searchResponse{status: http.StatusOK}
}
