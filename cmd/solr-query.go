package main

import (
	"errors"
	"fmt"
	"strings"
)

// solrQuery is the per-entity-type query helper: it builds parameterized
// search requests from declared fields and facets, executes them, and
// rehydrates typed entities from the raw documents.  one instance per entity
// definition, attached by the registry; each search is a stateless round
// trip.

// ordinary absence is signaled by nil returns from get(); getOr404 variants
// return this instead, for the boundary to translate into a 404
var errNotFound = errors.New("entity not found")

// all()/allIDs() are bounded by a large fixed page rather than true
// pagination
const allRowsLimit = 100000

type searchOptions struct {
	Query     string
	Rows      int
	Start     int
	Sort      string // bare attribute name, or "score"
	SortOrder string // "asc" or "desc"
	Filters   []string
	Facets    []searchFacet
	Fuzzy     bool
}

type searchResult struct {
	Entities []*solrEntity
	Total    int
	Start    int
	MaxScore float32
	Facets   solrResponseFacets // keyed by bare attribute name
}

type facetRequest struct {
	Attribute string
	Label     string
}

type solrQuery struct {
	reg *solrRegistry
	def *entityDef
}

func newSolrQuery(reg *solrRegistry, def *entityDef) *solrQuery {
	return &solrQuery{reg: reg, def: def}
}

// ensureAutoConfig derives sort options, boost weights, and the default sort
// for entity types that did not configure them, the first time the type is
// queried.  the default sort comes from the service configuration, falling
// back to the first sort option.  derived values are cached on the shared
// definition.
func (q *solrQuery) ensureAutoConfig() {
	def := q.def

	if def.autoConfigured == true {
		return
	}

	if len(def.sortOptions) == 0 {
		def.sortOptions = []string{"title", "id"}
	}

	if def.boost == "" {
		def.boost = fmt.Sprintf("%s_title^10 %s_%s", def.name, def.name, derivedFulltextSuffix)
	}

	if def.defaultSortField == "" {
		def.defaultSortField = q.reg.cfg.Search.DefaultSort.Field
		def.defaultSortOrder = q.reg.cfg.Search.DefaultSort.Order
	}

	if def.defaultSortField == "" {
		def.defaultSortField = firstElementOf(def.sortOptions)
		def.defaultSortOrder = "asc"
	}

	def.autoConfigured = true
}

func (q *solrQuery) typeFilter() string {
	return fmt.Sprintf(`type:"%s"`, q.def.name)
}

func escapeFilterValue(v string) string {
	return strings.ReplaceAll(v, `"`, `\"`)
}

// resolveSort combines the requested sort attribute and order into a solr
// sort clause.  an order without an attribute sorts by relevance score; no
// sort at all leaves the clause empty (engine default).
func (q *solrQuery) resolveSort(sort, order string) string {
	if sort == "" && order == "" {
		return ""
	}

	if order == "" {
		order = "asc"
	}

	if sort == "" || sort == "score" {
		return fmt.Sprintf("score %s", order)
	}

	return fmt.Sprintf("%s_%s %s", q.def.name, sort, order)
}

// fuzzyExpression builds the disjunction of an exact phrase match on the
// full-text field and a per-term fuzzy match on the fuzzy field
func (q *solrQuery) fuzzyExpression(query string) string {
	distance := q.reg.cfg.Search.FuzzyDistance

	terms := strings.Fields(query)
	fuzzyTerms := make([]string, 0, len(terms))
	for _, term := range terms {
		fuzzyTerms = append(fuzzyTerms, fmt.Sprintf("%s~%d", escapeFilterValue(term), distance))
	}

	return fmt.Sprintf(`(%s_%s:"%s" OR %s_%s:(%s))`,
		q.def.name, derivedFulltextSuffix, escapeFilterValue(query),
		q.def.name, derivedFuzzySuffix, strings.Join(fuzzyTerms, " "))
}

// buildSearchRequest translates searchOptions into solr request parameters.
// pure; the network round trip happens in search().
func (q *solrQuery) buildSearchRequest(opts searchOptions) *solrRequestJSON {
	q.ensureAutoConfig()

	solrReq := solrRequestJSON{}

	solrReq.Params.Q = "*:*"
	solrReq.Params.Fq = append(solrReq.Params.Fq, q.typeFilter())
	solrReq.Params.Fq = append(solrReq.Params.Fq, nonemptyValues(opts.Filters)...)

	sortClause := q.resolveSort(opts.Sort, opts.SortOrder)
	solrReq.Params.Sort = sortClause

	// score ordering applies when no explicit sort was requested, or when
	// the requested sort is relevance itself
	relevanceSort := sortClause == "" || strings.HasPrefix(sortClause, "score ")

	if opts.Query != "" {
		switch {
		case strings.Contains(opts.Query, ":"):
			// a colon marks a structured filter expression, passed through
			// as-is.  this misroutes free text like "10:30am"; documented
			// behavior, kept deliberately.
			solrReq.Params.Fq = append(solrReq.Params.Fq, opts.Query)

		case opts.Fuzzy == true:
			expr := q.fuzzyExpression(opts.Query)

			if relevanceSort == true {
				solrReq.Params.Q = expr
			} else {
				// a non-relevance sort makes scoring irrelevant, but the
				// match still must constrain results
				solrReq.Params.Fq = append(solrReq.Params.Fq, expr)
			}

		default:
			solrReq.Params.Q = opts.Query
			solrReq.Params.DefType = "edismax"
			solrReq.Params.Qf = q.def.boost
		}
	}

	for _, f := range opts.Facets {
		field := q.def.fieldMap[f.attributeName()]
		if field == nil {
			continue
		}

		wire := field.wireName(q.def.name)

		for _, val := range f.selectedValues() {
			solrReq.Params.Fq = append(solrReq.Params.Fq, fmt.Sprintf(`%s:"%s"`, wire, escapeFilterValue(val)))
		}

		if solrReq.Facets == nil {
			solrReq.Facets = make(map[string]solrRequestFacet)
		}

		solrReq.Facets[wire] = f.requestFacet(wire)
	}

	solrReq.Params.Start = restrictValue("start", opts.Start, 0, 0)

	// zero means unset; negative means "no records, aggregations only"
	rows := opts.Rows
	if rows == 0 {
		rows = q.reg.cfg.Search.DefaultRows
	}
	if rows < 0 {
		rows = 0
	}
	solrReq.Params.Rows = rows

	return &solrReq
}

func (q *solrQuery) search(opts searchOptions) (*searchResult, error) {
	solrReq := q.buildSearchRequest(opts)

	// solr errors out when faceting over an empty result set; short-circuit
	// the aggregation when this type has no documents yet
	if len(solrReq.Facets) > 0 {
		total, err := q.count()
		if err != nil {
			return nil, err
		}

		if total == 0 {
			solrReq.Facets = nil
		}
	}

	solrRes, err := q.reg.client.query(solrReq)
	if err != nil {
		return nil, err
	}

	result := searchResult{
		Total:    solrRes.Response.NumFound,
		Start:    solrRes.Response.Start,
		MaxScore: solrRes.Response.MaxScore,
		Facets:   make(solrResponseFacets),
	}

	for _, doc := range solrRes.Response.Docs {
		entity, entityErr := q.def.fromDocument(q.reg, doc)
		if entityErr != nil {
			return nil, entityErr
		}

		result.Entities = append(result.Entities, entity)
	}

	// callers see bare attribute names, not namespaced field keys
	for key, block := range solrRes.Facets {
		result.Facets[strings.TrimPrefix(key, q.def.name+"_")] = block
	}

	return &result, nil
}

// get returns the entity with the given id, or nil if absent
func (q *solrQuery) get(id string) (*solrEntity, error) {
	solrReq := solrRequestJSON{
		Params: solrRequestParams{
			Q:    "*:*",
			Fq:   []string{fmt.Sprintf(`id:"%s_%s"`, q.def.name, escapeFilterValue(id))},
			Rows: 1,
		},
	}

	solrRes, err := q.reg.client.query(&solrReq)
	if err != nil {
		return nil, err
	}

	if len(solrRes.Response.Docs) == 0 {
		return nil, nil
	}

	return q.def.fromDocument(q.reg, solrRes.Response.Docs[0])
}

func (q *solrQuery) getOr404(id string) (*solrEntity, error) {
	entity, err := q.get(id)
	if err != nil {
		return nil, err
	}

	if entity == nil {
		return nil, errNotFound
	}

	return entity, nil
}

// getBySlug is the slug-keyed lookup; slug is a multivalued field so prior
// slugs keep resolving
func (q *solrQuery) getBySlug(slug string) (*solrEntity, error) {
	solrReq := solrRequestJSON{
		Params: solrRequestParams{
			Q: "*:*",
			Fq: []string{
				q.typeFilter(),
				fmt.Sprintf(`%s_slug:"%s"`, q.def.name, escapeFilterValue(slug)),
			},
			Rows: 1,
		},
	}

	solrRes, err := q.reg.client.query(&solrReq)
	if err != nil {
		return nil, err
	}

	if len(solrRes.Response.Docs) == 0 {
		return nil, nil
	}

	return q.def.fromDocument(q.reg, solrRes.Response.Docs[0])
}

func (q *solrQuery) getBySlugOr404(slug string) (*solrEntity, error) {
	entity, err := q.getBySlug(slug)
	if err != nil {
		return nil, err
	}

	if entity == nil {
		return nil, errNotFound
	}

	return entity, nil
}

// getDefaultSort picks relevance ordering when free text is present,
// otherwise the entity type's configured default
func (q *solrQuery) getDefaultSort(query string) (string, string) {
	q.ensureAutoConfig()

	if query != "" {
		return "score", "desc"
	}

	return q.def.defaultSortField, q.def.defaultSortOrder
}

func (q *solrQuery) getSortOptions() []string {
	q.ensureAutoConfig()

	return q.def.sortOptions
}

// getFacets maps requested (attribute, label) pairs to facet objects,
// silently skipping attributes with no declared descriptor
func (q *solrQuery) getFacets(requested []facetRequest) []*facet {
	var facets []*facet

	for _, req := range requested {
		if _, ok := q.def.fieldMap[req.Attribute]; ok == false {
			continue
		}

		facets = append(facets, newFacet(req.Attribute, req.Label, nil))
	}

	return facets
}

func (q *solrQuery) count() (int, error) {
	solrReq := solrRequestJSON{
		Params: solrRequestParams{
			Q:    "*:*",
			Fq:   []string{q.typeFilter()},
			Rows: 0,
		},
	}

	solrRes, err := q.reg.client.query(&solrReq)
	if err != nil {
		return 0, err
	}

	return solrRes.Response.NumFound, nil
}

func (q *solrQuery) all() ([]*solrEntity, error) {
	result, err := q.search(searchOptions{Rows: allRowsLimit})
	if err != nil {
		return nil, err
	}

	return result.Entities, nil
}

func (q *solrQuery) allIDs() ([]string, error) {
	solrReq := solrRequestJSON{
		Params: solrRequestParams{
			Q:    "*:*",
			Fq:   []string{q.typeFilter()},
			Fl:   []string{"id"},
			Rows: allRowsLimit,
		},
	}

	solrRes, err := q.reg.client.query(&solrReq)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(solrRes.Response.Docs))

	for _, doc := range solrRes.Response.Docs {
		id := fmt.Sprintf("%v", doc["id"])
		ids = append(ids, strings.TrimPrefix(id, q.def.name+"_"))
	}

	return ids, nil
}

// searchHoldingEntities finds every entity of this type whose foreign-key
// field references the target id.  this is the reverse-relationship query
// backing the synthesized back-reference accessors.
func (q *solrQuery) searchHoldingEntities(targetID, fieldName string) ([]*solrEntity, error) {
	result, err := q.search(searchOptions{
		Rows: allRowsLimit,
		Filters: []string{
			fmt.Sprintf(`%s_%s:"%s"`, q.def.name, fieldName, escapeFilterValue(targetID)),
		},
	})
	if err != nil {
		return nil, err
	}

	return result.Entities, nil
}
