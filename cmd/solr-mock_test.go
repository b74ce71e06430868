package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// an in-memory solr core for tests: select, update (with pending-until-commit
// document visibility), and schema/config admin endpoints

type mockOp struct {
	add solrDocument
	del *solrDeleteSpec
}

type mockSolr struct {
	t      *testing.T
	server *httptest.Server

	mu            sync.Mutex
	ops           []mockOp // buffered writes, applied at commit
	visible       map[string]solrDocument
	fields        map[string]solrSchemaFieldDef
	copyFields    []solrSchemaCopyFieldDef
	fieldTypes    map[string]bool
	configActions []string

	lastSelect *solrRequestJSON
	failSelect bool // next select returns a query-syntax error
}

func newMockSolr(t *testing.T) *mockSolr {
	m := &mockSolr{
		t:          t,
		visible:    make(map[string]solrDocument),
		fields:     make(map[string]solrSchemaFieldDef),
		fieldTypes: make(map[string]bool),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/catalog/select", m.handleSelect)
	mux.HandleFunc("/catalog/update", m.handleUpdate)
	mux.HandleFunc("/catalog/update/json/docs", m.handleAddDocs)
	mux.HandleFunc("/catalog/schema", m.handleSchema)
	mux.HandleFunc("/catalog/schema/fields", m.handleSchemaFields)
	mux.HandleFunc("/catalog/schema/copyfields", m.handleSchemaCopyFields)
	mux.HandleFunc("/catalog/config", m.handleConfig)

	m.server = httptest.NewServer(mux)
	t.Cleanup(m.server.Close)

	return m
}

func (m *mockSolr) writeJSON(w http.ResponseWriter, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(body)
}

func (m *mockSolr) ok(w http.ResponseWriter) {
	m.writeJSON(w, map[string]interface{}{
		"responseHeader": map[string]int{"status": 0},
	})
}

// parseFilter splits a `field:"value"` (or field:value) expression
func parseFilter(expr string) (string, string, bool) {
	idx := strings.Index(expr, ":")
	if idx < 0 {
		return "", "", false
	}

	field := expr[:idx]
	value := expr[idx+1:]
	value = strings.TrimPrefix(value, `"`)
	value = strings.TrimSuffix(value, `"`)
	value = strings.ReplaceAll(value, `\"`, `"`)

	return field, value, true
}

func docMatchesFilter(doc solrDocument, field, value string) bool {
	raw, ok := doc[field]
	if ok == false {
		return false
	}

	switch v := raw.(type) {
	case []interface{}:
		for _, item := range v {
			if fmt.Sprintf("%v", item) == value {
				return true
			}
		}
		return false
	default:
		return fmt.Sprintf("%v", raw) == value
	}
}

func (m *mockSolr) matchDocs(req *solrRequestJSON) []solrDocument {
	var matched []solrDocument

	for _, doc := range m.visible {
		ok := true

		for _, fq := range req.Params.Fq {
			field, value, parsed := parseFilter(fq)
			if parsed == false || docMatchesFilter(doc, field, value) == false {
				ok = false
				break
			}
		}

		if ok == true {
			matched = append(matched, doc)
		}
	}

	// deterministic order
	sort.Slice(matched, func(i, j int) bool {
		return fmt.Sprintf("%v", matched[i]["id"]) < fmt.Sprintf("%v", matched[j]["id"])
	})

	return matched
}

func (m *mockSolr) computeFacets(req *solrRequestJSON, matched []solrDocument) map[string]interface{} {
	facets := map[string]interface{}{
		"count": len(matched),
	}

	for key, f := range req.Facets {
		switch f.Type {
		case "terms":
			counts := make(map[string]int)

			for _, doc := range matched {
				switch v := doc[f.Field].(type) {
				case nil:
				case []interface{}:
					for _, item := range v {
						counts[fmt.Sprintf("%v", item)]++
					}
				default:
					counts[fmt.Sprintf("%v", v)]++
				}
			}

			var buckets []map[string]interface{}
			vals := make([]string, 0, len(counts))
			for val := range counts {
				vals = append(vals, val)
			}
			sort.Strings(vals)

			for _, val := range vals {
				buckets = append(buckets, map[string]interface{}{"val": val, "count": counts[val]})
			}

			facets[key] = map[string]interface{}{"buckets": buckets}

		case "range":
			block := m.computeRangeFacet(f, matched)
			facets[key] = block
		}
	}

	return facets
}

func (m *mockSolr) computeRangeFacet(f solrRequestFacet, matched []solrDocument) map[string]interface{} {
	start, end, gap := *f.Start, *f.End, *f.Gap

	numBuckets := 0
	if gap > 0 {
		numBuckets = (end - start + gap - 1) / gap
	}

	bucketCounts := make([]int, numBuckets)
	before, after, between := 0, 0, 0

	for _, doc := range matched {
		raw, ok := doc[f.Field]
		if ok == false {
			continue
		}

		val, err := strconv.ParseFloat(fmt.Sprintf("%v", raw), 64)
		if err != nil {
			continue
		}

		switch {
		case val < float64(start):
			before++
		case val >= float64(end):
			after++
		default:
			bucketCounts[(int(val)-start)/gap]++
			between++
		}
	}

	var buckets []map[string]interface{}
	for i, count := range bucketCounts {
		buckets = append(buckets, map[string]interface{}{"val": start + i*gap, "count": count})
	}

	block := map[string]interface{}{"buckets": buckets}

	other := map[string]int{}
	switch f.Other {
	case facetRangeOtherBefore:
		other["before"] = before
	case facetRangeOtherAfter:
		other["after"] = after
	case facetRangeOtherBetween:
		other["between"] = between
	case facetRangeOtherAll:
		other["before"] = before
		other["after"] = after
		other["between"] = between
	}

	for key, count := range other {
		block[key] = map[string]int{"count": count}
	}

	return block
}

func (m *mockSolr) handleSelect(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var req solrRequestJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		m.t.Errorf("mock select: bad request body: %s", err.Error())
		return
	}

	m.lastSelect = &req

	if m.failSelect == true {
		m.failSelect = false
		m.writeJSON(w, map[string]interface{}{
			"responseHeader": map[string]int{"status": 400},
			"error":          map[string]interface{}{"code": 400, "msg": "undefined field frobnicate"},
		})
		return
	}

	matched := m.matchDocs(&req)

	allMatched := matched
	total := len(matched)

	if req.Params.Start < len(matched) {
		matched = matched[req.Params.Start:]
	} else {
		matched = nil
	}

	if req.Params.Rows < len(matched) {
		matched = matched[:req.Params.Rows]
	}

	body := map[string]interface{}{
		"responseHeader": map[string]int{"status": 0},
		"response": map[string]interface{}{
			"numFound": total,
			"start":    req.Params.Start,
			"docs":     matched,
		},
	}

	if len(req.Facets) > 0 {
		body["facets"] = m.computeFacets(&req, allMatched)
	}

	m.writeJSON(w, body)
}

func (m *mockSolr) handleAddDocs(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var docs []solrDocument
	if err := json.NewDecoder(r.Body).Decode(&docs); err != nil {
		m.t.Errorf("mock update: bad docs body: %s", err.Error())
		return
	}

	for _, doc := range docs {
		m.ops = append(m.ops, mockOp{add: doc})
	}

	m.ok(w)
}

func (m *mockSolr) handleUpdate(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r.URL.Query().Get("commit") == "true" || r.URL.Query().Get("softCommit") == "true" {
		for _, op := range m.ops {
			switch {
			case op.add != nil:
				m.visible[fmt.Sprintf("%v", op.add["id"])] = op.add
			case op.del != nil && op.del.ID != "":
				delete(m.visible, op.del.ID)
			case op.del != nil && op.del.Query != "":
				field, value, parsed := parseFilter(op.del.Query)
				if parsed == false {
					continue
				}
				for id, doc := range m.visible {
					if docMatchesFilter(doc, field, value) == true {
						delete(m.visible, id)
					}
				}
			}
		}

		m.ops = nil
		m.ok(w)
		return
	}

	var body solrDeleteBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		m.t.Errorf("mock update: bad delete body: %s", err.Error())
		return
	}

	del := body.Delete
	m.ops = append(m.ops, mockOp{del: &del})

	m.ok(w)
}

func (m *mockSolr) handleSchema(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var actions map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&actions); err != nil {
		m.t.Errorf("mock schema: bad body: %s", err.Error())
		return
	}

	for action, raw := range actions {
		switch action {
		case "add-field", "replace-field":
			var f solrSchemaFieldDef
			require.NoError(m.t, json.Unmarshal(raw, &f))
			m.fields[f.Name] = f

		case "delete-field":
			var f struct {
				Name string `json:"name"`
			}
			require.NoError(m.t, json.Unmarshal(raw, &f))
			delete(m.fields, f.Name)

		case "add-copy-field":
			var cf solrSchemaCopyFieldDef
			require.NoError(m.t, json.Unmarshal(raw, &cf))
			m.copyFields = append(m.copyFields, cf)

		case "delete-copy-field":
			var cf solrSchemaCopyFieldDef
			require.NoError(m.t, json.Unmarshal(raw, &cf))

			var kept []solrSchemaCopyFieldDef
			for _, b := range m.copyFields {
				if b != cf {
					kept = append(kept, b)
				}
			}
			m.copyFields = kept

		case "add-field-type":
			var ft struct {
				Name string `json:"name"`
			}
			require.NoError(m.t, json.Unmarshal(raw, &ft))
			m.fieldTypes[ft.Name] = true

		default:
			m.t.Errorf("mock schema: unhandled action [%s]", action)
		}
	}

	m.ok(w)
}

func (m *mockSolr) handleSchemaFields(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(m.fields))
	for name := range m.fields {
		names = append(names, name)
	}
	sort.Strings(names)

	fields := make([]solrSchemaFieldDef, 0, len(names))
	for _, name := range names {
		fields = append(fields, m.fields[name])
	}

	m.writeJSON(w, map[string]interface{}{
		"responseHeader": map[string]int{"status": 0},
		"fields":         fields,
	})
}

func (m *mockSolr) handleSchemaCopyFields(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.writeJSON(w, map[string]interface{}{
		"responseHeader": map[string]int{"status": 0},
		"copyFields":     m.copyFields,
	})
}

func (m *mockSolr) handleConfig(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var actions map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&actions); err != nil {
		m.t.Errorf("mock config: bad body: %s", err.Error())
		return
	}

	for action := range actions {
		m.configActions = append(m.configActions, action)
	}

	m.ok(w)
}

// test fixtures

func newTestConfig(solrHost string) *catalogConfig {
	cfg := &catalogConfig{
		Solr: catalogConfigSolr{
			Host: solrHost,
			Core: "catalog",
		},
	}

	cfg.applyDefaults()

	return cfg
}

// newTestRegistry wires the catalog entity types against a mock engine
func newTestRegistry(t *testing.T) (*mockSolr, *solrRegistry) {
	mock := newMockSolr(t)

	cfg := newTestConfig(mock.server.URL)
	client := newSolrClient(&cfg.Solr)

	reg := newSolrRegistry(cfg, client)
	require.NoError(t, registerCatalogEntities(reg))

	return mock, reg
}

// newOfflineRegistry builds a registry that never talks to an engine
func newOfflineRegistry(t *testing.T) *solrRegistry {
	cfg := newTestConfig("http://localhost:8983/solr")
	client := newSolrClient(&cfg.Solr)

	reg := newSolrRegistry(cfg, client)
	require.NoError(t, registerCatalogEntities(reg))

	return reg
}
