package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
)

// solrClient wraps the blocking HTTP round trips to one solr core: the select
// handler (JSON request API), the update handler, and the schema/config admin
// endpoints.  the underlying http.Client is safe for concurrent use.

type solrClient struct {
	client    *http.Client
	selectURL string
	updateURL string
	docsURL   string
	schemaURL string
	configURL string
}

// queryError wraps a query-syntax error reported by solr.  the raw engine
// error never escapes this component boundary.
type queryError struct {
	code int
	msg  string
}

func (e *queryError) Error() string {
	return fmt.Sprintf("solr query error (%d): %s", e.code, e.msg)
}

func newSolrClient(cfg *catalogConfigSolr) *solrClient {
	connTimeout := integerWithMinimum(cfg.ConnTimeout, 5)
	readTimeout := integerWithMinimum(cfg.ReadTimeout, 5)

	client := &http.Client{
		Timeout: time.Duration(readTimeout) * time.Second,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   time.Duration(connTimeout) * time.Second,
				KeepAlive: 60 * time.Second,
			}).DialContext,
			MaxIdleConns:        100, // we are hitting one solr host, so
			MaxIdleConnsPerHost: 100, // these two values can be the same
			IdleConnTimeout:     90 * time.Second,
		},
	}

	core := fmt.Sprintf("%s/%s", cfg.Host, cfg.Core)

	s := solrClient{
		client:    client,
		selectURL: fmt.Sprintf("%s/select", core),
		updateURL: fmt.Sprintf("%s/update", core),
		docsURL:   fmt.Sprintf("%s/update/json/docs", core),
		schemaURL: fmt.Sprintf("%s/schema", core),
		configURL: fmt.Sprintf("%s/config", core),
	}

	log.Printf("[SOLR] select url = [%s]", s.selectURL)
	log.Printf("[SOLR] update url = [%s]", s.updateURL)
	log.Printf("[SOLR] schema url = [%s]", s.schemaURL)

	return &s
}

func (s *solrClient) convertFacets(res *solrResponse) error {
	// convert the solr "facets" block to internal structures.
	// due to its structure, we cannot read it directly into arbitrary structs
	// (it contains both named facet blocks along with a "count" field that is
	// not such a block), so we read it as map[string]interface{}, strip out
	// the keys that are not blocks, and decode the rest with mapstructure.

	facetsRaw := make(map[string]interface{})
	var facets solrResponseFacets

	for key, val := range res.FacetsRaw {
		switch val.(type) {
		case map[string]interface{}:
			facetsRaw[key] = val
		}
	}

	cfg := &mapstructure.DecoderConfig{
		Metadata:   nil,
		Result:     &facets,
		TagName:    "json",
		ZeroFields: true,
	}

	dec, _ := mapstructure.NewDecoder(cfg)

	if mapDecErr := dec.Decode(facetsRaw); mapDecErr != nil {
		log.Printf("mapstructure.Decode() failed: %s", mapDecErr.Error())
		return fmt.Errorf("failed to decode solr facet map")
	}

	res.Facets = facets

	return nil
}

func (s *solrClient) query(solrReq *solrRequestJSON) (*solrResponse, error) {
	jsonBytes, jsonErr := json.Marshal(solrReq)
	if jsonErr != nil {
		log.Printf("Marshal() failed: %s", jsonErr.Error())
		return nil, fmt.Errorf("failed to marshal solr request")
	}

	req, reqErr := http.NewRequest("GET", s.selectURL, bytes.NewBuffer(jsonBytes))
	if reqErr != nil {
		log.Printf("NewRequest() failed: %s", reqErr.Error())
		return nil, fmt.Errorf("failed to create solr request")
	}

	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	res, resErr := s.client.Do(req)
	elapsedMS := int64(time.Since(start) / time.Millisecond)

	if resErr != nil {
		log.Printf("client.Do() failed: %s", resErr.Error())
		log.Printf("ERROR: failed response from GET %s. Elapsed Time: %d (ms)", s.selectURL, elapsedMS)
		return nil, fmt.Errorf("failed to receive solr response")
	}

	defer res.Body.Close()

	var solrRes solrResponse

	decoder := json.NewDecoder(res.Body)

	if decErr := decoder.Decode(&solrRes); decErr != nil {
		log.Printf("Decode() failed: %s", decErr.Error())
		return nil, fmt.Errorf("failed to decode solr response")
	}

	log.Printf("[SOLR] res: header: { status = %d, QTime = %d }. Elapsed Time: %d (ms)", solrRes.ResponseHeader.Status, solrRes.ResponseHeader.QTime, elapsedMS)

	if solrRes.ResponseHeader.Status != 0 {
		log.Printf("[SOLR] error: { code = %d, msg = %s }", solrRes.Error.Code, solrRes.Error.Msg)
		return nil, &queryError{code: solrRes.Error.Code, msg: solrRes.Error.Msg}
	}

	if convErr := s.convertFacets(&solrRes); convErr != nil {
		return nil, convErr
	}

	return &solrRes, nil
}

// post sends a JSON body and decodes the generic solr response envelope
func (s *solrClient) post(url string, body interface{}) (*solrResponse, error) {
	jsonBytes, jsonErr := json.Marshal(body)
	if jsonErr != nil {
		log.Printf("Marshal() failed: %s", jsonErr.Error())
		return nil, fmt.Errorf("failed to marshal solr request")
	}

	req, reqErr := http.NewRequest("POST", url, bytes.NewBuffer(jsonBytes))
	if reqErr != nil {
		log.Printf("NewRequest() failed: %s", reqErr.Error())
		return nil, fmt.Errorf("failed to create solr request")
	}

	req.Header.Set("Content-Type", "application/json")

	res, resErr := s.client.Do(req)
	if resErr != nil {
		log.Printf("client.Do() failed: %s", resErr.Error())
		return nil, fmt.Errorf("failed to receive solr response from %s", url)
	}

	defer res.Body.Close()

	var solrRes solrResponse

	decoder := json.NewDecoder(res.Body)

	if decErr := decoder.Decode(&solrRes); decErr != nil {
		log.Printf("Decode() failed: %s", decErr.Error())
		return nil, fmt.Errorf("failed to decode solr response")
	}

	if solrRes.ResponseHeader.Status != 0 {
		return &solrRes, fmt.Errorf("solr error (%d): %s", solrRes.Error.Code, solrRes.Error.Msg)
	}

	return &solrRes, nil
}

// addDocs submits documents to the update handler.  the documents are not
// visible to searches until a subsequent commit.
func (s *solrClient) addDocs(docs []solrDocument) error {
	if _, err := s.post(s.docsURL, docs); err != nil {
		return err
	}

	return nil
}

func (s *solrClient) deleteByID(id string) error {
	body := solrDeleteBody{Delete: solrDeleteSpec{ID: id}}

	if _, err := s.post(s.updateURL, body); err != nil {
		return err
	}

	return nil
}

func (s *solrClient) deleteByQuery(query string) error {
	body := solrDeleteBody{Delete: solrDeleteSpec{Query: query}}

	if _, err := s.post(s.updateURL, body); err != nil {
		return err
	}

	return nil
}

// commit makes all prior adds/deletes visible to subsequent searches
func (s *solrClient) commit(soft bool) error {
	url := fmt.Sprintf("%s?commit=true", s.updateURL)
	if soft == true {
		url = fmt.Sprintf("%s?softCommit=true", s.updateURL)
	}

	if _, err := s.post(url, struct{}{}); err != nil {
		return err
	}

	return nil
}

// schemaPost issues one schema-mutation action, e.g. {"add-field": {...}}
func (s *solrClient) schemaPost(action string, body interface{}) error {
	if _, err := s.post(s.schemaURL, map[string]interface{}{action: body}); err != nil {
		return err
	}

	return nil
}

// configPost issues one config action, e.g. {"add-searchcomponent": {...}}
func (s *solrClient) configPost(action string, body interface{}) error {
	if _, err := s.post(s.configURL, map[string]interface{}{action: body}); err != nil {
		return err
	}

	return nil
}

func (s *solrClient) getJSON(url string, result interface{}) error {
	req, reqErr := http.NewRequest("GET", url, nil)
	if reqErr != nil {
		return fmt.Errorf("failed to create solr request")
	}

	res, resErr := s.client.Do(req)
	if resErr != nil {
		log.Printf("client.Do() failed: %s", resErr.Error())
		return fmt.Errorf("failed to receive solr response from %s", url)
	}

	defer res.Body.Close()

	decoder := json.NewDecoder(res.Body)

	if decErr := decoder.Decode(result); decErr != nil {
		log.Printf("Decode() failed: %s", decErr.Error())
		return fmt.Errorf("failed to decode solr response")
	}

	return nil
}

// schemaFields lists the fields currently defined in the live schema
func (s *solrClient) schemaFields() ([]solrSchemaFieldDef, error) {
	var res solrSchemaFieldsResponse

	if err := s.getJSON(fmt.Sprintf("%s/fields", s.schemaURL), &res); err != nil {
		return nil, err
	}

	if res.ResponseHeader.Status != 0 {
		return nil, fmt.Errorf("solr error (%d): %s", res.Error.Code, res.Error.Msg)
	}

	return res.Fields, nil
}

// schemaCopyFields lists the copy-field bindings in the live schema
func (s *solrClient) schemaCopyFields() ([]solrSchemaCopyFieldDef, error) {
	var res solrSchemaCopyFieldsResponse

	if err := s.getJSON(fmt.Sprintf("%s/copyfields", s.schemaURL), &res); err != nil {
		return nil, err
	}

	if res.ResponseHeader.Status != 0 {
		return nil, fmt.Errorf("solr error (%d): %s", res.Error.Code, res.Error.Msg)
	}

	return res.CopyFields, nil
}

func (s *solrClient) ping() error {
	solrReq := solrRequestJSON{
		Params: solrRequestParams{
			Q:    "*:*",
			Rows: 0,
		},
	}

	if _, err := s.query(&solrReq); err != nil {
		if strings.Contains(err.Error(), "refused") {
			return fmt.Errorf("solr refused connection")
		}
		return err
	}

	return nil
}
