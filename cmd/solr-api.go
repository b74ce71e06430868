package main

// solr wire structures, for the select handler (JSON request API), the update
// handler, and the schema/config admin endpoints

type solrRequestParams struct {
	DefType string   `json:"defType,omitempty"`
	Sort    string   `json:"sort,omitempty"`
	Start   int      `json:"start"`
	Rows    int      `json:"rows"`
	Fl      []string `json:"fl,omitempty"`
	Fq      []string `json:"fq,omitempty"`
	Q       string   `json:"q,omitempty"`
	Qf      string   `json:"qf,omitempty"`
}

type solrRequestFacet struct {
	Type     string `json:"type"`
	Field    string `json:"field"`
	Limit    int    `json:"limit,omitempty"`
	MinCount int    `json:"mincount,omitempty"`

	// range facet parameters
	Start *int   `json:"start,omitempty"`
	End   *int   `json:"end,omitempty"`
	Gap   *int   `json:"gap,omitempty"`
	Other string `json:"other,omitempty"`
}

type solrRequestJSON struct {
	Params solrRequestParams           `json:"params"`
	Facets map[string]solrRequestFacet `json:"facet,omitempty"`
}

type solrResponseHeader struct {
	Status int `json:"status,omitempty"`
	QTime  int `json:"QTime,omitempty"`
}

type solrDocument map[string]interface{}

type solrBucket struct {
	Val   interface{} `json:"val"`
	Count int         `json:"count"`
}

type solrBucketOther struct {
	Count int `json:"count"`
}

type solrResponseFacet struct {
	Count   int              `json:"count"`
	Buckets []solrBucket     `json:"buckets,omitempty"`
	Before  *solrBucketOther `json:"before,omitempty"`
	After   *solrBucketOther `json:"after,omitempty"`
	Between *solrBucketOther `json:"between,omitempty"`
}

type solrResponseFacets map[string]solrResponseFacet

type solrResponseDocuments struct {
	NumFound int            `json:"numFound,omitempty"`
	Start    int            `json:"start,omitempty"`
	MaxScore float32        `json:"maxScore,omitempty"`
	Docs     []solrDocument `json:"docs,omitempty"`
}

type solrError struct {
	Metadata []string `json:"metadata,omitempty"`
	Msg      string   `json:"msg,omitempty"`
	Code     int      `json:"code,omitempty"`
}

// a catch-all for search and ping responses
type solrResponse struct {
	ResponseHeader solrResponseHeader     `json:"responseHeader,omitempty"`
	Response       solrResponseDocuments  `json:"response,omitempty"`
	FacetsRaw      map[string]interface{} `json:"facets,omitempty"`
	Facets         solrResponseFacets     // parsed from FacetsRaw
	Error          solrError              `json:"error,omitempty"`
	Status         string                 `json:"status,omitempty"`
}

// update handler bodies

type solrDeleteBody struct {
	Delete solrDeleteSpec `json:"delete"`
}

type solrDeleteSpec struct {
	ID    string `json:"id,omitempty"`
	Query string `json:"query,omitempty"`
}

// schema admin bodies; each POST carries exactly one action key

type solrSchemaFieldDef struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Indexed     bool   `json:"indexed"`
	Stored      bool   `json:"stored"`
	MultiValued bool   `json:"multiValued"`
}

type solrSchemaCopyFieldDef struct {
	Source string `json:"source"`
	Dest   string `json:"dest"`
}

type solrSchemaFieldsResponse struct {
	ResponseHeader solrResponseHeader   `json:"responseHeader,omitempty"`
	Fields         []solrSchemaFieldDef `json:"fields,omitempty"`
	Error          solrError            `json:"error,omitempty"`
}

type solrSchemaCopyFieldsResponse struct {
	ResponseHeader solrResponseHeader       `json:"responseHeader,omitempty"`
	CopyFields     []solrSchemaCopyFieldDef `json:"copyFields,omitempty"`
	Error          solrError                `json:"error,omitempty"`
}
