package main

// facet and facetRange are per-request aggregation descriptors.  a facet binds
// to one declared attribute and tracks the filter values currently selected by
// the client (or the configured defaults); a facetRange additionally carries a
// numeric bucket definition.  neither is ever persisted.

type facet struct {
	Attribute     string   // bare attribute name (not namespaced)
	Label         string   // display label
	Values        []string // currently selected filter values
	DefaultValues []string
	UsingDefault  bool
}

func newFacet(attribute, label string, defaultValues []string) *facet {
	return &facet{
		Attribute:     attribute,
		Label:         label,
		DefaultValues: defaultValues,
	}
}

func (f *facet) useDefault() {
	f.Values = append([]string{}, f.DefaultValues...)
	f.UsingDefault = true
}

func (f *facet) setValues(values []string) {
	f.Values = values
	f.UsingDefault = slicesAreEqual(values, f.DefaultValues, false)
}

func (f *facet) selectedValues() []string {
	return f.Values
}

func (f *facet) attributeName() string {
	return f.Attribute
}

// requestFacet builds the terms aggregation block for this facet
func (f *facet) requestFacet(field string) solrRequestFacet {
	return solrRequestFacet{
		Type:     "terms",
		Field:    field,
		Limit:    facetBucketLimit,
		MinCount: 1,
	}
}

// out-of-range counting policies for range facets
const (
	facetRangeOtherNone    = "none"
	facetRangeOtherBefore  = "before"
	facetRangeOtherAfter   = "after"
	facetRangeOtherBetween = "between"
	facetRangeOtherAll     = "all"
)

const facetBucketLimit = 100

type facetRange struct {
	facet
	Start int
	End   int
	Gap   int
	Other string // out-of-range counting policy
}

func newFacetRange(attribute, label string, start, end, gap int, other string) *facetRange {
	if other == "" {
		other = facetRangeOtherNone
	}

	return &facetRange{
		facet: facet{Attribute: attribute, Label: label},
		Start: start,
		End:   end,
		Gap:   gap,
		Other: other,
	}
}

func (f *facetRange) requestFacet(field string) solrRequestFacet {
	start := f.Start
	end := f.End
	gap := f.Gap

	return solrRequestFacet{
		Type:  "range",
		Field: field,
		Start: &start,
		End:   &end,
		Gap:   &gap,
		Other: f.Other,
	}
}

// searchFacet is what search() accepts: plain facets and range facets
type searchFacet interface {
	attributeName() string
	selectedValues() []string
	requestFacet(field string) solrRequestFacet
}
