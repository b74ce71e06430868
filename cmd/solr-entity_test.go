package main

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEntityInitializesAllAttributes(t *testing.T) {
	reg := newOfflineRegistry(t)

	e, err := reg.newEntity("dataset")
	require.NoError(t, err)

	// every declared attribute present, nil unless stamped at construction
	for _, pair := range e.def.fields {
		_, present := e.attrs[pair.attr]
		assert.True(t, present, "attribute [%s] missing", pair.attr)
	}

	assert.Nil(t, e.get("title"))
	assert.Nil(t, e.get("year"))

	assert.False(t, e.created().IsZero())
	assert.True(t, e.created().Equal(e.modified()))
}

func TestNewEntityUnknownType(t *testing.T) {
	reg := newOfflineRegistry(t)

	_, err := reg.newEntity("widget")
	require.Error(t, err)
}

func TestEntityIDsAreUniqueAndParseable(t *testing.T) {
	reg := newOfflineRegistry(t)

	e1, err := reg.newEntity("project")
	require.NoError(t, err)

	e2, err := reg.newEntity("project")
	require.NoError(t, err)

	assert.NotEqual(t, e1.id, e2.id)

	_, err = uuid.Parse(e1.id)
	assert.NoError(t, err)
}

func TestSetRejectsUndeclaredAttribute(t *testing.T) {
	reg := newOfflineRegistry(t)

	e, err := reg.newEntity("project")
	require.NoError(t, err)

	assert.NoError(t, e.set("title", "Genome Atlas"))
	assert.Error(t, e.set("color", "blue"))
}

func TestDocumentRoundTrip(t *testing.T) {
	reg := newOfflineRegistry(t)

	created := time.Date(2021, 4, 2, 8, 34, 35, 0, time.UTC)

	e, err := reg.newEntity("dataset")
	require.NoError(t, err)

	require.NoError(t, e.set("title", "Great dataset!"))
	require.NoError(t, e.set("tags", []string{"genomics", "rna-seq"}))
	require.NoError(t, e.set("year", 2021))
	require.NoError(t, e.set("open_access", true))
	require.NoError(t, e.set("dataset_created", created))

	doc := e.toDocument()

	// wire names are namespaced by entity type
	assert.Equal(t, e.id, doc["id"])
	assert.Equal(t, "Great dataset!", doc["dataset_title"])
	assert.Equal(t, []string{"genomics", "rna-seq"}, doc["dataset_tags"])
	assert.Equal(t, 2021, doc["dataset_year"])
	assert.Equal(t, true, doc["dataset_open_access"])
	assert.Equal(t, "2021-04-02T08:34:35Z", doc["dataset_dataset_created"])

	// nil attributes are omitted entirely
	_, present := doc["dataset_notes"]
	assert.False(t, present)

	back, err := reg.def("dataset").fromDocument(reg, doc)
	require.NoError(t, err)

	assert.Equal(t, e.id, back.id)
	assert.Equal(t, "Great dataset!", back.get("title"))
	assert.Equal(t, []string{"genomics", "rna-seq"}, back.get("tags"))
	assert.Equal(t, 2021, back.get("year"))
	assert.Equal(t, true, back.get("open_access"))
	assert.True(t, back.get("dataset_created").(time.Time).Equal(created))
	assert.Nil(t, back.get("notes"))
}

func TestNamespacedWireNamesAreCollisionFree(t *testing.T) {
	reg := newOfflineRegistry(t)

	seen := make(map[string]string)

	for _, name := range reg.order {
		def := reg.defs[name]

		for _, pair := range def.fields {
			wire := pair.field.wireName(def.name)

			assert.Equal(t, def.name+"_"+pair.field.Name, wire)

			if owner, dup := seen[wire]; dup == true {
				t.Errorf("wire name [%s] declared by both [%s] and [%s]", wire, owner, def.name)
			}

			seen[wire] = def.name
		}
	}
}

func TestFromDocumentStripsIDPrefix(t *testing.T) {
	reg := newOfflineRegistry(t)

	doc := solrDocument{
		"id":            "dataset_4a1b2c3d",
		"dataset_title": "Indexed",
	}

	e, err := reg.def("dataset").fromDocument(reg, doc)
	require.NoError(t, err)

	assert.Equal(t, "4a1b2c3d", e.id)
	assert.Equal(t, "Indexed", e.get("title"))
}

func TestParseSolrDateAcceptsBothFormats(t *testing.T) {
	want := time.Date(2021, 4, 2, 8, 34, 35, 587000000, time.UTC)

	fractional, err := parseSolrDate("2021-04-02T08:34:35.587000Z")
	require.NoError(t, err)
	assert.True(t, fractional.Equal(want))

	plain, err := parseSolrDate("2021-04-02T08:34:35Z")
	require.NoError(t, err)
	assert.True(t, plain.Equal(want.Truncate(time.Second)))

	// solr normalizes stored dates to millisecond precision
	millis, err := parseSolrDate("2021-04-02T08:34:35.587Z")
	require.NoError(t, err)
	assert.True(t, millis.Equal(want))

	_, err = parseSolrDate("04/02/2021 8:34am")
	assert.Error(t, err)

	_, err = parseSolrDate("2021-04-02")
	assert.Error(t, err)
}

func TestFromDocumentRejectsUnparseableDate(t *testing.T) {
	reg := newOfflineRegistry(t)

	doc := solrDocument{
		"id":              "dataset_bad",
		"dataset_created": "yesterday",
	}

	_, err := reg.def("dataset").fromDocument(reg, doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unparseable date")
}

func TestMultivaluedCoercion(t *testing.T) {
	f := newMultiStringField("tags")

	tests := []struct {
		name string
		raw  interface{}
		want []string
	}{
		{name: "list", raw: []interface{}{"a", "b"}, want: []string{"a", "b"}},
		{name: "string list", raw: []string{"a", "b"}, want: []string{"a", "b"}},
		{name: "joined string", raw: "a, b ,c", want: []string{"a", "b", "c"}},
		{name: "single value", raw: "solo", want: []string{"solo"}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := coerceAttribute(f, test.raw)
			require.NoError(t, err)
			assert.Equal(t, test.want, got)
		})
	}
}

func TestSingularFieldNeverHoldsList(t *testing.T) {
	f := newStringField("title")

	// a list arriving for a singular field collapses to its first element
	got, err := coerceAttribute(f, []interface{}{"first", "second"})
	require.NoError(t, err)
	assert.Equal(t, "first", got)

	got, err = coerceAttribute(f, []interface{}{})
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestScalarCoercion(t *testing.T) {
	year, err := coerceAttribute(newIntField("year"), float64(2021))
	require.NoError(t, err)
	assert.Equal(t, 2021, year)

	year, err = coerceAttribute(newIntField("year"), "2021")
	require.NoError(t, err)
	assert.Equal(t, 2021, year)

	_, err = coerceAttribute(newIntField("year"), "not a year")
	assert.Error(t, err)

	open, err := coerceAttribute(newBooleanField("open_access"), "true")
	require.NoError(t, err)
	assert.Equal(t, true, open)

	score, err := coerceAttribute(newFloatField("score"), "1.5")
	require.NoError(t, err)
	assert.Equal(t, 1.5, score)
}

func TestMultivaluedDateCoercion(t *testing.T) {
	f := newMultiDateField("milestones")

	got, err := coerceAttribute(f, []interface{}{"2021-04-02T08:34:35Z", "2022-01-01T00:00:00.000000Z"})
	require.NoError(t, err)

	dates := got.([]time.Time)
	require.Len(t, dates, 2)
	assert.True(t, dates[0].Equal(time.Date(2021, 4, 2, 8, 34, 35, 0, time.UTC)))
	assert.True(t, dates[1].Equal(time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)))

	_, err = coerceAttribute(f, []interface{}{"nope"})
	assert.Error(t, err)
}

func TestToAPIDictFormatsDates(t *testing.T) {
	reg := newOfflineRegistry(t)

	e, err := reg.newEntity("project")
	require.NoError(t, err)

	require.NoError(t, e.set("title", "Atlas"))
	require.NoError(t, e.set("start_date", time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)))

	dict := e.toAPIDict()

	assert.Equal(t, e.id, dict["id"])
	assert.Equal(t, "Atlas", dict["title"])
	assert.Equal(t, "2020-06-01T00:00:00Z", dict["start_date"])
	assert.Nil(t, dict["end_date"])
}

func TestFieldConstructors(t *testing.T) {
	assert.Equal(t, "string", newStringField("title").Type)
	assert.Equal(t, "strings", newMultiStringField("tags").Type)
	assert.True(t, newMultiStringField("tags").Multivalued)
	assert.Equal(t, "text_general", newTextField("notes").Type)
	assert.Equal(t, "pdate", newDateField("when").Type)
	assert.Equal(t, "pint", newIntField("year").Type)
	assert.Equal(t, "boolean", newBooleanField("flag").Type)

	j := newJSONField("extra")
	assert.False(t, j.Indexed)
	assert.True(t, j.Stored)

	fk := newForeignKeyField("studies", "study", "datasets", true, true)
	assert.True(t, fk.isForeignKey())
	assert.Equal(t, "strings", fk.Type)
	assert.Equal(t, "datasets", fk.ReversedBy)
	assert.True(t, fk.ReversedMultiple)

	renamed := newStringField("doi").asAttribute("identifier")
	assert.Equal(t, "doi", renamed.Name)
	assert.Equal(t, "identifier", renamed.AttributeName)
}
