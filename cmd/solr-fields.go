package main

import (
	"fmt"
)

// field descriptors: declarative metadata mapping one entity attribute to one
// solr document field.  descriptors are built once, at entity registration
// time, and never mutated afterward.

type solrField struct {
	Name          string // solr-side field name (alphanumeric + underscore)
	AttributeName string // in-memory attribute name; defaults to Name
	Type          string // solr field type (string, text_general, pdate, ...)
	Indexed       bool
	Stored        bool
	Multivalued   bool

	// foreign-key metadata, consumed only by the registry
	LinkedEntity     string // target entity type name
	ReversedBy       string // attribute exposed on the target entity
	ReversedMultiple bool   // whether the inverse relation yields many
}

func (f *solrField) isForeignKey() bool {
	return f.LinkedEntity != ""
}

// wireName is the field name actually stored/queried in solr.  namespacing by
// entity type prevents collisions across entity types sharing one collection.
func (f *solrField) wireName(entityName string) string {
	return fmt.Sprintf("%s_%s", entityName, f.Name)
}

func newSolrField(name, solrType string, multivalued bool) *solrField {
	return &solrField{
		Name:          name,
		AttributeName: name,
		Type:          solrType,
		Indexed:       true,
		Stored:        true,
		Multivalued:   multivalued,
	}
}

func newStringField(name string) *solrField {
	return newSolrField(name, "string", false)
}

func newMultiStringField(name string) *solrField {
	return newSolrField(name, "strings", true)
}

func newTextField(name string) *solrField {
	return newSolrField(name, "text_general", false)
}

// date fields use a paired singular/plural solr type depending on cardinality
func newDateField(name string) *solrField {
	return newSolrField(name, "pdate", false)
}

func newMultiDateField(name string) *solrField {
	return newSolrField(name, "pdates", true)
}

func newIntField(name string) *solrField {
	return newSolrField(name, "pint", false)
}

func newMultiIntField(name string) *solrField {
	return newSolrField(name, "pints", true)
}

func newFloatField(name string) *solrField {
	return newSolrField(name, "pfloat", false)
}

func newBooleanField(name string) *solrField {
	return newSolrField(name, "boolean", false)
}

// json fields hold serialized structured values; stored only, never queried
func newJSONField(name string) *solrField {
	f := newSolrField(name, "string", false)
	f.Indexed = false
	return f
}

// newForeignKeyField declares a relation to another entity type.  the field
// itself holds target entity ids; reversedBy names the attribute the registry
// synthesizes on the target type, and reversedMultiple says whether that
// inverse attribute yields one source entity or many.
func newForeignKeyField(name, linkedEntity, reversedBy string, reversedMultiple, multivalued bool) *solrField {
	solrType := "string"
	if multivalued == true {
		solrType = "strings"
	}

	f := newSolrField(name, solrType, multivalued)
	f.LinkedEntity = linkedEntity
	f.ReversedBy = reversedBy
	f.ReversedMultiple = reversedMultiple

	return f
}

// asAttribute renames the in-memory attribute while keeping the solr-side name
func (f *solrField) asAttribute(attr string) *solrField {
	f.AttributeName = attr
	return f
}
