package main

import (
	"fmt"
	"log"
	"strings"
)

// the schema administrator reconciles declared field descriptors against the
// live solr schema.  primary mutations propagate errors to the caller;
// best-effort cleanup (copy-field unbinding during reconciliation) logs and
// continues.

// derived per-entity-type text fields, populated via copy-field rules from
// the configured searchable attributes
const (
	derivedFulltextSuffix     = "fulltext"
	derivedFuzzySuffix        = "fuzzy"
	derivedAutocompleteSuffix = "autocomplete"
)

// field types backing the fuzzy and autocomplete derived fields
const (
	fuzzyFieldType        = "text_fuzzy"
	autocompleteFieldType = "text_autocomplete"
)

type solrSchemaAdmin struct {
	cfg    *catalogConfig
	client *solrClient
}

func newSolrSchemaAdmin(cfg *catalogConfig, client *solrClient) *solrSchemaAdmin {
	return &solrSchemaAdmin{cfg: cfg, client: client}
}

func (a *solrSchemaAdmin) fieldDef(name, solrType string, indexed, stored, multivalued bool) solrSchemaFieldDef {
	return solrSchemaFieldDef{
		Name:        name,
		Type:        solrType,
		Indexed:     indexed,
		Stored:      stored,
		MultiValued: multivalued,
	}
}

func (a *solrSchemaAdmin) createField(name, solrType string, indexed, stored, multivalued bool) error {
	log.Printf("[SCHEMA] add-field [%s] type [%s]", name, solrType)
	return a.client.schemaPost("add-field", a.fieldDef(name, solrType, indexed, stored, multivalued))
}

// updateField replaces an existing field definition.  a field missing from
// the live schema is a warning, not a failure; reconciliation may run against
// a partially initialized schema.
func (a *solrSchemaAdmin) updateField(name, solrType string, indexed, stored, multivalued bool) error {
	exists, err := a.fieldExists(name)
	if err != nil {
		return err
	}

	if exists == false {
		log.Printf("[SCHEMA] cannot update nonexistent field [%s]; creating instead", name)
		return a.createField(name, solrType, indexed, stored, multivalued)
	}

	log.Printf("[SCHEMA] replace-field [%s] type [%s]", name, solrType)
	return a.client.schemaPost("replace-field", a.fieldDef(name, solrType, indexed, stored, multivalued))
}

func (a *solrSchemaAdmin) deleteField(name string) error {
	exists, err := a.fieldExists(name)
	if err != nil {
		return err
	}

	if exists == false {
		log.Printf("[SCHEMA] cannot delete nonexistent field [%s]; skipping", name)
		return nil
	}

	log.Printf("[SCHEMA] delete-field [%s]", name)
	return a.client.schemaPost("delete-field", map[string]string{"name": name})
}

func (a *solrSchemaAdmin) fieldExists(name string) (bool, error) {
	fields, err := a.client.schemaFields()
	if err != nil {
		return false, err
	}

	for _, f := range fields {
		if f.Name == name {
			return true, nil
		}
	}

	return false, nil
}

// searchableAttributes lists the attributes feeding the derived text fields
// for one entity type, deduplicated; defaults to title only
func (a *solrSchemaAdmin) searchableAttributes(def *entityDef) []string {
	if attrs := a.cfg.Search.SearchableAttributes[def.name]; len(attrs) > 0 {
		return uniqueStrings(attrs)
	}

	return []string{"title"}
}

func derivedFieldNames(def *entityDef) map[string]string {
	return map[string]string{
		fmt.Sprintf("%s_%s", def.name, derivedFulltextSuffix):     "text_general",
		fmt.Sprintf("%s_%s", def.name, derivedFuzzySuffix):        fuzzyFieldType,
		fmt.Sprintf("%s_%s", def.name, derivedAutocompleteSuffix): autocompleteFieldType,
	}
}

// createOrUpdateFieldsForDef reconciles every declared field for one entity
// type, then (re)builds the derived full-text/fuzzy/autocomplete fields and
// their copy-field bindings.  idempotent: existing bindings are dropped and
// recreated from the current searchable attribute list, so configuration
// changes take effect without manual engine surgery.
func (a *solrSchemaAdmin) createOrUpdateFieldsForDef(def *entityDef, update bool) error {
	for _, pair := range def.fields {
		f := pair.field
		name := f.wireName(def.name)

		var err error
		if update == true {
			err = a.updateField(name, f.Type, f.Indexed, f.Stored, f.Multivalued)
		} else {
			err = a.createField(name, f.Type, f.Indexed, f.Stored, f.Multivalued)
		}

		if err != nil {
			return err
		}
	}

	if err := a.ensureDerivedFieldTypes(); err != nil {
		return err
	}

	sources := []string{}
	for _, attr := range a.searchableAttributes(def) {
		f := def.fieldMap[attr]
		if f == nil {
			log.Printf("[SCHEMA] entity type [%s] searchable attribute [%s] is not declared; skipping", def.name, attr)
			continue
		}
		sources = append(sources, f.wireName(def.name))
	}

	for derived, solrType := range derivedFieldNames(def) {
		exists, err := a.fieldExists(derived)
		if err != nil {
			return err
		}

		if exists == true {
			a.deleteCopyFieldsTo(derived)
		} else {
			// derived fields are search-only: indexed, not stored
			if err := a.client.schemaPost("add-field", a.fieldDef(derived, solrType, true, false, true)); err != nil {
				return err
			}
		}

		for _, source := range sources {
			log.Printf("[SCHEMA] add-copy-field [%s] -> [%s]", source, derived)
			if err := a.client.schemaPost("add-copy-field", solrSchemaCopyFieldDef{Source: source, Dest: derived}); err != nil {
				return err
			}
		}
	}

	return nil
}

// deleteCopyFieldsTo drops every binding targeting dest.  best effort:
// failures here are logged, not propagated, since a missing binding leaves
// the schema in the state we wanted anyway.
func (a *solrSchemaAdmin) deleteCopyFieldsTo(dest string) {
	bindings, err := a.client.schemaCopyFields()
	if err != nil {
		log.Printf("[SCHEMA] unable to list copy-fields: %s", err.Error())
		return
	}

	for _, b := range bindings {
		if b.Dest != dest {
			continue
		}

		log.Printf("[SCHEMA] delete-copy-field [%s] -> [%s]", b.Source, b.Dest)
		if err := a.client.schemaPost("delete-copy-field", b); err != nil {
			log.Printf("[SCHEMA] delete-copy-field failed (ignored): %s", err.Error())
		}
	}
}

// deleteFieldsForDef tears down one entity type's schema in dependency order:
// copy-field bindings first, then the derived fields they target, then the
// declared fields
func (a *solrSchemaAdmin) deleteFieldsForDef(def *entityDef) error {
	for derived := range derivedFieldNames(def) {
		a.deleteCopyFieldsTo(derived)
	}

	for derived := range derivedFieldNames(def) {
		if err := a.deleteField(derived); err != nil {
			return err
		}
	}

	for _, pair := range def.fields {
		if err := a.deleteField(pair.field.wireName(def.name)); err != nil {
			return err
		}
	}

	return nil
}

// checkSchema reports whether every declared field for the entity type exists
// in the live schema.  a missing field is a false return, not an error, so
// import tooling can gate on it.
func (a *solrSchemaAdmin) checkSchema(def *entityDef) (bool, error) {
	fields, err := a.client.schemaFields()
	if err != nil {
		return false, err
	}

	live := make(map[string]bool)
	for _, f := range fields {
		live[f.Name] = true
	}

	for _, pair := range def.fields {
		name := pair.field.wireName(def.name)
		if live[name] == false {
			log.Printf("[SCHEMA] entity type [%s] field [%s] missing from live schema", def.name, name)
			return false, nil
		}
	}

	return true, nil
}

// fieldTypeMismatch reports whether any declared field's type drifted from
// the live schema's recorded type
func (a *solrSchemaAdmin) fieldTypeMismatch(def *entityDef) (bool, error) {
	fields, err := a.client.schemaFields()
	if err != nil {
		return false, err
	}

	live := make(map[string]string)
	for _, f := range fields {
		live[f.Name] = f.Type
	}

	for _, pair := range def.fields {
		name := pair.field.wireName(def.name)

		liveType, ok := live[name]
		if ok == false {
			continue
		}

		if liveType != pair.field.Type {
			log.Printf("[SCHEMA] entity type [%s] field [%s] type drift: declared [%s], live [%s]", def.name, name, pair.field.Type, liveType)
			return true, nil
		}
	}

	return false, nil
}

// ensureDerivedFieldTypes installs the analyzer-bearing field types backing
// the fuzzy and autocomplete fields.  already-present types are tolerated.
func (a *solrSchemaAdmin) ensureDerivedFieldTypes() error {
	types := []map[string]interface{}{
		{
			"name":  fuzzyFieldType,
			"class": "solr.TextField",
			"analyzer": map[string]interface{}{
				"tokenizer": map[string]string{"class": "solr.StandardTokenizerFactory"},
				"filters": []map[string]string{
					{"class": "solr.LowerCaseFilterFactory"},
				},
			},
		},
		{
			"name":  autocompleteFieldType,
			"class": "solr.TextField",
			"analyzer": map[string]interface{}{
				"tokenizer": map[string]string{"class": "solr.StandardTokenizerFactory"},
				"filters": []map[string]string{
					{"class": "solr.LowerCaseFilterFactory"},
					{"class": "solr.EdgeNGramFilterFactory", "minGramSize": "2", "maxGramSize": "20"},
				},
			},
		},
	}

	for _, t := range types {
		if err := a.client.schemaPost("add-field-type", t); err != nil {
			if strings.Contains(err.Error(), "already exists") {
				continue
			}
			log.Printf("[SCHEMA] add-field-type failed (ignored): %s", err.Error())
		}
	}

	return nil
}

// configureSuggester installs the suggest search component and request
// handler over the autocomplete fields
func (a *solrSchemaAdmin) configureSuggester(defs []*entityDef) error {
	suggesters := []map[string]string{}

	for _, def := range defs {
		suggesters = append(suggesters, map[string]string{
			"name":                     fmt.Sprintf("%s_suggester", def.name),
			"lookupImpl":               "AnalyzingInfixLookupFactory",
			"dictionaryImpl":           "DocumentDictionaryFactory",
			"field":                    fmt.Sprintf("%s_%s", def.name, derivedAutocompleteSuffix),
			"suggestAnalyzerFieldType": autocompleteFieldType,
		})
	}

	component := map[string]interface{}{
		"name":      "suggest",
		"class":     "solr.SuggestComponent",
		"suggester": suggesters,
	}

	if err := a.client.configPost("add-searchcomponent", component); err != nil {
		return err
	}

	handler := map[string]interface{}{
		"name":  "/suggest",
		"class": "solr.SearchHandler",
		"defaults": map[string]interface{}{
			"suggest":            true,
			"suggest.dictionary": "suggest",
			"suggest.count":      10,
		},
		"components": []string{"suggest"},
	}

	return a.client.configPost("add-requesthandler", handler)
}
