package main

import (
	"fmt"
	"log"
	"strings"
)

// the registry is the composition root for the solr ORM: it holds every
// registered entity definition, builds the attribute → descriptor maps, wires
// reverse foreign-key relationships across types, and attaches a query helper
// to each definition.  it is constructed once at startup and read-only
// afterward; document-level add/delete/commit calls pass through to solr.

type fieldPair struct {
	attr  string
	field *solrField
}

// reverseLink records, on the target entity type, where a forward foreign key
// points from: the source type, the forward field name, and whether the
// inverse relation yields many entities.
type reverseLink struct {
	sourceType string
	fieldName  string
	multiple   bool
}

type entityDef struct {
	name         string
	fields       []fieldPair           // ordered, as registered
	fieldMap     map[string]*solrField // attribute name → descriptor
	reverseLinks map[string]reverseLink

	// query configuration; derived on first use when left empty
	sortOptions      []string
	boost            string
	defaultSortField string
	defaultSortOrder string
	autoConfigured   bool

	query *solrQuery
}

type solrRegistry struct {
	cfg    *catalogConfig
	client *solrClient
	schema *solrSchemaAdmin
	defs   map[string]*entityDef
	order  []string // registration order, for deterministic bulk operations
}

// base attributes shared by every entity type.  modified is stamped at
// construction only; bumping it on mutation is a caller responsibility.
func baseFieldPairs() []fieldPair {
	return []fieldPair{
		{attr: "created", field: newDateField("created")},
		{attr: "modified", field: newDateField("modified")},
	}
}

func newSolrRegistry(cfg *catalogConfig, client *solrClient) *solrRegistry {
	r := solrRegistry{
		cfg:    cfg,
		client: client,
		defs:   make(map[string]*entityDef),
	}

	r.schema = newSolrSchemaAdmin(cfg, client)

	return &r
}

// register adds one entity definition from its ordered descriptor list.
// entity type names are lowercased; they become wire-name prefixes.
func (r *solrRegistry) register(name string, pairs []fieldPair) (*entityDef, error) {
	name = strings.ToLower(name)

	if _, exists := r.defs[name]; exists == true {
		return nil, fmt.Errorf("entity type already registered: [%s]", name)
	}

	def := entityDef{
		name:         name,
		fieldMap:     make(map[string]*solrField),
		reverseLinks: make(map[string]reverseLink),
	}

	def.fields = append(def.fields, baseFieldPairs()...)
	def.fields = append(def.fields, pairs...)

	for _, pair := range def.fields {
		if _, dup := def.fieldMap[pair.attr]; dup == true {
			return nil, fmt.Errorf("entity type [%s]: duplicate attribute [%s]", name, pair.attr)
		}

		def.fieldMap[pair.attr] = pair.field
	}

	r.defs[name] = &def
	r.order = append(r.order, name)

	log.Printf("[REGISTRY] registered entity type [%s] with %d fields", name, len(def.fields))

	return &def, nil
}

// wire finalizes the registry: reverse-relationship bookkeeping and query
// helper attachment.  relationships are declared unidirectionally but
// consumed bidirectionally, so this runs as two passes: first clear every
// previously registered reverse map, then populate them all.
func (r *solrRegistry) wire() error {
	for _, name := range r.order {
		r.defs[name].reverseLinks = make(map[string]reverseLink)
	}

	for _, name := range r.order {
		def := r.defs[name]

		for _, pair := range def.fields {
			f := pair.field

			if f.isForeignKey() == false || f.ReversedBy == "" {
				continue
			}

			target := r.defs[strings.ToLower(f.LinkedEntity)]
			if target == nil {
				return fmt.Errorf("entity type [%s] field [%s] links to unregistered type [%s]", name, f.Name, f.LinkedEntity)
			}

			if _, taken := target.reverseLinks[f.ReversedBy]; taken == true {
				return fmt.Errorf("entity type [%s] reverse relation [%s] registered twice", target.name, f.ReversedBy)
			}

			target.reverseLinks[f.ReversedBy] = reverseLink{
				sourceType: name,
				fieldName:  f.Name,
				multiple:   f.ReversedMultiple,
			}

			log.Printf("[REGISTRY] wired reverse relation: %s.%s -> %s.%s", target.name, f.ReversedBy, name, f.Name)
		}
	}

	for _, name := range r.order {
		def := r.defs[name]
		def.query = newSolrQuery(r, def)
	}

	return nil
}

func (r *solrRegistry) def(name string) *entityDef {
	return r.defs[strings.ToLower(name)]
}

func (r *solrRegistry) queryFor(name string) *solrQuery {
	def := r.def(name)
	if def == nil {
		return nil
	}

	return def.query
}

// document-level pass-throughs.  none of these are visible to searches until
// commit; that two-phase write is the authoritative consistency contract.

func (r *solrRegistry) add(doc solrDocument) error {
	return r.client.addDocs([]solrDocument{doc})
}

func (r *solrRegistry) deleteByID(id string) error {
	return r.client.deleteByID(id)
}

func (r *solrRegistry) deleteByQuery(query string) error {
	return r.client.deleteByQuery(query)
}

func (r *solrRegistry) commit(soft bool) error {
	return r.client.commit(soft)
}

// bulk schema operations, applied across every registered entity type plus
// the global "type" discriminator field

func (r *solrRegistry) createTypeField() error {
	return r.schema.createField("type", "string", true, true, false)
}

func (r *solrRegistry) createFields() error {
	if err := r.createTypeField(); err != nil {
		return err
	}

	for _, name := range r.order {
		if err := r.schema.createOrUpdateFieldsForDef(r.defs[name], false); err != nil {
			return err
		}
	}

	return nil
}

func (r *solrRegistry) updateFields() error {
	for _, name := range r.order {
		if err := r.schema.createOrUpdateFieldsForDef(r.defs[name], true); err != nil {
			return err
		}
	}

	return nil
}

func (r *solrRegistry) deleteFields() error {
	for _, name := range r.order {
		if err := r.schema.deleteFieldsForDef(r.defs[name]); err != nil {
			return err
		}
	}

	if err := r.schema.deleteField("type"); err != nil {
		return err
	}

	return nil
}

// configureSuggester installs the autocomplete suggester over every
// registered entity type
func (r *solrRegistry) configureSuggester() error {
	defs := make([]*entityDef, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.defs[name])
	}

	return r.schema.configureSuggester(defs)
}

func (r *solrRegistry) checkSchema(name string) (bool, error) {
	def := r.def(name)
	if def == nil {
		return false, fmt.Errorf("unknown entity type: [%s]", name)
	}

	return r.schema.checkSchema(def)
}

func (r *solrRegistry) fieldTypeMismatch(name string) (bool, error) {
	def := r.def(name)
	if def == nil {
		return false, fmt.Errorf("unknown entity type: [%s]", name)
	}

	return r.schema.fieldTypeMismatch(def)
}

// checkFieldsExistence reports whether the live schema contains any field
// namespaced by a registered entity type.  used to gate destructive
// re-initialization.
func (r *solrRegistry) checkFieldsExistence() (bool, error) {
	fields, err := r.client.schemaFields()
	if err != nil {
		return false, err
	}

	for _, f := range fields {
		for _, name := range r.order {
			if strings.HasPrefix(f.Name, name+"_") {
				return true, nil
			}
		}
	}

	return false, nil
}
