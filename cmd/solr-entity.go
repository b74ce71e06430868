package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// the two date formats accepted on the wire, with and without fractional
// seconds.  first successful parse wins; matching neither is fatal for the
// document being rehydrated.  solr normalizes stored pdates to millisecond
// precision, so a flexible-fraction layout backstops the canonical two.
const (
	solrDateFormatFractional = "2006-01-02T15:04:05.000000Z"
	solrDateFormat           = "2006-01-02T15:04:05Z"
	solrDateFormatFlexible   = "2006-01-02T15:04:05.999999999Z"
)

// delimiter used when a multivalued field arrives as a single joined string
const multivaluedDelimiter = ","

// solrEntity is one searchable domain object.  attribute storage is a plain
// map keyed by attribute name; every declared attribute is present (possibly
// nil) from construction onward, so "unset" is always an explicit nil, never
// a descriptor sentinel.
type solrEntity struct {
	def   *entityDef
	reg   *solrRegistry
	id    string
	attrs map[string]interface{}
}

// newEntityID generates a time-ordered unique identifier
func newEntityID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// NewV7 only fails if the random source does; fall back to v4
		return uuid.NewString()
	}

	return id.String()
}

func (r *solrRegistry) newEntity(typeName string) (*solrEntity, error) {
	return r.newEntityWithID(typeName, "")
}

func (r *solrRegistry) newEntityWithID(typeName, id string) (*solrEntity, error) {
	def := r.defs[typeName]
	if def == nil {
		return nil, fmt.Errorf("unknown entity type: [%s]", typeName)
	}

	if id == "" {
		id = newEntityID()
	}

	e := solrEntity{
		def:   def,
		reg:   r,
		id:    id,
		attrs: make(map[string]interface{}),
	}

	for _, pair := range def.fields {
		e.attrs[pair.attr] = nil
	}

	now := time.Now().UTC().Truncate(time.Second)
	e.attrs["created"] = now
	e.attrs["modified"] = now

	return &e, nil
}

func (e *solrEntity) entityType() string {
	return e.def.name
}

func (e *solrEntity) get(attr string) interface{} {
	return e.attrs[attr]
}

func (e *solrEntity) set(attr string, value interface{}) error {
	if _, ok := e.def.fieldMap[attr]; ok == false {
		return fmt.Errorf("entity type [%s] has no attribute [%s]", e.def.name, attr)
	}

	e.attrs[attr] = value

	return nil
}

func (e *solrEntity) created() time.Time {
	t, _ := e.attrs["created"].(time.Time)
	return t
}

func (e *solrEntity) modified() time.Time {
	t, _ := e.attrs["modified"].(time.Time)
	return t
}

// toDocument serializes every declared attribute under its namespaced wire
// name.  nil attributes are omitted from the document.
func (e *solrEntity) toDocument() solrDocument {
	doc := solrDocument{}

	if e.id == "" {
		e.id = newEntityID()
	}

	doc["id"] = e.id

	for _, pair := range e.def.fields {
		val := e.attrs[pair.attr]
		if val == nil {
			continue
		}

		doc[pair.field.wireName(e.def.name)] = serializeAttribute(pair.field, val)
	}

	return doc
}

func serializeAttribute(f *solrField, val interface{}) interface{} {
	switch v := val.(type) {
	case time.Time:
		return v.UTC().Format(solrDateFormat)
	case []time.Time:
		out := make([]string, 0, len(v))
		for _, t := range v {
			out = append(out, t.UTC().Format(solrDateFormat))
		}
		return out
	default:
		return val
	}
}

// save serializes the entity and hands it to the registry.  the document id
// is prefixed with the entity type, and a bare "type" field discriminates
// entity types in the shared collection.  not visible until commit.
func (e *solrEntity) save() error {
	doc := e.toDocument()

	doc["id"] = fmt.Sprintf("%s_%s", e.def.name, e.id)
	doc["type"] = e.def.name

	return e.reg.add(doc)
}

// delete requests removal by id.  not visible until commit.
func (e *solrEntity) delete() error {
	return e.reg.deleteByID(fmt.Sprintf("%s_%s", e.def.name, e.id))
}

// toAPIDict is the external-facing serialization
func (e *solrEntity) toAPIDict() map[string]interface{} {
	out := map[string]interface{}{
		"id": e.id,
	}

	for _, pair := range e.def.fields {
		val := e.attrs[pair.attr]

		switch v := val.(type) {
		case time.Time:
			out[pair.attr] = v.UTC().Format(solrDateFormat)
		default:
			out[pair.attr] = v
		}
	}

	return out
}

// fromDocument is the inverse of toDocument: coerce every namespaced wire
// value back to its declared attribute.  an explicit "id" key overrides any
// in-band id, with the entity-type prefix stripped.
func (def *entityDef) fromDocument(reg *solrRegistry, doc solrDocument) (*solrEntity, error) {
	e := solrEntity{
		def:   def,
		reg:   reg,
		attrs: make(map[string]interface{}),
	}

	for _, pair := range def.fields {
		e.attrs[pair.attr] = nil
	}

	if raw, ok := doc["id"]; ok == true {
		id := fmt.Sprintf("%v", raw)
		e.id = strings.TrimPrefix(id, def.name+"_")
	}

	for _, pair := range def.fields {
		raw, ok := doc[pair.field.wireName(def.name)]
		if ok == false || raw == nil {
			continue
		}

		val, err := coerceAttribute(pair.field, raw)
		if err != nil {
			return nil, fmt.Errorf("entity type [%s] attribute [%s]: %s", def.name, pair.attr, err.Error())
		}

		e.attrs[pair.attr] = val
	}

	if e.id == "" {
		e.id = newEntityID()
	}

	return &e, nil
}

// parseSolrDate tries the fractional format first, then the plain one, then
// any other fraction length the engine may have normalized to
func parseSolrDate(s string) (time.Time, error) {
	if t, err := time.Parse(solrDateFormatFractional, s); err == nil {
		return t, nil
	}

	if t, err := time.Parse(solrDateFormat, s); err == nil {
		return t, nil
	}

	if t, err := time.Parse(solrDateFormatFlexible, s); err == nil {
		return t, nil
	}

	return time.Time{}, fmt.Errorf("unparseable date: [%s]", s)
}

func coerceAttribute(f *solrField, raw interface{}) (interface{}, error) {
	if f.Multivalued == true {
		return coerceMultivalued(f, raw)
	}

	// a singular field never receives a list; collapse to the first element
	if list, ok := raw.([]interface{}); ok == true {
		raw = firstValueOf(list)
		if raw == nil {
			return nil, nil
		}
	}

	return coerceScalar(f, raw)
}

func coerceMultivalued(f *solrField, raw interface{}) (interface{}, error) {
	var items []interface{}

	switch v := raw.(type) {
	case []interface{}:
		items = v
	case []string:
		for _, s := range v {
			items = append(items, s)
		}
	case string:
		// a delimiter-joined string is split and trimmed into a list
		for _, part := range strings.Split(v, multivaluedDelimiter) {
			items = append(items, strings.TrimSpace(part))
		}
	default:
		items = []interface{}{v}
	}

	switch {
	case strings.HasPrefix(f.Type, "pdate"):
		out := make([]time.Time, 0, len(items))
		for _, item := range items {
			t, err := parseSolrDate(fmt.Sprintf("%v", item))
			if err != nil {
				return nil, err
			}
			out = append(out, t)
		}
		return out, nil

	case strings.HasPrefix(f.Type, "pint"):
		out := make([]int, 0, len(items))
		for _, item := range items {
			n, err := coerceInt(item)
			if err != nil {
				return nil, err
			}
			out = append(out, n)
		}
		return out, nil

	default:
		out := make([]string, 0, len(items))
		for _, item := range items {
			out = append(out, fmt.Sprintf("%v", item))
		}
		return out, nil
	}
}

func coerceScalar(f *solrField, raw interface{}) (interface{}, error) {
	switch {
	case strings.HasPrefix(f.Type, "pdate"):
		return parseSolrDate(fmt.Sprintf("%v", raw))

	case strings.HasPrefix(f.Type, "pint"):
		return coerceInt(raw)

	case strings.HasPrefix(f.Type, "pfloat"):
		switch v := raw.(type) {
		case float64:
			return v, nil
		case string:
			return strconv.ParseFloat(v, 64)
		default:
			return nil, fmt.Errorf("unexpected float value: [%v]", raw)
		}

	case strings.HasPrefix(f.Type, "boolean"):
		switch v := raw.(type) {
		case bool:
			return v, nil
		case string:
			return strconv.ParseBool(v)
		default:
			return nil, fmt.Errorf("unexpected boolean value: [%v]", raw)
		}

	default:
		return fmt.Sprintf("%v", raw), nil
	}
}

func coerceInt(raw interface{}) (int, error) {
	switch v := raw.(type) {
	case float64:
		return int(v), nil
	case int:
		return v, nil
	case string:
		return strconv.Atoi(v)
	default:
		return 0, fmt.Errorf("unexpected int value: [%v]", raw)
	}
}

// related materializes a reverse-relationship accessor registered on this
// entity's type, returning every source entity whose forward foreign-key
// field references this entity.
func (e *solrEntity) related(attr string) ([]*solrEntity, error) {
	link, ok := e.def.reverseLinks[attr]
	if ok == false {
		return nil, fmt.Errorf("entity type [%s] has no reverse relation [%s]", e.def.name, attr)
	}

	q := e.reg.queryFor(link.sourceType)
	if q == nil {
		return nil, fmt.Errorf("no query helper for entity type [%s]", link.sourceType)
	}

	return q.searchHoldingEntities(e.id, link.fieldName)
}

// relatedOne is the singular variant, for relations declared one-to-one
func (e *solrEntity) relatedOne(attr string) (*solrEntity, error) {
	entities, err := e.related(attr)
	if err != nil {
		return nil, err
	}

	if len(entities) == 0 {
		return nil, nil
	}

	return entities[0], nil
}

func firstValueOf(list []interface{}) interface{} {
	if len(list) == 0 {
		return nil
	}

	return list[0]
}
