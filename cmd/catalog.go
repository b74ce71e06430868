package main

import (
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// git commit used for this build; supplied at compile time
var gitCommit string

type catalogVersion struct {
	BuildVersion string `json:"build,omitempty"`
	GoVersion    string `json:"go_version,omitempty"`
	GitCommit    string `json:"git_commit,omitempty"`
}

// catalogContext is the composition root: config, the solr client, and the
// entity registry, constructed once at startup and read-only afterward
type catalogContext struct {
	randomSource *rand.Rand
	config       *catalogConfig
	version      catalogVersion
	solr         *solrClient
	registry     *solrRegistry
}

func (p *catalogContext) initVersion() {
	buildVersion := "unknown"
	files, _ := filepath.Glob("buildtag.*")
	if len(files) == 1 {
		buildVersion = strings.Replace(files[0], "buildtag.", "", 1)
	}

	p.version = catalogVersion{
		BuildVersion: buildVersion,
		GoVersion:    fmt.Sprintf("%s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH),
		GitCommit:    gitCommit,
	}

	log.Printf("[CATALOG] version.BuildVersion = [%s]", p.version.BuildVersion)
	log.Printf("[CATALOG] version.GoVersion    = [%s]", p.version.GoVersion)
	log.Printf("[CATALOG] version.GitCommit    = [%s]", p.version.GitCommit)
}

func (p *catalogContext) initSolr() {
	p.solr = newSolrClient(&p.config.Solr)
}

// initRegistry registers every entity type and wires reverse relationships.
// schema or wiring errors here abort startup.
func (p *catalogContext) initRegistry() {
	p.registry = newSolrRegistry(p.config, p.solr)

	if err := registerCatalogEntities(p.registry); err != nil {
		log.Printf("[CATALOG] registry wiring failed: %s", err.Error())
		os.Exit(1)
	}
}

func (p *catalogContext) validateConfig() {
	// ensure the existence and validity of required values

	invalid := false

	requireValue := func(value string, label string) {
		if value == "" {
			log.Printf("[VALIDATE] missing %s", label)
			invalid = true
		}
	}

	requireValue(p.config.Solr.Host, "solr host")
	requireValue(p.config.Solr.Core, "solr core")
	requireValue(p.config.Service.Port, "service port")
	requireValue(p.config.Service.JWTKey, "service jwt key")
	requireValue(p.config.Search.DefaultSort.Field, "default sort field")
	requireValue(p.config.Search.DefaultSort.Order, "default sort order")

	if p.config.Search.DefaultSort.Order != "" && isValidSortOrder(p.config.Search.DefaultSort.Order) == false {
		log.Printf("[VALIDATE] default sort order not valid")
		invalid = true
	}

	// searchable attributes and configured facets must refer to declared
	// attributes of registered entity types

	for entity, attrs := range p.config.Search.SearchableAttributes {
		def := p.registry.def(entity)

		if def == nil {
			log.Printf("[VALIDATE] searchable attributes reference unknown entity type [%s]", entity)
			invalid = true
			continue
		}

		for _, attr := range attrs {
			if _, ok := def.fieldMap[attr]; ok == false {
				log.Printf("[VALIDATE] entity type [%s] searchable attribute [%s] is not declared", entity, attr)
				invalid = true
			}
		}
	}

	for i, f := range p.config.Facets {
		requireValue(f.Entity, fmt.Sprintf("facet %d entity", i))
		requireValue(f.Attribute, fmt.Sprintf("facet %d attribute", i))

		def := p.registry.def(f.Entity)

		if def == nil {
			log.Printf("[VALIDATE] facet %d references unknown entity type [%s]", i, f.Entity)
			invalid = true
			continue
		}

		if _, ok := def.fieldMap[f.Attribute]; ok == false {
			log.Printf("[VALIDATE] facet %d references undeclared attribute [%s.%s]", i, f.Entity, f.Attribute)
			invalid = true
		}
	}

	if invalid == true {
		log.Printf("[VALIDATE] exiting due to missing/incorrect field value(s) above")
		os.Exit(1)
	}
}

// facetRequestsFor lists the configured facet requests for one entity type
func (p *catalogContext) facetRequestsFor(entity string) []facetRequest {
	var requests []facetRequest

	for _, f := range p.config.Facets {
		if f.Entity != entity {
			continue
		}

		label := f.Label
		if label == "" {
			label = f.Attribute
		}

		requests = append(requests, facetRequest{Attribute: f.Attribute, Label: label})
	}

	return requests
}

func initializeCatalog(cfg *catalogConfig) *catalogContext {
	p := catalogContext{}

	p.config = cfg
	p.randomSource = rand.New(rand.NewSource(time.Now().UnixNano()))

	p.initVersion()
	p.initSolr()
	p.initRegistry()

	p.validateConfig()

	return &p
}
