package main

import (
	"bytes"
	"encoding/json"
	"log"
	"os"
	"sort"
	"strings"
)

type catalogConfigService struct {
	Port   string `json:"port,omitempty"`
	JWTKey string `json:"jwt_key,omitempty"`
}

type catalogConfigSolr struct {
	Host        string `json:"host,omitempty"`
	Core        string `json:"core,omitempty"`
	ConnTimeout string `json:"conn_timeout,omitempty"`
	ReadTimeout string `json:"read_timeout,omitempty"`
}

type catalogConfigDefaultSort struct {
	Field string `json:"field,omitempty"`
	Order string `json:"order,omitempty"`
}

type catalogConfigSearch struct {
	DefaultRows          int                      `json:"default_rows,omitempty"`
	FuzzyDistance        int                      `json:"fuzzy_distance,omitempty"`
	DefaultSort          catalogConfigDefaultSort `json:"default_sort,omitempty"`
	SearchableAttributes map[string][]string      `json:"searchable_attributes,omitempty"`
}

type catalogConfigFacet struct {
	Entity    string `json:"entity,omitempty"`
	Attribute string `json:"attribute,omitempty"`
	Label     string `json:"label,omitempty"`
}

type catalogConfig struct {
	Service catalogConfigService `json:"service,omitempty"`
	Solr    catalogConfigSolr    `json:"solr,omitempty"`
	Search  catalogConfigSearch  `json:"search,omitempty"`
	Facets  []catalogConfigFacet `json:"facets,omitempty"`
}

func getSortedJSONEnvVars() []string {
	var keys []string

	for _, keyval := range os.Environ() {
		key := strings.Split(keyval, "=")[0]
		if strings.HasPrefix(key, "CATALOG_SOLR_WS_JSON_") {
			keys = append(keys, key)
		}
	}

	sort.Strings(keys)

	return keys
}

func loadConfig() *catalogConfig {
	cfg := catalogConfig{}

	// json configs

	envs := getSortedJSONEnvVars()

	valid := true

	for _, env := range envs {
		log.Printf("[CONFIG] loading %s ...", env)
		if val := os.Getenv(env); val != "" {
			dec := json.NewDecoder(bytes.NewReader([]byte(val)))
			dec.DisallowUnknownFields()

			if err := dec.Decode(&cfg); err != nil {
				log.Printf("error decoding %s: %s", env, err.Error())
				valid = false
			}
		}
	}

	if valid == false {
		log.Printf("exiting due to json decode error(s) above")
		os.Exit(1)
	}

	// optional convenience override to simplify container config
	if host := os.Getenv("CATALOG_SOLR_WS_SOLR_HOST"); host != "" {
		cfg.Solr.Host = host
	}

	cfg.applyDefaults()

	bytes, err := json.Marshal(cfg)
	if err != nil {
		log.Printf("error encoding catalog config json: %s", err.Error())
		os.Exit(1)
	}

	log.Printf("[CONFIG] composite json:")
	log.Printf("\n%s", string(bytes))

	return &cfg
}

func (cfg *catalogConfig) applyDefaults() {
	if cfg.Search.DefaultRows <= 0 {
		cfg.Search.DefaultRows = 20
	}

	if cfg.Search.FuzzyDistance <= 0 {
		cfg.Search.FuzzyDistance = 4
	}

	if cfg.Search.DefaultSort.Field == "" {
		cfg.Search.DefaultSort.Field = "title"
		cfg.Search.DefaultSort.Order = "asc"
	}

	if cfg.Search.SearchableAttributes == nil {
		cfg.Search.SearchableAttributes = make(map[string][]string)
	}
}
