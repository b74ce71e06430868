package main

// entity definitions for the catalog: projects hold studies, studies hold
// datasets.  each type registers its ordered descriptor list; reverse
// accessors (project.studies, study.datasets) come from the foreign-key
// declarations on the owning side and are wired by the registry.

func projectFieldPairs() []fieldPair {
	return []fieldPair{
		{attr: "title", field: newStringField("title")},
		{attr: "description", field: newTextField("description")},
		{attr: "keywords", field: newMultiStringField("keywords")},
		{attr: "types", field: newMultiStringField("types")},
		{attr: "website", field: newStringField("website")},
		{attr: "start_date", field: newDateField("start_date")},
		{attr: "end_date", field: newDateField("end_date")},
		{attr: "contacts", field: newMultiStringField("contacts")},
		{attr: "funded_by", field: newMultiStringField("funded_by")},
		{attr: "slug", field: newMultiStringField("slug")},
	}
}

func studyFieldPairs() []fieldPair {
	return []fieldPair{
		{attr: "title", field: newStringField("title")},
		{attr: "description", field: newTextField("description")},
		{attr: "keywords", field: newMultiStringField("keywords")},
		{attr: "organisms", field: newMultiStringField("organisms")},
		{attr: "diseases", field: newMultiStringField("diseases")},
		{attr: "types", field: newMultiStringField("types")},
		{attr: "samples_count", field: newIntField("samples_count")},
		{attr: "slug", field: newMultiStringField("slug")},

		// one project per study; a project exposes its many studies
		{attr: "project", field: newForeignKeyField("project", "project", "studies", true, false)},
	}
}

func datasetFieldPairs() []fieldPair {
	return []fieldPair{
		{attr: "title", field: newStringField("title")},
		{attr: "notes", field: newTextField("notes")},
		{attr: "tags", field: newMultiStringField("tags")},
		{attr: "groups", field: newMultiStringField("groups")},
		{attr: "data_standards", field: newMultiStringField("data_standards")},
		{attr: "version", field: newStringField("version")},
		{attr: "year", field: newIntField("year")},
		{attr: "open_access", field: newBooleanField("open_access")},
		{attr: "dataset_created", field: newDateField("dataset_created")},
		{attr: "extra_metadata", field: newJSONField("extra_metadata")},
		{attr: "slug", field: newMultiStringField("slug")},

		// a dataset may belong to several studies; a study exposes its many
		// datasets
		{attr: "studies", field: newForeignKeyField("studies", "study", "datasets", true, true)},
	}
}

// registerCatalogEntities installs every entity type and finalizes the
// registry wiring
func registerCatalogEntities(r *solrRegistry) error {
	if _, err := r.register("project", projectFieldPairs()); err != nil {
		return err
	}

	if _, err := r.register("study", studyFieldPairs()); err != nil {
		return err
	}

	if _, err := r.register("dataset", datasetFieldPairs()); err != nil {
		return err
	}

	return r.wire()
}
