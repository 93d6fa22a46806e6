package deploy

import (
	"fmt"
	"regexp"
	"strings"
)

// Template variables understood in DDL sources
const (
	varDatabaseName = "<% database_name %>"
	varSchemaSuffix = "<% schema_suffix %>"
)

// ApplyEnvironment rewrites a DDL script for a target environment:
// template variables are substituted and schema references get the
// environment suffix appended. Order matters: fully qualified references
// are rewritten first so the bare-schema pattern cannot re-match them.
func ApplyEnvironment(sql, database, schemaSuffix string) string {
	out := strings.ReplaceAll(sql, varDatabaseName, database)
	out = strings.ReplaceAll(out, varSchemaSuffix, schemaSuffix)

	if schemaSuffix == "" {
		return out
	}

	quoted := regexp.QuoteMeta(database)
	patterns := []struct {
		re          *regexp.Regexp
		replacement string
	}{
		{
			regexp.MustCompile(`USE SCHEMA ` + quoted + `\.(\w+_SCHEMA)\b`),
			fmt.Sprintf("USE SCHEMA %s.${1}%s", database, schemaSuffix),
		},
		{
			regexp.MustCompile(`CREATE SCHEMA IF NOT EXISTS (\w+_SCHEMA)\b`),
			fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS ${1}%s", schemaSuffix),
		},
		{
			regexp.MustCompile(quoted + `\.(\w+_SCHEMA)\.`),
			fmt.Sprintf("%s.${1}%s.", database, schemaSuffix),
		},
		{
			regexp.MustCompile(`(\w+_SCHEMA)\.`),
			fmt.Sprintf("${1}%s.", schemaSuffix),
		},
	}

	for _, p := range patterns {
		out = p.re.ReplaceAllString(out, p.replacement)
	}

	return out
}

// SchemaFullName returns the environment-qualified schema name,
// e.g. ("sales", "_DEV") -> SALES_SCHEMA_DEV.
func SchemaFullName(schemaName, schemaSuffix string) string {
	return strings.ToUpper(schemaName) + "_SCHEMA" + schemaSuffix
}
