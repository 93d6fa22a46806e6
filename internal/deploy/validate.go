package deploy

import (
	"context"
	"fmt"
	"strings"
)

// expectedTableCounts is the minimum table count per schema after a full
// deployment
var expectedTableCounts = map[string]int{
	"sales":     4, // ORDERS, ORDER_ITEMS, SALES_TERRITORIES, SALES_REPS
	"products":  4, // PRODUCTS, CATEGORIES, SUPPLIERS, INVENTORY
	"customers": 4, // CUSTOMERS, ADDRESSES, CUSTOMER_SEGMENTS, CUSTOMER_ADDRESSES
	"hr":        5, // EMPLOYEES, DEPARTMENTS, POSITIONS, PAYROLL, EMPLOYEE_PERFORMANCE
	"analytics": 7, // dimension and fact tables
	"staging":   8, // raw and clean staging tables
}

// SchemaValidation is the validation outcome for one schema
type SchemaValidation struct {
	Schema   string
	Exists   bool
	Tables   int
	Expected int
	Healthy  bool
}

// Validate checks that every managed schema exists and holds at least the
// expected number of tables
func (d *Deployer) Validate(ctx context.Context) ([]SchemaValidation, error) {
	schemas, err := d.executor.ShowNames(ctx,
		fmt.Sprintf("SHOW SCHEMAS IN DATABASE %s", d.env.Database))
	if err != nil {
		return nil, err
	}

	present := make(map[string]bool, len(schemas))
	for _, schema := range schemas {
		present[strings.ToUpper(schema)] = true
	}

	results := make([]SchemaValidation, 0, len(ManagedSchemas))
	for _, schema := range ManagedSchemas {
		full := SchemaFullName(schema, d.env.SchemaSuffix)
		validation := SchemaValidation{
			Schema:   full,
			Expected: expectedTableCounts[schema],
			Exists:   present[full],
		}

		if validation.Exists {
			tables, err := d.executor.ShowNames(ctx,
				fmt.Sprintf("SHOW TABLES IN SCHEMA %s.%s", d.env.Database, full))
			if err != nil {
				return nil, err
			}
			validation.Tables = len(tables)
			validation.Healthy = validation.Tables >= validation.Expected
		}

		results = append(results, validation)
	}

	return results, nil
}

// AllHealthy reports whether every schema validated cleanly
func AllHealthy(results []SchemaValidation) bool {
	for _, r := range results {
		if !r.Healthy {
			return false
		}
	}
	return len(results) > 0
}
