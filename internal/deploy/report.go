package deploy

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"

	"retailworks/internal/ui"
)

// RenderValidationReport writes the schema validation results as a table
func RenderValidationReport(w io.Writer, results []SchemaValidation) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Schema", "Exists", "Tables", "Expected", "Status"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	for _, r := range results {
		status := ui.ColorError("UNHEALTHY")
		if r.Healthy {
			status = ui.ColorSuccess("OK")
		} else if !r.Exists {
			status = ui.ColorError("MISSING")
		}

		table.Append([]string{
			r.Schema,
			fmt.Sprintf("%v", r.Exists),
			fmt.Sprintf("%d", r.Tables),
			fmt.Sprintf("%d", r.Expected),
			status,
		})
	}

	table.Render()
}

// RenderDeploymentSummary writes per-schema deployment results as a table
func RenderDeploymentSummary(w io.Writer, results []SchemaResult) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Schema", "Statements", "Failed", "Result"})
	table.SetBorder(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	for _, r := range results {
		result := ui.ColorSuccess("SUCCESS")
		if r.Err != nil {
			result = ui.ColorError("FAILED: " + r.Err.Error())
		} else if r.Failed > 0 {
			result = ui.ColorWarning(fmt.Sprintf("PARTIAL (%d failed)", r.Failed))
		}

		table.Append([]string{
			r.Name,
			fmt.Sprintf("%d", r.Statements),
			fmt.Sprintf("%d", r.Failed),
			result,
		})
	}

	table.Render()
}
