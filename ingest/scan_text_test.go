package ingest

import (
	"strings"
	"testing"

	"validation-recorder/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScanText(t *testing.T) {
	output := "dim_customers in postgres\nrow_count > 0 [PASSED]\n- freshness check [FAILED]\n"

	checks := ParseScanText(output, "scan_1", "")
	require.Len(t, checks, 2)

	assert.Equal(t, models.ScanCheck{
		ScanID: "scan_1", TableName: "dim_customers", CheckName: "row_count > 0",
		CheckType: "generic", Status: "PASSED",
	}, checks[0])
	assert.Equal(t, "dim_customers", checks[1].TableName)
	assert.Equal(t, "freshness check", checks[1].CheckName)
	assert.Equal(t, "FAILED", checks[1].Status)
	assert.Empty(t, checks[1].Value)
	assert.False(t, checks[1].HasLocation)
}

func TestParseScanText_StatusBeforeTable(t *testing.T) {
	output := "row_count > 0 [PASSED]\n- freshness check [FAILED]\n"
	assert.Empty(t, ParseScanText(output, "scan_1", ""))
}

func TestParseScanText_ConsoleLog(t *testing.T) {
	output := `[10:14:01] Soda Core 3.0.45
[10:14:02] Scan summary:
[10:14:02] 2/4 checks PASSED: 
[10:14:02]     dim_customers in postgres
[10:14:02]       row_count > 0 [PASSED]
[10:14:02]       missing_count(email) = 0 [PASSED]
[10:14:02] 1/4 checks FAILED: 
[10:14:02]     fct_orders in postgres
[10:14:02]       freshness(updated_at) < 1d [FAILED]
[10:14:02]         check_value: 2 days
[10:14:02]       schema [ERROR]

[10:14:02] Oops! 1 failures. 0 warnings. 1 errors. 2 pass.
`

	checks := ParseScanText(output, "scan_1", "postgres")
	require.Len(t, checks, 4)

	assert.Equal(t, "dim_customers", checks[0].TableName)
	assert.Equal(t, "row_count > 0", checks[0].CheckName)
	assert.Equal(t, "missing_count(email) = 0", checks[1].CheckName)
	assert.Equal(t, "fct_orders", checks[2].TableName)
	assert.Equal(t, "freshness(updated_at) < 1d", checks[2].CheckName)
	assert.Equal(t, "FAILED", checks[2].Status)
	assert.Equal(t, "schema", checks[3].CheckName)
	assert.Equal(t, "ERROR", checks[3].Status)
}

func TestParseScanText_CustomDataSource(t *testing.T) {
	output := "orders in warehouse\nrow_count > 0 [PASSED]\norders in postgres\n"

	checks := ParseScanText(output, "scan_1", "warehouse")
	require.Len(t, checks, 1)
	assert.Equal(t, "orders", checks[0].TableName)

	assert.Empty(t, ParseScanText(output[:strings.Index(output, "orders in postgres")], "scan_1", ""))
}

func TestStripTimestampPrefix(t *testing.T) {
	assert.Equal(t, " dim_customers in postgres", stripTimestampPrefix("[10:14:02] dim_customers in postgres"))
	assert.Equal(t, "row_count > 0 [PASSED]", stripTimestampPrefix("row_count > 0 [PASSED]"))
	assert.Equal(t, "[PASSED] oddly placed", stripTimestampPrefix("[PASSED] oddly placed"))
}
