package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/adhs-etl/internal/change"
	"github.com/sells-group/adhs-etl/internal/model"
	"github.com/sells-group/adhs-etl/internal/store"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"run", "families", "ledger", "migrate"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "adhs-etl", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestRunCommand_Flags(t *testing.T) {
	for _, name := range []string{"month", "input", "previous", "provider-type", "export", "analysis", "json"} {
		require.NotNil(t, runCmd.Flags().Lookup(name), "run command should have --%s flag", name)
	}
}

func TestFamiliesCommand_Flags(t *testing.T) {
	flag := familiesCmd.Flags().Lookup("threshold")
	require.NotNil(t, flag)
	assert.Equal(t, "85", flag.DefValue)
	require.NotNil(t, familiesCmd.Flags().Lookup("input"))
	require.NotNil(t, familiesCmd.Flags().Lookup("output"))
}

func TestLedgerCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range ledgerCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["status"])
	assert.True(t, names["export"])

	flag := ledgerStatusCmd.Flags().Lookup("limit")
	require.NotNil(t, flag)
	assert.Equal(t, "10", flag.DefValue)
}

func TestFormatStatusCounts(t *testing.T) {
	var buf bytes.Buffer
	formatStatusCounts(&buf, map[change.Status]int{
		change.NewTypeNewAddress:          3,
		change.LostTypeLostAddress0Remain: 1,
	})

	out := buf.String()
	assert.Contains(t, out, "STATUS")
	assert.Regexp(t, `NEW_TYPE_NEW_ADDRESS\s+SURVEY_LEAD\s+3`, out)
	assert.Regexp(t, `LOST_TYPE_LOST_ADDRESS_0_REMAIN\s+SELLER_LEAD\s+1`, out)
	assert.Regexp(t, `REINSTATED_EXISTING_ADDRESS\s+SURVEY_LEAD\s+0`, out)
}

func TestFormatSnapshots(t *testing.T) {
	var buf bytes.Buffer
	formatSnapshots(&buf, []store.Snapshot{{
		ID:          "0123456789abcdef",
		Period:      model.NewPeriod(2025, 7),
		RowCount:    12,
		ColumnCount: 155,
		CreatedAt:   time.Date(2025, 8, 3, 9, 30, 0, 0, time.UTC),
	}})

	out := buf.String()
	assert.Contains(t, out, "01234567")
	assert.NotContains(t, out, "0123456789abcdef")
	assert.Contains(t, out, "2025-07")
	assert.Contains(t, out, "155")
	assert.Contains(t, out, "2025-08-03 09:30")
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abc", truncateID("abc"))
	assert.Equal(t, "abcdefgh", truncateID("abcdefghijk"))
}

func TestRootCommand_LogFlags(t *testing.T) {
	for _, name := range []string{"log-level", "log-format"} {
		flag := rootCmd.PersistentFlags().Lookup(name)
		require.NotNil(t, flag, "root command should have --%s flag", name)
		assert.Equal(t, "", flag.DefValue)
	}
}
