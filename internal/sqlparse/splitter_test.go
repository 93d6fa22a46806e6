package sqlparse

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name     string
		sql      string
		expected []string
	}{
		{
			name:     "empty input",
			sql:      "",
			expected: nil,
		},
		{
			name:     "only comments",
			sql:      "-- just a comment\n",
			expected: nil,
		},
		{
			name:     "whitespace only",
			sql:      "  \n\t\n",
			expected: nil,
		},
		{
			name:     "single statement without delimiter or trailing newline",
			sql:      "SELECT * FROM customers",
			expected: []string{"SELECT * FROM customers"},
		},
		{
			name: "two schema statements",
			sql:  "CREATE SCHEMA A;\nCREATE SCHEMA B;\n",
			expected: []string{
				"CREATE SCHEMA A",
				"CREATE SCHEMA B",
			},
		},
		{
			name: "multiple statements on one line",
			sql:  "CREATE TABLE users (id INT); INSERT INTO users VALUES (1);",
			expected: []string{
				"CREATE TABLE users (id INT)",
				"INSERT INTO users VALUES (1)",
			},
		},
		{
			name: "trailing line comment on statement line",
			sql:  "CREATE TABLE T (ID INT); -- primary table\nSELECT 1;\n",
			expected: []string{
				"CREATE TABLE T (ID INT)",
				"SELECT 1",
			},
		},
		{
			name:     "block comment inside statement",
			sql:      "CREATE TABLE T (/* col comment */ID INT);",
			expected: []string{"CREATE TABLE T ( ID INT)"},
		},
		{
			name: "block comment spanning statement boundary lines",
			sql:  "CREATE TABLE A (ID INT);\n/* spans\nlines */\nCREATE TABLE B (ID INT);\n",
			expected: []string{
				"CREATE TABLE A (ID INT)",
				"CREATE TABLE B (ID INT)",
			},
		},
		{
			name:     "unterminated block comment consumes rest of input",
			sql:      "SELECT 1;\n/* never closed\nSELECT 2;\n",
			expected: []string{"SELECT 1"},
		},
		{
			name: "semicolon inside string literal does not split",
			sql:  "INSERT INTO logs VALUES ('a;b'); SELECT 1;",
			expected: []string{
				"INSERT INTO logs VALUES ('a;b')",
				"SELECT 1",
			},
		},
		{
			name: "escaped quote inside string literal",
			sql:  "SELECT 'it''s; fine'; SELECT 2;",
			expected: []string{
				"SELECT 'it''s; fine'",
				"SELECT 2",
			},
		},
		{
			name: "comment markers inside string literal survive",
			sql:  "SELECT '-- not a comment'; SELECT '/* neither */';",
			expected: []string{
				"SELECT '-- not a comment'",
				"SELECT '/* neither */'",
			},
		},
		{
			name: "procedure body is one statement",
			sql: "CREATE OR REPLACE PROCEDURE foo()\n" +
				"RETURNS STRING\nLANGUAGE SQL\nAS\n$$\nBEGIN\n" +
				"  INSERT INTO t VALUES (1);\n  INSERT INTO t VALUES (2);\nEND;\n$$;\n" +
				"SELECT 1;\n",
			expected: []string{
				"CREATE OR REPLACE PROCEDURE foo()\n" +
					"RETURNS STRING\nLANGUAGE SQL\nAS\n$$\nBEGIN\n" +
					"  INSERT INTO t VALUES (1);\n  INSERT INTO t VALUES (2);\nEND;\n$$;",
				"SELECT 1",
			},
		},
		{
			name: "procedure marker is case-insensitive",
			sql: "create or replace procedure bar()\nas\n$$\nbegin\n" +
				"  select 1;\nend;\n$$;\n",
			expected: []string{
				"create or replace procedure bar()\nas\n$$\nbegin\n" +
					"  select 1;\nend;\n$$;",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Split(tt.sql))
		})
	}
}

func TestSplitMultipleProcedures(t *testing.T) {
	sql := "CREATE OR REPLACE PROCEDURE p1()\nAS\n$$\nBEGIN\n  DELETE FROM a;\nEND;\n$$;\n" +
		"CREATE SCHEMA MID;\n" +
		"CREATE OR REPLACE PROCEDURE p2()\nAS\n$$\nBEGIN\n  DELETE FROM b;\nEND;\n$$;\n"

	statements := Split(sql)
	require.Len(t, statements, 3)
	assert.Contains(t, statements[0], "PROCEDURE p1")
	assert.Contains(t, statements[0], "DELETE FROM a;")
	assert.Equal(t, "CREATE SCHEMA MID", statements[1])
	assert.Contains(t, statements[2], "PROCEDURE p2")
	assert.Contains(t, statements[2], "DELETE FROM b;")
}

// Without procedure markers or string-literal semicolons the splitter must
// agree with a plain semicolon split of the comment-stripped text.
func TestSplitMatchesNaiveSplit(t *testing.T) {
	inputs := []string{
		"CREATE SCHEMA A;\nCREATE SCHEMA B;\nCREATE SCHEMA C;\n",
		"SELECT 1; SELECT 2;\nSELECT 3",
		"-- header\nCREATE TABLE t (id INT);\n/* block */\nDROP TABLE t;\n",
		"USE DATABASE RETAILWORKS_DB;\nUSE SCHEMA SALES_SCHEMA;\n",
	}

	for _, sql := range inputs {
		var naive []string
		for _, piece := range strings.Split(StripComments(sql), ";") {
			if trimmed := strings.TrimSpace(piece); trimmed != "" {
				naive = append(naive, trimmed)
			}
		}
		assert.Equal(t, naive, Split(sql), "input: %q", sql)
	}
}

// Re-splitting the joined output, each statement followed by a delimiter,
// must reproduce the same statements. Covers the procedure case where the
// emitted statement already ends in $$;.
func TestSplitIdempotent(t *testing.T) {
	inputs := []string{
		"CREATE SCHEMA A;\nCREATE SCHEMA B;\n",
		"INSERT INTO logs VALUES ('a;b'); SELECT 1;",
		"CREATE OR REPLACE PROCEDURE foo()\nAS\n$$\nBEGIN\n  SELECT 1;\nEND;\n$$;\nSELECT 2;\n",
	}

	for _, sql := range inputs {
		first := Split(sql)
		require.NotEmpty(t, first)

		joined := strings.Join(first, ";\n") + ";\n"
		assert.Equal(t, first, Split(joined), "input: %q", sql)
	}
}

func TestStripComments(t *testing.T) {
	tests := []struct {
		name     string
		sql      string
		expected string
	}{
		{
			name:     "line comment keeps newline",
			sql:      "SELECT 1 -- one\nFROM dual",
			expected: "SELECT 1 \nFROM dual",
		},
		{
			name:     "block comment becomes a space",
			sql:      "SELECT/*x*/1",
			expected: "SELECT 1",
		},
		{
			name:     "line comment at end of input without newline",
			sql:      "SELECT 1 --tail",
			expected: "SELECT 1 ",
		},
		{
			name:     "unterminated block comment",
			sql:      "SELECT 1 /* open",
			expected: "SELECT 1 ",
		},
		{
			name:     "markers inside string literal kept",
			sql:      "SELECT '--x /* y */'",
			expected: "SELECT '--x /* y */'",
		},
		{
			name:     "no comments is unchanged",
			sql:      "SELECT a - b FROM t",
			expected: "SELECT a - b FROM t",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, StripComments(tt.sql))
		})
	}
}
