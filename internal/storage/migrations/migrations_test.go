package migrations

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_OrdersByVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"pg/010_indexes.sql": {Data: []byte("CREATE INDEX i ON t (x);")},
		"pg/002_tables.sql":  {Data: []byte("CREATE TABLE t (x INT);")},
		"pg/README.md":       {Data: []byte("ignored")},
	}

	all, err := load(fsys, "pg")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, 2, all[0].Version)
	assert.Equal(t, "tables", all[0].Name)
	assert.Equal(t, 10, all[1].Version)
	assert.Equal(t, "indexes", all[1].Name)
}

func TestLoad_RejectsBadNames(t *testing.T) {
	tests := []struct {
		name string
		fsys fstest.MapFS
	}{
		{"duplicate version", fstest.MapFS{
			"pg/001_a.sql":  {Data: []byte("SELECT 1;")},
			"pg/0001_b.sql": {Data: []byte("SELECT 1;")},
		}},
		{"missing name", fstest.MapFS{"pg/001.sql": {Data: []byte("SELECT 1;")}}},
		{"non-numeric version", fstest.MapFS{"pg/abc_x.sql": {Data: []byte("SELECT 1;")}}},
		{"zero version", fstest.MapFS{"pg/000_x.sql": {Data: []byte("SELECT 1;")}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := load(tt.fsys, "pg")
			assert.Error(t, err)
		})
	}
}

func TestPending_SkipsApplied(t *testing.T) {
	all := []Migration{{Version: 1, Name: "a"}, {Version: 2, Name: "b"}, {Version: 3, Name: "c"}}

	todo := pending(all, map[int]bool{1: true, 3: true})
	require.Len(t, todo, 1)
	assert.Equal(t, 2, todo[0].Version)

	assert.Empty(t, pending(all, map[int]bool{1: true, 2: true, 3: true}))
	assert.Len(t, pending(all, nil), 3)
}

func TestSplitStatements(t *testing.T) {
	sql := `-- header
CREATE TABLE a (x Int32) ENGINE = MergeTree() ORDER BY x;

-- second
CREATE TABLE b (y String) ENGINE = MergeTree() ORDER BY y;
`
	stmts := splitStatements(sql)
	require.Len(t, stmts, 2)
	assert.Contains(t, stmts[0], "CREATE TABLE a")
	assert.Contains(t, stmts[1], "CREATE TABLE b")
}

func TestValidateNoSemicolonInStrings(t *testing.T) {
	assert.NoError(t, validateNoSemicolonInStrings(`SELECT 'it''s fine';`))
	assert.Error(t, validateNoSemicolonInStrings(`SELECT 'a;b';`))
}

func TestDatabaseFromDSN(t *testing.T) {
	db, err := databaseFromDSN("clickhouse://localhost:9000/treasury")
	require.NoError(t, err)
	assert.Equal(t, "treasury", db)

	_, err = databaseFromDSN("clickhouse://localhost:9000")
	assert.Error(t, err)

	_, err = databaseFromDSN("clickhouse://localhost:9000/bad`name")
	assert.Error(t, err)
}

func TestEmbeddedMigrations(t *testing.T) {
	pg, err := load(postgresFS, "postgres")
	require.NoError(t, err)
	assert.NotEmpty(t, pg)

	ch, err := load(clickhouseFS, "clickhouse")
	require.NoError(t, err)
	require.NotEmpty(t, ch)
	for _, m := range ch {
		assert.NoError(t, validateNoSemicolonInStrings(m.SQL), "migration %d", m.Version)
	}
}
