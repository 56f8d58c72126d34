package namedsql

import (
	"strings"
	"testing"

	"github.com/bxshcn/geesql/dialect"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDialect(t *testing.T, name string) dialect.Dialect {
	t.Helper()
	d, ok := dialect.GetDialect(name)
	require.True(t, ok, "dialect %s", name)
	return d
}

func TestCompile(t *testing.T) {
	testCases := []struct {
		desc    string
		dialect string
		sql     string
		sizes   map[string]int
		want    string
		params  []string
	}{
		{
			desc:    "simple",
			dialect: "sqlite3",
			sql:     "select * from t where a = :a and b = :b_2",
			want:    "select * from t where a = ? and b = ?",
			params:  []string{"a", "b_2"},
		},
		{
			desc:    "repeated name keeps every occurrence",
			dialect: "sqlite3",
			sql:     "select :x, :y, :x",
			want:    "select ?, ?, ?",
			params:  []string{"x", "y", "x"},
		},
		{
			desc:    "postgres numbers placeholders",
			dialect: "postgres",
			sql:     "update t set a = :a where id = :id",
			want:    "update t set a = $1 where id = $2",
			params:  []string{"a", "id"},
		},
		{
			desc:    "in clause expansion",
			dialect: "sqlite3",
			sql:     "select * from t where id in (:ids)",
			sizes:   map[string]int{"ids": 3},
			want:    "select * from t where id in (?, ?, ?)",
			params:  []string{"ids"},
		},
		{
			desc:    "in clause numbering continues after expansion",
			dialect: "postgres",
			sql:     "select * from t where id in (:ids) and kind = :kind",
			sizes:   map[string]int{"ids": 2},
			want:    "select * from t where id in ($1, $2) and kind = $3",
			params:  []string{"ids", "kind"},
		},
		{
			desc:    "empty collection reserves one slot",
			dialect: "sqlite3",
			sql:     "select * from t where id in (:ids)",
			sizes:   map[string]int{"ids": 0},
			want:    "select * from t where id in (?)",
			params:  []string{"ids"},
		},
		{
			desc:    "colon inside string literal",
			dialect: "sqlite3",
			sql:     "select 'a:b', ':c''s :d' from t where x = :x",
			want:    "select 'a:b', ':c''s :d' from t where x = ?",
			params:  []string{"x"},
		},
		{
			desc:    "colon inside quoted identifier",
			dialect: "sqlite3",
			sql:     `select "odd:col" from t where x = :x`,
			want:    `select "odd:col" from t where x = ?`,
			params:  []string{"x"},
		},
		{
			desc:    "postgres casts",
			dialect: "postgres",
			sql:     "select :v::int, created::date from t",
			want:    "select $1::int, created::date from t",
			params:  []string{"v"},
		},
		{
			desc:    "comments are skipped",
			dialect: "sqlite3",
			sql:     "select a -- :nope\nfrom t /* :nope */ where a = :a",
			want:    "select a -- :nope\nfrom t /* :nope */ where a = ?",
			params:  []string{"a"},
		},
		{
			desc:    "mysql hash comment and backticks",
			dialect: "mysql",
			sql:     "select `x:y` from t # :nope\nwhere a = :a",
			want:    "select `x:y` from t # :nope\nwhere a = ?",
			params:  []string{"a"},
		},
		{
			desc:    "mysql backslash escape",
			dialect: "mysql",
			sql:     `select 'it\'s :no' where a = :a`,
			want:    `select 'it\'s :no' where a = ?`,
			params:  []string{"a"},
		},
		{
			desc:    "mysql double quoted string with escaped quote",
			dialect: "mysql",
			sql:     `select * from t where a = "x\":y" and b = :b`,
			want:    `select * from t where a = "x\":y" and b = ?`,
			params:  []string{"b"},
		},
		{
			desc:    "mysql doubled double quote",
			dialect: "mysql",
			sql:     `select "say ""hi:there""" where a = :a`,
			want:    `select "say ""hi:there""" where a = ?`,
			params:  []string{"a"},
		},
		{
			desc:    "sqlite bracket identifier",
			dialect: "sqlite3",
			sql:     "select [a:b] from t where c = :c",
			want:    "select [a:b] from t where c = ?",
			params:  []string{"c"},
		},
		{
			desc:    "brackets are plain text outside sqlite",
			dialect: "postgres",
			sql:     "select arr[:i] from t",
			want:    "select arr[$1] from t",
			params:  []string{"i"},
		},
		{
			desc:    "postgres nested comments",
			dialect: "postgres",
			sql:     "select /* outer /* :inner */ :still */ :a",
			want:    "select /* outer /* :inner */ :still */ $1",
			params:  []string{"a"},
		},
		{
			desc:    "postgres dollar quoting",
			dialect: "postgres",
			sql:     "select $fn$ :body $fn$, $$ :x $$, :a",
			want:    "select $fn$ :body $fn$, $$ :x $$, $1",
			params:  []string{"a"},
		},
		{
			desc:    "postgres escape string",
			dialect: "postgres",
			sql:     `select E'\' :no', :a`,
			want:    `select E'\' :no', $1`,
			params:  []string{"a"},
		},
		{
			desc:    "colon not followed by identifier",
			dialect: "sqlite3",
			sql:     "select a := 1, :9, :_x",
			want:    "select a := 1, :9, ?",
			params:  []string{"_x"},
		},
		{
			desc:    "token at end of input",
			dialect: "sqlite3",
			sql:     "delete from t where id=:id",
			want:    "delete from t where id=?",
			params:  []string{"id"},
		},
		{
			desc:    "multibyte text is preserved",
			dialect: "sqlite3",
			sql:     "select 'héllo', :名 , :a",
			want:    "select 'héllo', :名 , ?",
			params:  []string{"a"},
		},
	}
	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			q, err := Compile(mustDialect(t, tC.dialect), tC.sql, tC.sizes)
			require.NoError(t, err)
			assert.Equal(t, tC.want, q.SQL)
			assert.Equal(t, tC.params, q.Params)
			assert.Equal(t, tC.sql, q.Original)
		})
	}
}

func TestCompilePlaceholderCount(t *testing.T) {
	d := mustDialect(t, "sqlite3")
	sql := "select * from t where a = :a and id in (:ids) and b in (:none) or c = :a"
	for _, sizes := range []map[string]int{
		{"ids": 1, "none": 0},
		{"ids": 5, "none": 0},
		{"ids": 12, "none": 3},
	} {
		q, err := Compile(d, sql, sizes)
		require.NoError(t, err)
		want := 2 + Slots(sizes["ids"]) + Slots(sizes["none"])
		assert.Equal(t, want, q.Count())
		assert.Equal(t, want, strings.Count(q.SQL, "?"))
	}
}

func TestCompileUnterminated(t *testing.T) {
	testCases := []struct {
		dialect string
		sql     string
	}{
		{"sqlite3", "select 'abc"},
		{"sqlite3", `select "abc`},
		{"sqlite3", "select /* abc"},
		{"postgres", "select /* a /* b */"},
		{"postgres", "select $x$ abc"},
		{"sqlite3", "select [abc"},
		{"mysql", `select "abc\"`},
	}
	for _, tC := range testCases {
		_, err := Compile(mustDialect(t, tC.dialect), tC.sql, nil)
		assert.True(t, errors.Is(err, ErrUnterminated), "%s: %v", tC.sql, err)
	}
}

func TestCompileIsDeterministic(t *testing.T) {
	d := mustDialect(t, "postgres")
	sizes := map[string]int{"ids": 4}
	a, err := Compile(d, "select * from t where id in (:ids) and x = :x", sizes)
	require.NoError(t, err)
	b, err := Compile(d, "select * from t where id in (:ids) and x = :x", sizes)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestNames(t *testing.T) {
	names, err := Names(mustDialect(t, "sqlite3"), "select :b, ':z', :a, :b")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, names)
}

func TestRender(t *testing.T) {
	d, _ := dialect.GetDialect("sqlite3")
	sql := "select * from t where name = :name and id in (:ids) and note = ':x'"
	out, err := Render(d, sql, map[string]int{"ids": 2}, []interface{}{"o'k", 1, 2}, nil)
	require.NoError(t, err)
	assert.Equal(t, "select * from t where name = 'o''k' and id in (1, 2) and note = ':x'", out)

	out, err = Render(d, "select :a, :b", nil, []interface{}{nil}, nil)
	require.NoError(t, err)
	assert.Equal(t, "select null, ?", out)
}
