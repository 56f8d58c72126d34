package session

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRowAccessors(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	r := NewRow(
		[]string{"id", "name", "score", "active", "created", "data", "note"},
		[]interface{}{int64(7), []byte("Tom"), "1.5", int64(1), ts, []byte{1, 2}, nil},
	)
	assert.Equal(t, 7, r.Len())
	assert.Equal(t, int64(7), r.Value(0))

	id, err := r.Int64("id")
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)

	name, err := r.String("NAME")
	require.NoError(t, err)
	assert.Equal(t, "Tom", name)

	score, err := r.Float64("score")
	require.NoError(t, err)
	assert.Equal(t, 1.5, score)

	active, err := r.Bool("active")
	require.NoError(t, err)
	assert.True(t, active)

	created, err := r.Time("created")
	require.NoError(t, err)
	assert.True(t, ts.Equal(created))

	data, err := r.Bytes("data")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, data)

	assert.True(t, r.IsNull("note"))
	assert.False(t, r.IsNull("id"))
	assert.False(t, r.IsNull("missing"))

	_, err = r.String("missing")
	assert.Error(t, err)
}

func TestRowScan(t *testing.T) {
	r := NewRow([]string{"a", "b", "c", "d", "e", "f"}, []interface{}{int64(3), []byte("12"), nil, "x", nil, int64(300)})
	var (
		a int
		b int64
		c *string
		d sql.NullString
		e interface{}
		f uint16
	)
	require.NoError(t, r.Scan(&a, &b, &c, &d, &e, &f))
	assert.Equal(t, 3, a)
	assert.Equal(t, int64(12), b)
	assert.Nil(t, c)
	assert.Equal(t, sql.NullString{String: "x", Valid: true}, d)
	assert.Nil(t, e)
	assert.Equal(t, uint16(300), f)

	var s string
	assert.Error(t, NewRow([]string{"a"}, []interface{}{nil}).Scan(&s), "NULL into a string")
	var small int8
	assert.Error(t, NewRow([]string{"a"}, []interface{}{int64(300)}).Scan(&small), "overflow")
	assert.Error(t, r.Scan(&a), "wrong destination count")
}

func TestRowScanPointerDestination(t *testing.T) {
	var p *int64
	require.NoError(t, NewRow([]string{"a"}, []interface{}{int64(5)}).Scan(&p))
	require.NotNil(t, p)
	assert.Equal(t, int64(5), *p)
}
