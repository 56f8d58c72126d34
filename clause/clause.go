// Package clause assembles named SQL statements clause by clause.
package clause

import "strings"

type Type int

const (
	INSERT Type = iota
	VALUES
	SELECT
	WHERE
	ORDERBY
	UPDATE
	DELETE
	COUNT
)

// Clause holds the SQL text of each clause and the named parameters it
// binds. Parameter names never collide between clauses.
type Clause struct {
	sql    map[Type]string
	params map[Type]map[string]interface{}
}

func (c *Clause) Set(typ Type, vars ...interface{}) {
	if c.sql == nil {
		c.sql = make(map[Type]string)
		c.params = make(map[Type]map[string]interface{})
	}
	sql, params := generators[typ](vars...)
	c.sql[typ] = sql
	c.params[typ] = params
}

// Build joins the requested clauses in order and merges their parameters.
func (c *Clause) Build(typs ...Type) (string, map[string]interface{}) {
	var sqls []string
	params := make(map[string]interface{})
	for _, typ := range typs {
		if sql, ok := c.sql[typ]; ok {
			sqls = append(sqls, sql)
			for k, v := range c.params[typ] {
				params[k] = v
			}
		}
	}
	return strings.Join(sqls, " "), params
}

func (c *Clause) Reset() {
	c.sql = nil
	c.params = nil
}
