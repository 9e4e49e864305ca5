// Package testutil provides a normalized stub database for postgres store tests.
package testutil

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// StubConn records normalized statements for the postgres store during tests.
// It understands the small SQL subset the store issues: single-table inserts
// with an optional ON CONFLICT target, and selects and deletes filtered by
// ANDed "col = $n" predicates with an optional ORDER BY.
type StubConn struct {
	mu         sync.Mutex
	Execs      []string
	Tables     map[string][]map[string]any
	FailExec   bool
	FailPing   bool
	FailBegin  bool
	RowsErr    error
	FailTables map[string]bool
	FailCommit bool
}

var stubSeq uint64

// NewStubDB registers a sql.DB backed by an in-memory stub connection.
func NewStubDB() (*sql.DB, *StubConn) {
	conn := &StubConn{Tables: make(map[string][]map[string]any)}
	stubSeq++
	name := fmt.Sprintf("stubpg%d_%d", time.Now().UnixNano(), stubSeq)
	sql.Register(name, &stubDriver{conn: conn})
	db, err := sql.Open(name, "stub")
	if err != nil {
		panic(err)
	}
	return db, conn
}

type stubDriver struct {
	conn *StubConn
}

func (d *stubDriver) Open(string) (driver.Conn, error) {
	return d.conn, nil
}

// Prepare implements driver.Conn.
func (c *StubConn) Prepare(string) (driver.Stmt, error) { return nil, fmt.Errorf("not implemented") }

// Close implements driver.Conn.
func (c *StubConn) Close() error { return nil }

// Begin implements driver.Conn.
func (c *StubConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

// Ping implements driver.Pinger.
func (c *StubConn) Ping(_ context.Context) error {
	if c.FailPing {
		return fmt.Errorf("ping fail")
	}
	return nil
}

// BeginTx implements driver.ConnBeginTx.
func (c *StubConn) BeginTx(_ context.Context, _ driver.TxOptions) (driver.Tx, error) {
	if c.FailBegin {
		return nil, fmt.Errorf("begin fail")
	}
	return &stubTx{conn: c}, nil
}

// ExecContext implements driver.ExecerContext.
func (c *StubConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Execs = append(c.Execs, query)
	if c.FailExec {
		return nil, fmt.Errorf("exec fail")
	}
	if c.Tables == nil {
		c.Tables = make(map[string][]map[string]any)
	}
	upper := strings.ToUpper(strings.TrimSpace(query))
	switch {
	case strings.HasPrefix(upper, "INSERT INTO"):
		table, cols, err := parseInsert(query)
		if err != nil {
			return nil, err
		}
		if c.FailTables[table] {
			return nil, fmt.Errorf("exec fail for %s", table)
		}
		if len(cols) != len(args) {
			return nil, fmt.Errorf("column/arg mismatch for %s", table)
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			row[col] = args[i].Value
		}
		if keys := parseConflictTarget(query); len(keys) > 0 {
			var filtered []map[string]any
			for _, existing := range c.Tables[table] {
				if sameKey(existing, row, keys) {
					continue
				}
				filtered = append(filtered, existing)
			}
			c.Tables[table] = filtered
		}
		c.Tables[table] = append(c.Tables[table], row)
		return driver.RowsAffected(1), nil
	case strings.HasPrefix(upper, "DELETE FROM"):
		table, preds, err := parseDelete(query)
		if err != nil {
			return nil, err
		}
		if c.FailTables[table] {
			return nil, fmt.Errorf("exec fail for %s", table)
		}
		var (
			filtered []map[string]any
			removed  int64
		)
		for _, row := range c.Tables[table] {
			ok, err := matches(row, preds, args)
			if err != nil {
				return nil, err
			}
			if ok {
				removed++
				continue
			}
			filtered = append(filtered, row)
		}
		c.Tables[table] = filtered
		return driver.RowsAffected(removed), nil
	}
	return driver.RowsAffected(0), nil
}

// QueryContext implements driver.QueryerContext.
func (c *StubConn) QueryContext(_ context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	q, err := parseSelect(query)
	if err != nil {
		return nil, err
	}
	if c.FailTables[q.table] {
		return nil, fmt.Errorf("query fail for %s", q.table)
	}
	var selected []map[string]any
	for _, row := range c.Tables[q.table] {
		ok, err := matches(row, q.preds, args)
		if err != nil {
			return nil, err
		}
		if ok {
			selected = append(selected, row)
		}
	}
	if q.orderBy != "" {
		sort.SliceStable(selected, func(i, j int) bool {
			return fmt.Sprint(selected[i][q.orderBy]) < fmt.Sprint(selected[j][q.orderBy])
		})
	}
	values := make([][]driver.Value, 0, len(selected))
	for _, row := range selected {
		vals := make([]driver.Value, len(q.cols))
		for i, col := range q.cols {
			vals[i] = row[col]
		}
		values = append(values, vals)
	}
	return &stubRows{cols: q.cols, rows: values, err: c.RowsErr}, nil
}

type stubTx struct {
	conn *StubConn
}

func (t *stubTx) Commit() error {
	if t.conn.FailCommit {
		return fmt.Errorf("commit fail")
	}
	return nil
}
func (t *stubTx) Rollback() error { return nil }

type stubRows struct {
	cols []string
	rows [][]driver.Value
	idx  int
	err  error
}

func (r *stubRows) Columns() []string { return r.cols }
func (r *stubRows) Close() error      { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.rows) {
		if r.err != nil {
			return r.err
		}
		return io.EOF
	}
	copy(dest, r.rows[r.idx])
	r.idx++
	return nil
}

// predicate binds a column to a positional placeholder ($n, 1-based).
type predicate struct {
	col string
	arg int
}

type selectQuery struct {
	table   string
	cols    []string
	preds   []predicate
	orderBy string
}

func matches(row map[string]any, preds []predicate, args []driver.NamedValue) (bool, error) {
	for _, p := range preds {
		if p.arg < 1 || p.arg > len(args) {
			return false, fmt.Errorf("missing arg $%d for %s", p.arg, p.col)
		}
		if fmt.Sprint(row[p.col]) != fmt.Sprint(args[p.arg-1].Value) {
			return false, nil
		}
	}
	return true, nil
}

func sameKey(a, b map[string]any, keys []string) bool {
	for _, k := range keys {
		if fmt.Sprint(a[k]) != fmt.Sprint(b[k]) {
			return false
		}
	}
	return true
}

func parseInsert(query string) (string, []string, error) {
	up := strings.ToUpper(query)
	intoIdx := strings.Index(up, "INTO ")
	if intoIdx == -1 {
		return "", nil, fmt.Errorf("cannot parse insert: %s", query)
	}
	rest := strings.TrimSpace(query[intoIdx+len("INTO "):])
	open := strings.Index(rest, "(")
	closeIdx := strings.Index(rest, ")")
	if open == -1 || closeIdx == -1 || closeIdx <= open {
		return "", nil, fmt.Errorf("cannot parse insert: %s", query)
	}
	table := strings.ToLower(strings.TrimSpace(rest[:open]))
	cols := splitColumns(rest[open+1 : closeIdx])
	return table, cols, nil
}

func parseConflictTarget(query string) []string {
	up := strings.ToUpper(query)
	idx := strings.Index(up, "ON CONFLICT")
	if idx == -1 {
		return nil
	}
	rest := query[idx+len("ON CONFLICT"):]
	open := strings.Index(rest, "(")
	closeIdx := strings.Index(rest, ")")
	if open == -1 || closeIdx <= open {
		return nil
	}
	return splitColumns(rest[open+1 : closeIdx])
}

func parseDelete(query string) (string, []predicate, error) {
	lower := strings.ToLower(strings.TrimSpace(query))
	prefix := "delete from "
	if !strings.HasPrefix(lower, prefix) {
		return "", nil, fmt.Errorf("cannot parse delete: %s", query)
	}
	rest := strings.TrimSpace(lower[len(prefix):])
	table, where, found := strings.Cut(rest, " where ")
	if !found {
		return "", nil, fmt.Errorf("cannot parse delete: %s", query)
	}
	preds, err := parseWhere(where)
	if err != nil {
		return "", nil, err
	}
	return strings.TrimSpace(table), preds, nil
}

func parseSelect(query string) (selectQuery, error) {
	lower := strings.ToLower(strings.Join(strings.Fields(query), " "))
	selectPrefix := "select "
	if !strings.HasPrefix(lower, selectPrefix) {
		return selectQuery{}, fmt.Errorf("cannot parse select: %s", query)
	}
	cols, rest, found := strings.Cut(lower[len(selectPrefix):], " from ")
	if !found {
		return selectQuery{}, fmt.Errorf("cannot parse select: %s", query)
	}
	q := selectQuery{cols: splitColumns(cols)}
	if before, order, ok := strings.Cut(rest, " order by "); ok {
		rest = before
		q.orderBy = strings.Fields(order)[0]
	}
	table, where, hasWhere := strings.Cut(rest, " where ")
	q.table = strings.TrimSpace(table)
	if q.table == "" {
		return selectQuery{}, fmt.Errorf("cannot parse select: %s", query)
	}
	if hasWhere {
		preds, err := parseWhere(where)
		if err != nil {
			return selectQuery{}, err
		}
		q.preds = preds
	}
	return q, nil
}

func parseWhere(where string) ([]predicate, error) {
	var preds []predicate
	for _, clause := range strings.Split(where, " and ") {
		col, placeholder, ok := strings.Cut(clause, "=")
		if !ok {
			return nil, fmt.Errorf("cannot parse predicate: %s", clause)
		}
		n, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSpace(placeholder), "$"))
		if err != nil {
			return nil, fmt.Errorf("cannot parse placeholder: %s", clause)
		}
		preds = append(preds, predicate{col: strings.TrimSpace(col), arg: n})
	}
	return preds, nil
}

func splitColumns(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		out = append(out, strings.ToLower(strings.TrimSpace(part)))
	}
	return out
}
