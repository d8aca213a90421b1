// Package dataset loads YAML table datasets into SQL databases. The seed
// tool and the test fixture harness share it.
//
// A dataset maps table names to lists of rows:
//
//	tags:
//	  - id: 1
//	    name: Example
//	    creation_time: 2016-12-03 11:40:00
//	tasks_tags:
//	  - task_id: 1
//	    tag_id: 1
//
// Table order is preserved. A YAML null or the [null] token stands for SQL NULL.
package dataset

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// NullToken is the replacement token for SQL NULL.
const NullToken = "[null]"

// TimestampLayout is the layout used for timestamps in datasets and comparisons.
const TimestampLayout = "2006-01-02 15:04:05"

var timestampLayouts = []string{
	TimestampLayout,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02",
}

// ErrInvalidDataset is returned for malformed dataset documents.
var ErrInvalidDataset = errors.New("invalid dataset")

// Row is one table row. Columns keeps the order the columns were written in.
type Row struct {
	Columns []string
	Values  map[string]any
}

// Value returns the value of a column and whether it is present.
func (r Row) Value(column string) (any, bool) {
	v, ok := r.Values[column]
	return v, ok
}

// Table is a named list of rows.
type Table struct {
	Name string
	Rows []Row
}

// Columns returns the union of the row columns in first-seen order.
func (t Table) Columns() []string {
	seen := make(map[string]struct{})
	var cols []string
	for _, row := range t.Rows {
		for _, c := range row.Columns {
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			cols = append(cols, c)
		}
	}
	return cols
}

// HasColumn reports whether any row sets the column.
func (t Table) HasColumn(column string) bool {
	for _, row := range t.Rows {
		if _, ok := row.Values[column]; ok {
			return true
		}
	}
	return false
}

// Dataset is an ordered list of tables.
type Dataset struct {
	Tables []Table
}

// Table returns the table with the given name.
func (d *Dataset) Table(name string) (Table, bool) {
	for _, t := range d.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}

// TableNames returns the table names in dataset order.
func (d *Dataset) TableNames() []string {
	names := make([]string, 0, len(d.Tables))
	for _, t := range d.Tables {
		names = append(names, t.Name)
	}
	return names
}

// Load reads and parses a dataset from fsys.
func Load(fsys fs.FS, name string) (*Dataset, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("read dataset %s: %w", name, err)
	}
	ds, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse dataset %s: %w", name, err)
	}
	return ds, nil
}

// Parse decodes a YAML dataset.
func Parse(data []byte) (*Dataset, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDataset, err)
	}

	ds := &Dataset{}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return ds, nil
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: top level must be a mapping of tables", ErrInvalidDataset)
	}

	for i := 0; i+1 < len(root.Content); i += 2 {
		name := root.Content[i].Value
		table, err := parseTable(name, root.Content[i+1])
		if err != nil {
			return nil, err
		}
		ds.Tables = append(ds.Tables, table)
	}
	return ds, nil
}

func parseTable(name string, node *yaml.Node) (Table, error) {
	table := Table{Name: name}

	switch {
	case node.Kind == yaml.ScalarNode && node.Tag == "!!null":
		return table, nil
	case node.Kind != yaml.SequenceNode:
		return table, fmt.Errorf("%w: table %s must be a list of rows", ErrInvalidDataset, name)
	}

	for idx, rowNode := range node.Content {
		if rowNode.Kind != yaml.MappingNode {
			return table, fmt.Errorf("%w: table %s row %d must be a mapping", ErrInvalidDataset, name, idx)
		}

		row := Row{Values: make(map[string]any, len(rowNode.Content)/2)}
		for i := 0; i+1 < len(rowNode.Content); i += 2 {
			col := rowNode.Content[i].Value
			val, err := parseValue(rowNode.Content[i+1])
			if err != nil {
				return table, fmt.Errorf("%w: table %s row %d column %s: %w", ErrInvalidDataset, name, idx, col, err)
			}
			row.Columns = append(row.Columns, col)
			row.Values[col] = val
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

func parseValue(node *yaml.Node) (any, error) {
	switch node.Kind {
	case yaml.SequenceNode:
		// [null] parses as a one-element flow sequence.
		if len(node.Content) == 1 && node.Content[0].Kind == yaml.ScalarNode && node.Content[0].Value == "null" {
			return nil, nil
		}
		return nil, errors.New("lists are not valid column values")
	case yaml.ScalarNode:
	default:
		return nil, errors.New("value must be a scalar")
	}

	switch node.Tag {
	case "!!null":
		return nil, nil
	case "!!int":
		return strconv.ParseInt(node.Value, 0, 64)
	case "!!float":
		return strconv.ParseFloat(node.Value, 64)
	case "!!bool":
		return strconv.ParseBool(node.Value)
	case "!!timestamp":
		return ParseTimestamp(node.Value)
	}

	if node.Value == NullToken {
		return nil, nil
	}
	return node.Value, nil
}

// ParseTimestamp parses the timestamp layouts accepted in datasets as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported timestamp %q", s)
}
