// Package schema embeds the row contracts: one JSON schema per output
// table, checked before every batch write. A violation points at a
// projector defect and gets logged; the write itself still proceeds.
package schema

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"log"
	"path"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"propsift/models"
)

//go:embed tables/*.json
var tablesFS embed.FS

var compiled = make(map[string]*jsonschema.Schema)

func init() {
	compiler := jsonschema.NewCompiler()

	entries, err := fs.ReadDir(tablesFS, "tables")
	if err != nil {
		log.Fatalf("read embedded schemas: %v", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		p := path.Join("tables", entry.Name())
		file, err := tablesFS.Open(p)
		if err != nil {
			log.Fatalf("open schema %s: %v", p, err)
		}
		if err := compiler.AddResource(p, file); err != nil {
			log.Fatalf("add schema resource %s: %v", p, err)
		}
		file.Close()
	}

	for _, table := range models.TableNames {
		p := path.Join("tables", table+".json")
		s, err := compiler.Compile(p)
		if err != nil {
			log.Fatalf("compile schema %s: %v", p, err)
		}
		compiled[table] = s
	}
}

// Validate checks one row against the named table's contract. The row is
// marshaled and re-decoded so validation sees exactly the JSON the writers
// will emit.
func Validate(table string, row any) error {
	s, ok := compiled[table]
	if !ok {
		return fmt.Errorf("no schema for table %q", table)
	}

	data, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("marshal row: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("decode row: %w", err)
	}

	if err := s.Validate(v); err != nil {
		return fmt.Errorf("table %s: %w", table, err)
	}
	return nil
}

// ValidateRowSet checks every row of every table and returns one error
// per violation. Empty result means the set is contract-clean.
func ValidateRowSet(rs *models.RowSet) []error {
	if rs == nil {
		return nil
	}

	var errs []error
	tables := rs.Tables()
	for _, table := range models.TableNames {
		data, err := json.Marshal(tables[table])
		if err != nil {
			errs = append(errs, fmt.Errorf("table %s: marshal: %w", table, err))
			continue
		}
		var rows []any
		if err := json.Unmarshal(data, &rows); err != nil {
			errs = append(errs, fmt.Errorf("table %s: decode: %w", table, err))
			continue
		}

		s := compiled[table]
		for i, row := range rows {
			if err := s.Validate(row); err != nil {
				errs = append(errs, fmt.Errorf("%s[%d]: %w", table, i, err))
			}
		}
	}
	return errs
}
