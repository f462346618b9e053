// Package sqlvalidator rejects anything but a single read-only SELECT
// statement before it ever reaches a tenant's database, and flags a
// denylist of dangerous Postgres functions inside an otherwise-valid
// SELECT.
package sqlvalidator

import (
	"encoding/json"
	"fmt"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

const defaultMaxQueryLength = 100_000

// dangerousFunctions are matched as a case-insensitive substring against
// every function name encountered in the parsed statement, the same
// approach used for file system access, command execution, network
// access, administrative, large-object, extension, and role-management
// functions that have no legitimate place in a read-only analytics query.
var dangerousFunctions = []string{
	"pg_read_file",
	"pg_read_binary_file",
	"pg_ls_dir",
	"pg_stat_file",
	"pg_execute_server_program",
	"copy",
	"dblink",
	"dblink_connect",
	"dblink_exec",
	"pg_terminate_backend",
	"pg_cancel_backend",
	"pg_reload_conf",
	"pg_rotate_logfile",
	"lo_import",
	"lo_export",
	"lo_unlink",
	"pg_create_extension",
	"pg_drop_extension",
	"pg_crypto",
	"xmlparse",
	"xpath",
	"execute",
	"pg_create_user",
	"pg_drop_user",
	"pg_create_role",
	"pg_drop_role",
}

type Validator struct {
	maxQueryLength int
}

func New() *Validator {
	return &Validator{maxQueryLength: defaultMaxQueryLength}
}

func WithMaxQueryLength(n int) *Validator {
	return &Validator{maxQueryLength: n}
}

// Validate parses sql with the real Postgres grammar (pg_query_go, a
// binding over libpg_query) and rejects anything that is not exactly one
// read-only SELECT with no disallowed function calls.
func (v *Validator) Validate(sql string) error {
	if len(sql) > v.maxQueryLength {
		return fmt.Errorf("sql exceeds maximum length of %d characters", v.maxQueryLength)
	}

	tree, err := pg_query.ParseToJSON(sql)
	if err != nil {
		return fmt.Errorf("invalid sql syntax: %w", err)
	}

	var parsed struct {
		Stmts []struct {
			Stmt json.RawMessage `json:"stmt"`
		} `json:"stmts"`
	}
	if err := json.Unmarshal([]byte(tree), &parsed); err != nil {
		return fmt.Errorf("decode parsed sql: %w", err)
	}

	if len(parsed.Stmts) == 0 {
		return fmt.Errorf("empty sql statement")
	}
	if len(parsed.Stmts) > 1 {
		return fmt.Errorf("only a single statement is allowed, got %d", len(parsed.Stmts))
	}

	var stmt map[string]json.RawMessage
	if err := json.Unmarshal(parsed.Stmts[0].Stmt, &stmt); err != nil {
		return fmt.Errorf("decode statement: %w", err)
	}

	if _, isSelect := stmt["SelectStmt"]; !isSelect {
		return fmt.Errorf("only SELECT queries are allowed; DROP, INSERT, UPDATE, DELETE, ALTER, CREATE, and other modification statements are forbidden")
	}

	fns := collectFunctionNames(parsed.Stmts[0].Stmt)
	var dangerous []string
	for _, fn := range fns {
		lower := strings.ToLower(fn)
		for _, bad := range dangerousFunctions {
			if strings.Contains(lower, bad) {
				dangerous = append(dangerous, lower)
				break
			}
		}
	}
	if len(dangerous) > 0 {
		return fmt.Errorf("dangerous function(s) detected: %s", strings.Join(dangerous, ", "))
	}

	return nil
}

// collectFunctionNames walks the parsed-JSON AST looking for FuncCall
// nodes, collecting the dotted function name of each. Walking the
// generic JSON tree (rather than the generated protobuf struct tree)
// keeps this resilient to shape details of any one pg_query_go release.
func collectFunctionNames(raw json.RawMessage) []string {
	var names []string
	var walk func(any)
	walk = func(node any) {
		switch n := node.(type) {
		case map[string]any:
			if fc, ok := n["FuncCall"]; ok {
				if fcMap, ok := fc.(map[string]any); ok {
					names = append(names, funcNameOf(fcMap))
				}
			}
			for _, v := range n {
				walk(v)
			}
		case []any:
			for _, v := range n {
				walk(v)
			}
		}
	}

	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil
	}
	walk(generic)
	return names
}

func funcNameOf(fcMap map[string]any) string {
	funcnameRaw, ok := fcMap["funcname"].([]any)
	if !ok {
		return ""
	}
	var parts []string
	for _, part := range funcnameRaw {
		if m, ok := part.(map[string]any); ok {
			if s, ok := m["String"].(map[string]any); ok {
				if sval, ok := s["sval"].(string); ok {
					parts = append(parts, sval)
				}
			}
		}
	}
	return strings.Join(parts, ".")
}
