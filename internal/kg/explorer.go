package kg

import (
	"context"
	"fmt"
	"strings"

	"github.com/crawlbridge/crawlbridge/internal/errors"
)

// maxRecords caps result lists so responses stay readable.
const maxRecords = 20

const commandUsage = "Available commands: repos, explore <repo>, classes [repo], class <name>, method <name> [class], query <cypher>"

// Result is the envelope returned for every explorer command.
type Result struct {
	Success  bool           `json:"success"`
	Command  string         `json:"command"`
	Data     map[string]any `json:"data,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// Explorer interprets the command language over a graph runner.
type Explorer struct {
	runner Runner
}

// NewExplorer creates an explorer over the given runner.
func NewExplorer(runner Runner) *Explorer {
	return &Explorer{runner: runner}
}

// Execute parses and runs one command. Malformed commands return a
// validation error; lookups that find nothing return an unsuccessful
// Result so the caller can report it without a stack of wrapping.
func (e *Explorer) Execute(ctx context.Context, command string) (*Result, error) {
	command = strings.TrimSpace(command)
	if command == "" {
		return nil, errors.ValidationCode(errors.ErrCodeInvalidCommand,
			"command cannot be empty. "+commandUsage)
	}

	parts := strings.Fields(command)
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "repos":
		return e.repos(ctx, command)
	case "explore":
		if len(args) == 0 {
			return nil, errors.ValidationCode(errors.ErrCodeInvalidCommand,
				"repository name required. Usage: explore <repo_name>")
		}
		return e.explore(ctx, command, args[0])
	case "classes":
		repo := ""
		if len(args) > 0 {
			repo = args[0]
		}
		return e.classes(ctx, command, repo)
	case "class":
		if len(args) == 0 {
			return nil, errors.ValidationCode(errors.ErrCodeInvalidCommand,
				"class name required. Usage: class <class_name>")
		}
		return e.class(ctx, command, args[0])
	case "method":
		if len(args) == 0 {
			return nil, errors.ValidationCode(errors.ErrCodeInvalidCommand,
				"method name required. Usage: method <method_name> [class_name]")
		}
		class := ""
		if len(args) > 1 {
			class = args[1]
		}
		return e.method(ctx, command, args[0], class)
	case "query":
		cypher := strings.TrimSpace(strings.TrimPrefix(command, parts[0]))
		if cypher == "" {
			return nil, errors.ValidationCode(errors.ErrCodeInvalidCommand,
				"Cypher query required. Usage: query <cypher_query>")
		}
		return e.rawQuery(ctx, command, cypher)
	default:
		return nil, errors.ValidationCode(errors.ErrCodeInvalidCommand,
			fmt.Sprintf("unknown command %q. %s", cmd, commandUsage))
	}
}

func (e *Explorer) repos(ctx context.Context, command string) (*Result, error) {
	records, err := e.runner.Run(ctx,
		"MATCH (r:Repository) RETURN r.name AS name ORDER BY r.name", nil)
	if err != nil {
		return nil, err
	}

	repos := make([]string, 0, len(records))
	for _, rec := range records {
		repos = append(repos, asString(rec["name"]))
	}

	return &Result{
		Success:  true,
		Command:  command,
		Data:     map[string]any{"repositories": repos},
		Metadata: map[string]any{"total_results": len(repos), "limited": false},
	}, nil
}

func (e *Explorer) explore(ctx context.Context, command, repo string) (*Result, error) {
	params := map[string]any{"repo_name": repo}

	exists, err := e.runner.Run(ctx,
		"MATCH (r:Repository {name: $repo_name}) RETURN r.name AS name", params)
	if err != nil {
		return nil, err
	}
	if len(exists) == 0 {
		return &Result{
			Success: false,
			Command: command,
			Error:   fmt.Sprintf("repository %q not found in knowledge graph", repo),
		}, nil
	}

	counts := []struct {
		key    string
		cypher string
	}{
		{"files", `MATCH (r:Repository {name: $repo_name})-[:CONTAINS]->(f:File)
RETURN count(f) AS n`},
		{"classes", `MATCH (r:Repository {name: $repo_name})-[:CONTAINS]->(f:File)-[:DEFINES]->(c:Class)
RETURN count(DISTINCT c) AS n`},
		{"functions", `MATCH (r:Repository {name: $repo_name})-[:CONTAINS]->(f:File)-[:DEFINES]->(fn:Function)
RETURN count(DISTINCT fn) AS n`},
		{"methods", `MATCH (r:Repository {name: $repo_name})-[:CONTAINS]->(f:File)-[:DEFINES]->(c:Class)-[:HAS_METHOD]->(m:Method)
RETURN count(DISTINCT m) AS n`},
	}

	stats := make(map[string]any, len(counts))
	for _, c := range counts {
		records, err := e.runner.Run(ctx, c.cypher, params)
		if err != nil {
			return nil, err
		}
		stats[c.key] = asInt(firstValue(records, "n"))
	}

	return &Result{
		Success: true,
		Command: command,
		Data: map[string]any{
			"repository": repo,
			"statistics": stats,
		},
		Metadata: map[string]any{"total_results": 1, "limited": false},
	}, nil
}

func (e *Explorer) classes(ctx context.Context, command, repo string) (*Result, error) {
	var (
		records []map[string]any
		err     error
	)
	if repo != "" {
		records, err = e.runner.Run(ctx, `MATCH (r:Repository {name: $repo_name})-[:CONTAINS]->(f:File)-[:DEFINES]->(c:Class)
RETURN c.name AS name, c.full_name AS full_name
ORDER BY c.name
LIMIT $limit`, map[string]any{"repo_name": repo, "limit": maxRecords})
	} else {
		records, err = e.runner.Run(ctx, `MATCH (c:Class)
RETURN c.name AS name, c.full_name AS full_name
ORDER BY c.name
LIMIT $limit`, map[string]any{"limit": maxRecords})
	}
	if err != nil {
		return nil, err
	}

	classes := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		classes = append(classes, map[string]any{
			"name":      asString(rec["name"]),
			"full_name": asString(rec["full_name"]),
		})
	}

	data := map[string]any{"classes": classes}
	if repo != "" {
		data["repository_filter"] = repo
	}

	return &Result{
		Success:  true,
		Command:  command,
		Data:     data,
		Metadata: map[string]any{"total_results": len(classes), "limited": len(classes) >= maxRecords},
	}, nil
}

func (e *Explorer) class(ctx context.Context, command, name string) (*Result, error) {
	params := map[string]any{"class_name": name}

	found, err := e.runner.Run(ctx, `MATCH (c:Class)
WHERE c.name = $class_name OR c.full_name = $class_name
RETURN c.name AS name, c.full_name AS full_name
LIMIT 1`, params)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return &Result{
			Success: false,
			Command: command,
			Error:   fmt.Sprintf("class %q not found in knowledge graph", name),
		}, nil
	}

	methodRecords, err := e.runner.Run(ctx, `MATCH (c:Class)-[:HAS_METHOD]->(m:Method)
WHERE c.name = $class_name OR c.full_name = $class_name
RETURN m.name AS name, m.params_list AS params_list, m.params_detailed AS params_detailed, m.return_type AS return_type
ORDER BY m.name`, params)
	if err != nil {
		return nil, err
	}

	methods := make([]map[string]any, 0, len(methodRecords))
	for _, rec := range methodRecords {
		methods = append(methods, map[string]any{
			"name":        asString(rec["name"]),
			"parameters":  methodParams(rec),
			"return_type": orDefault(rec["return_type"], "Any"),
		})
	}

	attrRecords, err := e.runner.Run(ctx, `MATCH (c:Class)-[:HAS_ATTRIBUTE]->(a:Attribute)
WHERE c.name = $class_name OR c.full_name = $class_name
RETURN a.name AS name, a.type AS type
ORDER BY a.name`, params)
	if err != nil {
		return nil, err
	}

	attributes := make([]map[string]any, 0, len(attrRecords))
	for _, rec := range attrRecords {
		attributes = append(attributes, map[string]any{
			"name": asString(rec["name"]),
			"type": orDefault(rec["type"], "Any"),
		})
	}

	return &Result{
		Success: true,
		Command: command,
		Data: map[string]any{
			"class": map[string]any{
				"name":       asString(found[0]["name"]),
				"full_name":  asString(found[0]["full_name"]),
				"methods":    methods,
				"attributes": attributes,
			},
		},
		Metadata: map[string]any{
			"total_results":    1,
			"methods_count":    len(methods),
			"attributes_count": len(attributes),
			"limited":          false,
		},
	}, nil
}

func (e *Explorer) method(ctx context.Context, command, method, class string) (*Result, error) {
	var (
		records []map[string]any
		err     error
	)
	if class != "" {
		records, err = e.runner.Run(ctx, `MATCH (c:Class)-[:HAS_METHOD]->(m:Method)
WHERE (c.name = $class_name OR c.full_name = $class_name)
  AND m.name = $method_name
RETURN c.name AS class_name, c.full_name AS class_full_name,
       m.name AS method_name, m.params_list AS params_list,
       m.params_detailed AS params_detailed, m.return_type AS return_type`,
			map[string]any{"class_name": class, "method_name": method})
	} else {
		records, err = e.runner.Run(ctx, `MATCH (c:Class)-[:HAS_METHOD]->(m:Method)
WHERE m.name = $method_name
RETURN c.name AS class_name, c.full_name AS class_full_name,
       m.name AS method_name, m.params_list AS params_list,
       m.params_detailed AS params_detailed, m.return_type AS return_type
ORDER BY c.name
LIMIT $limit`, map[string]any{"method_name": method, "limit": maxRecords})
	}
	if err != nil {
		return nil, err
	}

	if len(records) == 0 {
		msg := fmt.Sprintf("method %q not found", method)
		if class != "" {
			msg = fmt.Sprintf("method %q in class %q not found", method, class)
		}
		return &Result{Success: false, Command: command, Error: msg}, nil
	}

	methods := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		methods = append(methods, map[string]any{
			"class_name":      asString(rec["class_name"]),
			"class_full_name": asString(rec["class_full_name"]),
			"method_name":     asString(rec["method_name"]),
			"parameters":      methodParams(rec),
			"return_type":     orDefault(rec["return_type"], "Any"),
		})
	}

	data := map[string]any{"methods": methods}
	if class != "" {
		data["class_filter"] = class
	}

	return &Result{
		Success:  true,
		Command:  command,
		Data:     data,
		Metadata: map[string]any{"total_results": len(methods), "limited": len(methods) >= maxRecords && class == ""},
	}, nil
}

func (e *Explorer) rawQuery(ctx context.Context, command, cypher string) (*Result, error) {
	records, err := e.runner.Run(ctx, cypher, nil)
	if err != nil {
		return nil, err
	}
	limited := len(records) >= maxRecords
	if len(records) > maxRecords {
		records = records[:maxRecords]
	}
	if records == nil {
		records = []map[string]any{}
	}

	return &Result{
		Success: true,
		Command: command,
		Data: map[string]any{
			"query":   cypher,
			"results": records,
		},
		Metadata: map[string]any{"total_results": len(records), "limited": limited},
	}, nil
}

// methodParams prefers the detailed parameter list, falling back to the
// simple one, then an empty list.
func methodParams(rec map[string]any) any {
	if p := asList(rec["params_detailed"]); len(p) > 0 {
		return p
	}
	if p := asList(rec["params_list"]); len(p) > 0 {
		return p
	}
	return []any{}
}

func firstValue(records []map[string]any, key string) any {
	if len(records) == 0 {
		return nil
	}
	return records[0][key]
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asList(v any) []any {
	l, _ := v.([]any)
	return l
}

// asInt normalizes the driver's int64 counts.
func asInt(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	default:
		return 0
	}
}

func orDefault(v any, fallback string) string {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return fallback
}
