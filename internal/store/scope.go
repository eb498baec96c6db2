package store

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/sirupsen/logrus"
)

// QueryScoper rewrites ad hoc Cypher so every matched entity variable is
// constrained to one codebase (or the global one) without the caller writing
// tenant filters by hand.
//
// Variable discovery is pattern-based, not a real Cypher parser: it covers
// the MATCH shapes this tool emits and documents. Subqueries, quantified
// path patterns and exotic clause layouts can defeat it; hardening further
// would mean a full query-language parser, which is out of scope.
type QueryScoper struct {
	client *Client
	logger *logrus.Logger
}

// NewQueryScoper creates a codebase-scoping query façade.
func NewQueryScoper(client *Client, logger *logrus.Logger) *QueryScoper {
	return &QueryScoper{client: client, logger: logger}
}

// matchVarRe captures entity variables introduced by pattern-match clauses:
// `(v:Label`, `(v {`, `(v)` inside MATCH / OPTIONAL MATCH patterns.
var matchVarRe = regexp.MustCompile(`\(\s*([a-zA-Z_][a-zA-Z0-9_]*)\s*(?::|\{|\))`)

// matchKeywordRe locates MATCH / OPTIONAL MATCH clause starts so variables
// are only harvested from pattern context, not from RETURN expressions.
var matchKeywordRe = regexp.MustCompile(`(?i)\b(?:OPTIONAL\s+)?MATCH\b`)

// clauseBoundaryRe ends a MATCH pattern at the next clause keyword.
var clauseBoundaryRe = regexp.MustCompile(`(?i)\b(OPTIONAL\s+MATCH|MATCH|WHERE|WITH|RETURN|ORDER\s+BY|LIMIT|SKIP|CREATE|MERGE|UNWIND|CALL)\b`)

// terminalClauseRe finds the first result-shaping clause, before which a new
// WHERE is inserted when the query has none.
var terminalClauseRe = regexp.MustCompile(`(?i)\b(RETURN|WITH|ORDER\s+BY|LIMIT|SKIP)\b`)

// whereClauseRe finds an existing top-level WHERE to extend.
var whereClauseRe = regexp.MustCompile(`(?i)\bWHERE\b`)

// ExtractPatternVariables returns the distinct entity variables introduced by
// the query's pattern-match clauses, in first-seen order.
func ExtractPatternVariables(query string) []string {
	seen := make(map[string]bool)
	var vars []string
	for _, loc := range matchKeywordRe.FindAllStringIndex(query, -1) {
		rest := query[loc[1]:]
		if end := clauseBoundaryRe.FindStringIndex(rest); end != nil {
			rest = rest[:end[0]]
		}
		for _, m := range matchVarRe.FindAllStringSubmatch(rest, -1) {
			name := m[1]
			if seen[name] {
				continue
			}
			seen[name] = true
			vars = append(vars, name)
		}
	}
	return vars
}

// ScopeQuery splices a codebase filter over every discovered variable into
// the query: appended to an existing WHERE when present, otherwise inserted
// as a new WHERE immediately before the first terminal clause. Queries with
// no discoverable variables are returned unchanged.
func ScopeQuery(query, codebaseID string) (string, map[string]any) {
	vars := ExtractPatternVariables(query)
	params := map[string]any{"scopedCodebaseId": []string{codebaseID, "global"}}
	if len(vars) == 0 {
		return query, params
	}

	predicates := make([]string, len(vars))
	for i, v := range vars {
		predicates[i] = fmt.Sprintf("%s.codebaseId IN $scopedCodebaseId", v)
	}
	filter := strings.Join(predicates, " AND ")

	if loc := whereClauseRe.FindStringIndex(query); loc != nil {
		// Extend the existing filter clause.
		insert := loc[1]
		return query[:insert] + " (" + filter + ") AND" + query[insert:], params
	}

	if loc := terminalClauseRe.FindStringIndex(query); loc != nil {
		return query[:loc[0]] + "WHERE " + filter + " " + query[loc[0]:], params
	}

	// No terminal clause at all; append.
	return strings.TrimRight(query, " \n\t") + " WHERE " + filter, params
}

// Run executes a query scoped to the given codebase.
func (qs *QueryScoper) Run(ctx context.Context, query, codebaseID string, params map[string]any) (*neo4j.EagerResult, error) {
	scoped, scopeParams := ScopeQuery(query, codebaseID)
	merged := make(map[string]any, len(params)+1)
	for k, v := range params {
		merged[k] = v
	}
	for k, v := range scopeParams {
		merged[k] = v
	}
	qs.logger.WithFields(logrus.Fields{
		"codebase": codebaseID,
	}).Debug("Executing codebase-scoped query")
	return qs.client.RunRead(ctx, scoped, merged)
}

// RunCrossCodebase bypasses scoping entirely. Privileged: every call is
// logged.
func (qs *QueryScoper) RunCrossCodebase(ctx context.Context, query string, params map[string]any) (*neo4j.EagerResult, error) {
	qs.logger.Warn("Executing privileged cross-codebase query without tenant scoping")
	return qs.client.RunRead(ctx, query, params)
}
