package query

import (
	"fmt"
	"strings"

	"github.com/ragedhq/raged/pkg/apperror"
)

// Filter operators.
const (
	OpEq         = "eq"
	OpNe         = "ne"
	OpGt         = "gt"
	OpGte        = "gte"
	OpLt         = "lt"
	OpLte        = "lte"
	OpIn         = "in"
	OpNotIn      = "notIn"
	OpBetween    = "between"
	OpNotBetween = "notBetween"
	OpIsNull     = "isNull"
	OpIsNotNull  = "isNotNull"
)

var equalityOps = []string{OpEq, OpNe, OpIn, OpNotIn, OpIsNull, OpIsNotNull}
var orderedOps = []string{OpEq, OpNe, OpGt, OpGte, OpLt, OpLte, OpIn, OpNotIn,
	OpBetween, OpNotBetween, OpIsNull, OpIsNotNull}

// fieldSpec binds one logical filter field to a physical column. Every
// externally supplied identifier resolves through this closed table;
// values only ever travel as positional parameters.
type fieldSpec struct {
	alias  string
	column string
	ops    map[string]bool

	// prefixMatch rewrites eq/ne to a LIKE prefix match.
	prefixMatch bool
}

func spec(alias, column string, ops []string) fieldSpec {
	set := make(map[string]bool, len(ops))
	for _, op := range ops {
		set[op] = true
	}
	return fieldSpec{alias: alias, column: column, ops: set}
}

var fieldSpecs = map[string]fieldSpec{
	"docType":          spec("c", "doc_type", equalityOps),
	"lang":             spec("c", "lang", equalityOps),
	"source":           spec("c", "source", equalityOps),
	"repoId":           spec("c", "repo_id", equalityOps),
	"repoUrl":          spec("c", "repo_url", equalityOps),
	"itemUrl":          spec("c", "item_url", equalityOps),
	"enrichmentStatus": spec("c", "enrichment_status", equalityOps),
	"chunkIndex":       spec("c", "chunk_index", orderedOps),
	"createdAt":        spec("c", "created_at", orderedOps),
	"path": {
		alias:       "c",
		column:      "path",
		ops:         toSet(equalityOps),
		prefixMatch: true,
	},
	"baseId":     spec("d", "base_id", equalityOps),
	"mimeType":   spec("d", "mime_type", equalityOps),
	"ingestedAt": spec("d", "ingested_at", orderedOps),
	"updatedAt":  spec("d", "updated_at", orderedOps),
	"lastSeen":   spec("d", "last_seen", orderedOps),
}

func toSet(ops []string) map[string]bool {
	set := make(map[string]bool, len(ops))
	for _, op := range ops {
		set[op] = true
	}
	return set
}

// Condition is one clause of the filter DSL.
type Condition struct {
	Field  string `json:"field"`
	Op     string `json:"op"`
	Value  any    `json:"value,omitempty"`
	Values []any  `json:"values,omitempty"`
	Range  []any  `json:"range,omitempty"`
	Alias  string `json:"alias,omitempty"`
}

// Compiled is the output of the filter compiler: a SQL fragment of the
// form " AND (...)" and its ordered parameters. Parameter numbering
// starts at the offset handed to Compile.
type Compiled struct {
	SQL  string
	Args []any
}

// Compile validates a filter object and translates it to SQL. The
// filter may use the condition DSL or the legacy shapes (plain
// key/value pairs, must, must_not); mixing both forms is rejected.
func Compile(filter map[string]any, argOffset int) (*Compiled, error) {
	if len(filter) == 0 {
		return &Compiled{SQL: "", Args: nil}, nil
	}

	conditions, combine, err := normalize(filter)
	if err != nil {
		return nil, err
	}
	if len(conditions) == 0 {
		return &Compiled{SQL: "", Args: nil}, nil
	}

	parts := make([]string, 0, len(conditions))
	args := make([]any, 0, len(conditions))
	next := argOffset

	for _, cond := range conditions {
		sql, condArgs, err := compileCondition(cond, next)
		if err != nil {
			return nil, err
		}
		parts = append(parts, sql)
		args = append(args, condArgs...)
		next += len(condArgs)
	}

	joiner := " AND "
	if combine == "or" {
		joiner = " OR "
	}

	joined := strings.Join(parts, joiner)
	if len(parts) > 1 {
		joined = "(" + joined + ")"
	}

	return &Compiled{SQL: " AND " + joined, Args: args}, nil
}

// normalize converts either filter shape into a condition list.
func normalize(filter map[string]any) ([]Condition, string, error) {
	_, hasConditions := filter["conditions"]
	_, hasCombine := filter["combine"]
	_, hasMust := filter["must"]
	_, hasMustNot := filter["must_not"]

	legacyShorthand := false
	for key := range filter {
		switch key {
		case "conditions", "combine", "must", "must_not":
		default:
			legacyShorthand = true
		}
	}

	if (hasConditions || hasCombine) && (hasMust || hasMustNot || legacyShorthand) {
		return nil, "", validationError("filter cannot mix the condition DSL with legacy shapes")
	}

	if hasConditions || hasCombine {
		return normalizeDSL(filter)
	}
	return normalizeLegacy(filter)
}

func normalizeDSL(filter map[string]any) ([]Condition, string, error) {
	combine := "and"
	if raw, ok := filter["combine"]; ok {
		s, ok := raw.(string)
		if !ok || (s != "and" && s != "or") {
			return nil, "", validationError("combine must be \"and\" or \"or\"")
		}
		combine = s
	}

	rawList, ok := filter["conditions"].([]any)
	if !ok {
		return nil, "", validationError("conditions must be an array")
	}

	conditions := make([]Condition, 0, len(rawList))
	for _, raw := range rawList {
		obj, ok := raw.(map[string]any)
		if !ok {
			return nil, "", validationError("each condition must be an object")
		}
		cond := Condition{}
		cond.Field, _ = obj["field"].(string)
		cond.Op, _ = obj["op"].(string)
		cond.Value = obj["value"]
		cond.Values, _ = obj["values"].([]any)
		cond.Range, _ = obj["range"].([]any)
		cond.Alias, _ = obj["alias"].(string)
		conditions = append(conditions, cond)
	}
	return conditions, combine, nil
}

func normalizeLegacy(filter map[string]any) ([]Condition, string, error) {
	var conditions []Condition

	appendList := func(raw any, negate bool) error {
		list, ok := raw.([]any)
		if !ok {
			return validationError("must and must_not require arrays")
		}
		for _, entry := range list {
			obj, ok := entry.(map[string]any)
			if !ok {
				return validationError("each must clause must be an object")
			}
			cond := Condition{}
			cond.Field, _ = obj["field"].(string)
			cond.Op, _ = obj["op"].(string)
			cond.Value = obj["value"]
			cond.Values, _ = obj["values"].([]any)
			cond.Range, _ = obj["range"].([]any)
			if cond.Op == "" {
				cond.Op = OpEq
			}
			if negate {
				negated, err := negateOp(cond.Op)
				if err != nil {
					return err
				}
				cond.Op = negated
			}
			conditions = append(conditions, cond)
		}
		return nil
	}

	for key, value := range filter {
		switch key {
		case "must":
			if err := appendList(value, false); err != nil {
				return nil, "", err
			}
		case "must_not":
			if err := appendList(value, true); err != nil {
				return nil, "", err
			}
		default:
			conditions = append(conditions, Condition{Field: key, Op: OpEq, Value: value})
		}
	}

	return conditions, "and", nil
}

func negateOp(op string) (string, error) {
	switch op {
	case OpEq:
		return OpNe, nil
	case OpNe:
		return OpEq, nil
	case OpIn:
		return OpNotIn, nil
	case OpNotIn:
		return OpIn, nil
	case OpBetween:
		return OpNotBetween, nil
	case OpNotBetween:
		return OpBetween, nil
	case OpIsNull:
		return OpIsNotNull, nil
	case OpIsNotNull:
		return OpIsNull, nil
	case OpGt:
		return OpLte, nil
	case OpGte:
		return OpLt, nil
	case OpLt:
		return OpGte, nil
	case OpLte:
		return OpGt, nil
	}
	return "", validationError(fmt.Sprintf("unknown operator %q", op))
}

func compileCondition(cond Condition, argOffset int) (string, []any, error) {
	fieldSpec, ok := fieldSpecs[cond.Field]
	if !ok {
		return "", nil, validationError(fmt.Sprintf("unknown filter field %q", cond.Field))
	}
	if cond.Alias != "" && cond.Alias != fieldSpec.alias {
		return "", nil, validationError(fmt.Sprintf(
			"field %q binds to alias %q, not %q", cond.Field, fieldSpec.alias, cond.Alias))
	}
	if !fieldSpec.ops[cond.Op] {
		return "", nil, validationError(fmt.Sprintf(
			"operator %q is not allowed on field %q", cond.Op, cond.Field))
	}

	column := fieldSpec.alias + "." + fieldSpec.column

	switch cond.Op {
	case OpEq, OpNe:
		if cond.Value == nil {
			return "", nil, validationError(fmt.Sprintf("field %q requires a value", cond.Field))
		}
		if fieldSpec.prefixMatch {
			op := "LIKE"
			if cond.Op == OpNe {
				op = "NOT LIKE"
			}
			return fmt.Sprintf("%s %s $%d || '%%'", column, op, argOffset), []any{cond.Value}, nil
		}
		op := "="
		if cond.Op == OpNe {
			op = "<>"
		}
		return fmt.Sprintf("%s %s $%d", column, op, argOffset), []any{cond.Value}, nil

	case OpGt, OpGte, OpLt, OpLte:
		if cond.Value == nil {
			return "", nil, validationError(fmt.Sprintf("field %q requires a value", cond.Field))
		}
		ops := map[string]string{OpGt: ">", OpGte: ">=", OpLt: "<", OpLte: "<="}
		return fmt.Sprintf("%s %s $%d", column, ops[cond.Op], argOffset), []any{cond.Value}, nil

	case OpIn, OpNotIn:
		values := cond.Values
		if values == nil {
			values, _ = cond.Value.([]any)
		}
		if len(values) == 0 {
			return "", nil, validationError(fmt.Sprintf(
				"operator %q on field %q requires a non-empty list", cond.Op, cond.Field))
		}
		placeholders := make([]string, len(values))
		for i := range values {
			placeholders[i] = fmt.Sprintf("$%d", argOffset+i)
		}
		op := "IN"
		if cond.Op == OpNotIn {
			op = "NOT IN"
		}
		return fmt.Sprintf("%s %s (%s)", column, op, strings.Join(placeholders, ", ")), values, nil

	case OpBetween, OpNotBetween:
		if len(cond.Range) != 2 || cond.Range[0] == nil || cond.Range[1] == nil {
			return "", nil, validationError(fmt.Sprintf(
				"operator %q on field %q requires a two-element range", cond.Op, cond.Field))
		}
		expr := fmt.Sprintf("%s BETWEEN $%d AND $%d", column, argOffset, argOffset+1)
		if cond.Op == OpNotBetween {
			expr = fmt.Sprintf("%s NOT BETWEEN $%d AND $%d", column, argOffset, argOffset+1)
		}
		return expr, []any{cond.Range[0], cond.Range[1]}, nil

	case OpIsNull:
		return column + " IS NULL", nil, nil
	case OpIsNotNull:
		return column + " IS NOT NULL", nil, nil
	}

	return "", nil, validationError(fmt.Sprintf("unknown operator %q", cond.Op))
}

func validationError(message string) error {
	return apperror.NewFilterValidation(message)
}
