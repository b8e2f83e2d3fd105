package condition

import (
	"strings"
	"sync"

	"github.com/chainburn/chainburn/pkg/errs"
	"github.com/chainburn/chainburn/pkg/variables"
)

// VariableSource is the minimal read surface the condition evaluator needs
// from a variable store (§4.2 atoms resolve through C1).
type VariableSource interface {
	Lookup(name string) (variables.Value, bool)
}

// Evaluator tokenizes and evaluates condition expressions. Parsed ASTs are
// cached by expression text since the same manifest condition string is
// typically evaluated many times across Detect/Plan passes.
type Evaluator struct {
	mu    sync.Mutex
	cache map[string]boolNode
}

// NewEvaluator creates a ready-to-use Evaluator.
func NewEvaluator() *Evaluator {
	return &Evaluator{cache: make(map[string]boolNode)}
}

// Evaluate parses (or recalls from cache) expr and evaluates it against
// vars, returning a bool or an InvalidData error carrying the 1-based rune
// position of the offending token (§4.2, §7).
func (e *Evaluator) Evaluate(expr string, vars VariableSource) (bool, error) {
	node, err := e.parseCached(expr)
	if err != nil {
		return false, errs.NewInvalidData(err.msg).WithPosition(err.pos)
	}
	return node.eval(vars)
}

func (e *Evaluator) parseCached(expr string) (boolNode, *posError) {
	e.mu.Lock()
	if node, ok := e.cache[expr]; ok {
		e.mu.Unlock()
		return node, nil
	}
	e.mu.Unlock()

	node, perr := parse(expr)
	if perr != nil {
		return nil, perr
	}
	e.mu.Lock()
	e.cache[expr] = node
	e.mu.Unlock()
	return node, nil
}

// resolve turns a parsed valueNode into a variables.Value, looking up
// identifiers in vars. Missing identifiers resolve to variables.None, the
// same as the None type's truthiness and coercion behavior.
func resolve(v valueNode, vars VariableSource) variables.Value {
	switch v.kind {
	case tokIdent:
		if val, ok := vars.Lookup(v.name); ok {
			return val
		}
		return variables.None
	case tokInteger:
		return variables.Numeric(v.num)
	case tokString:
		return variables.String(v.text)
	case tokVersion:
		return variables.VersionValue(variables.ParseVersion(v.text))
	default:
		return variables.None
	}
}

func evalAtom(n *atomNode, vars VariableSource) (bool, error) {
	left := resolve(n.left, vars)
	if !n.hasOp {
		return left.Truthy(), nil
	}
	right := resolve(n.right, vars)
	return compare(left, right, n.op, n.caseInsensitive)
}

// compare implements the type-coercion table in §4.2: same-type
// comparisons go direct, and cross-type comparisons parse one side into the
// other's type, falling back to "only <> is true" when the parse fails.
func compare(l, r variables.Value, op cmpOp, ci bool) (bool, error) {
	switch {
	case l.Type == variables.TypeVersion || r.Type == variables.TypeVersion:
		return compareAsVersion(l, r, op)
	case l.Type == variables.TypeNumeric && r.Type == variables.TypeNumeric:
		return compareNumeric(l.Numeric, r.Numeric, op)
	case l.Type == variables.TypeNumeric || r.Type == variables.TypeNumeric:
		return compareNumericCoerced(l, r, op)
	default:
		return compareString(l.AsString(), r.AsString(), op, ci)
	}
}

func compareAsVersion(l, r variables.Value, op cmpOp) (bool, error) {
	lv, lerr := l.AsVersion()
	rv, rerr := r.AsVersion()
	if lerr != nil || rerr != nil {
		return op == cmpNE, nil
	}
	c := lv.Compare(rv)
	return applyOrdering(c, op)
}

func compareNumeric(l, r int64, op cmpOp) (bool, error) {
	var c int
	switch {
	case l < r:
		c = -1
	case l > r:
		c = 1
	}
	switch op {
	case cmpContains:
		return l&r != 0, nil
	case cmpStarts:
		return (l>>32) == (r>>32), nil
	case cmpEnds:
		return (l & 0xffffffff) == (r & 0xffffffff), nil
	default:
		return applyOrdering(c, op)
	}
}

func compareNumericCoerced(l, r variables.Value, op cmpOp) (bool, error) {
	// Exactly one side is Numeric; parse the other side as i64. On parse
	// failure, only <> is considered true (§4.2 coercion table).
	ln, lerr := l.AsNumeric()
	rn, rerr := r.AsNumeric()
	if lerr != nil || rerr != nil {
		return op == cmpNE, nil
	}
	return compareNumeric(ln, rn, op)
}

func compareString(l, r string, op cmpOp, ci bool) (bool, error) {
	switch op {
	case cmpContains:
		if ci {
			return strings.Contains(strings.ToLower(l), strings.ToLower(r)), nil
		}
		return strings.Contains(l, r), nil
	case cmpStarts:
		if ci {
			return strings.HasPrefix(strings.ToLower(l), strings.ToLower(r)), nil
		}
		return strings.HasPrefix(l, r), nil
	case cmpEnds:
		if ci {
			return strings.HasSuffix(strings.ToLower(l), strings.ToLower(r)), nil
		}
		return strings.HasSuffix(l, r), nil
	default:
		var c int
		if ci {
			c = strings.Compare(strings.ToLower(l), strings.ToLower(r))
		} else {
			c = strings.Compare(l, r)
		}
		return applyOrdering(c, op)
	}
}

func applyOrdering(c int, op cmpOp) (bool, error) {
	switch op {
	case cmpLT:
		return c < 0, nil
	case cmpGT:
		return c > 0, nil
	case cmpLE:
		return c <= 0, nil
	case cmpGE:
		return c >= 0, nil
	case cmpEQ:
		return c == 0, nil
	case cmpNE:
		return c != 0, nil
	default:
		return false, errs.NewInvalidData("comparator not valid for this value combination")
	}
}
