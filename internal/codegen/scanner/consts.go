package scanner

import (
	"go/ast"
	"go/constant"
	"go/token"
)

// typedConst is a constant declared with, or inferred to have, a named type.
type typedConst struct {
	Name  string
	Type  string
	Value constant.Value // nil when the value cannot be computed from the file alone
}

// constScope holds the constants of one file evaluated so far.
type constScope struct {
	values map[string]constant.Value
	types  map[string]string
}

// collectConsts evaluates the const declarations of a file in order.
// Inside a block, a spec without values repeats the previous spec's type
// and expressions with the current iota, as the compiler does.
func collectConsts(file *ast.File) []typedConst {
	sc := &constScope{values: map[string]constant.Value{}, types: map[string]string{}}
	var out []typedConst
	for _, decl := range file.Decls {
		gd, ok := decl.(*ast.GenDecl)
		if !ok || gd.Tok != token.CONST {
			continue
		}
		var prevType ast.Expr
		var prevValues []ast.Expr
		for iota, spec := range gd.Specs {
			vs, ok := spec.(*ast.ValueSpec)
			if !ok {
				continue
			}
			typeExpr, values := vs.Type, vs.Values
			if len(values) == 0 {
				typeExpr, values = prevType, prevValues
			} else {
				prevType, prevValues = vs.Type, vs.Values
			}

			for i, n := range vs.Names {
				var val constant.Value
				typ := ""
				if id, ok := typeExpr.(*ast.Ident); ok {
					typ = id.Name
				}
				if i < len(values) {
					val = sc.eval(values[i], int64(iota))
					if typ == "" {
						typ = sc.typeOf(values[i])
					}
				}
				if n.Name == "_" {
					continue
				}
				sc.values[n.Name] = val
				sc.types[n.Name] = typ
				if typ != "" {
					out = append(out, typedConst{Name: n.Name, Type: typ, Value: val})
				}
			}
		}
	}
	return out
}

// typeOf returns the named type an untyped-looking expression takes from a
// conversion or from a typed constant it references.
func (sc *constScope) typeOf(e ast.Expr) string {
	switch t := e.(type) {
	case *ast.CallExpr:
		if id, ok := t.Fun.(*ast.Ident); ok && id.Name != "len" {
			return id.Name
		}
	case *ast.Ident:
		return sc.types[t.Name]
	case *ast.ParenExpr:
		return sc.typeOf(t.X)
	case *ast.UnaryExpr:
		return sc.typeOf(t.X)
	case *ast.BinaryExpr:
		if typ := sc.typeOf(t.X); typ != "" {
			return typ
		}
		return sc.typeOf(t.Y)
	}
	return ""
}

// eval computes a constant expression, or nil when it depends on anything
// outside the file's own constants.
func (sc *constScope) eval(e ast.Expr, iota int64) constant.Value {
	v := sc.evalExpr(e, iota)
	if v == nil || v.Kind() == constant.Unknown {
		return nil
	}
	return v
}

func (sc *constScope) evalExpr(e ast.Expr, iota int64) constant.Value {
	switch t := e.(type) {
	case *ast.BasicLit:
		return constant.MakeFromLiteral(t.Value, t.Kind, 0)
	case *ast.Ident:
		switch t.Name {
		case "iota":
			return constant.MakeInt64(iota)
		case "true", "false":
			return constant.MakeBool(t.Name == "true")
		}
		return sc.values[t.Name]
	case *ast.ParenExpr:
		return sc.eval(t.X, iota)
	case *ast.CallExpr:
		if len(t.Args) != 1 || t.Ellipsis.IsValid() {
			return nil
		}
		arg := sc.eval(t.Args[0], iota)
		if arg == nil {
			return nil
		}
		if id, ok := t.Fun.(*ast.Ident); ok && id.Name == "len" {
			if arg.Kind() != constant.String {
				return nil
			}
			return constant.MakeInt64(int64(len(constant.StringVal(arg))))
		}
		// conversion to a named or basic type keeps the value
		return arg
	case *ast.UnaryExpr:
		x := sc.eval(t.X, iota)
		if x == nil || !numeric(x) && t.Op != token.NOT {
			return nil
		}
		switch t.Op {
		case token.ADD, token.SUB, token.XOR:
			if t.Op == token.XOR && x.Kind() != constant.Int {
				return nil
			}
			return constant.UnaryOp(t.Op, x, 0)
		case token.NOT:
			if x.Kind() != constant.Bool {
				return nil
			}
			return constant.UnaryOp(t.Op, x, 0)
		}
		return nil
	case *ast.BinaryExpr:
		return sc.binary(t, iota)
	}
	return nil
}

func (sc *constScope) binary(t *ast.BinaryExpr, iota int64) constant.Value {
	x, y := sc.eval(t.X, iota), sc.eval(t.Y, iota)
	if x == nil || y == nil {
		return nil
	}
	switch t.Op {
	case token.SHL, token.SHR:
		s, ok := constant.Uint64Val(y)
		if x.Kind() != constant.Int || y.Kind() != constant.Int || !ok || s > 1<<12 {
			return nil
		}
		return constant.Shift(x, t.Op, uint(s))
	case token.EQL, token.NEQ, token.LSS, token.LEQ, token.GTR, token.GEQ:
		if x.Kind() != y.Kind() && !(numeric(x) && numeric(y)) {
			return nil
		}
		if x.Kind() == constant.Bool && t.Op != token.EQL && t.Op != token.NEQ {
			return nil
		}
		return constant.MakeBool(constant.Compare(x, t.Op, y))
	case token.LAND, token.LOR:
		if x.Kind() != constant.Bool || y.Kind() != constant.Bool {
			return nil
		}
		return constant.BinaryOp(x, t.Op, y)
	case token.ADD:
		if x.Kind() == constant.String && y.Kind() == constant.String {
			return constant.BinaryOp(x, t.Op, y)
		}
	}

	if !numeric(x) || !numeric(y) {
		return nil
	}
	op := t.Op
	switch op {
	case token.QUO, token.REM:
		if constant.Sign(y) == 0 {
			return nil
		}
		if x.Kind() == constant.Int && y.Kind() == constant.Int && op == token.QUO {
			op = token.QUO_ASSIGN
		}
	case token.AND, token.OR, token.XOR, token.AND_NOT:
		if x.Kind() != constant.Int || y.Kind() != constant.Int {
			return nil
		}
	case token.ADD, token.SUB, token.MUL:
	default:
		return nil
	}
	if op == token.REM && (x.Kind() != constant.Int || y.Kind() != constant.Int) {
		return nil
	}
	return constant.BinaryOp(x, op, y)
}

func numeric(v constant.Value) bool {
	return v.Kind() == constant.Int || v.Kind() == constant.Float
}
