package sema

import (
	"go.uber.org/zap"

	"github.com/tangzhangming/nova/internal/ast"
	"github.com/tangzhangming/nova/internal/errors"
	"github.com/tangzhangming/nova/internal/token"
)

// Analyzer resolves names, inheritance, overloads, and types over a
// parsed Program and produces a SemanticModel. One Analyzer handles one
// Analyze call; Analyze resets all internal state first, so an Analyzer
// value may be reused across compiles.
type Analyzer struct {
	logger *zap.Logger

	classes   map[string]*ClassSymbol
	order     []string // registration order, for stable iteration
	exprTypes map[ast.NodeID]Type
	varTypes  map[ast.NodeID]Type

	// localSymbols maps a VarDeclStmt's NodeID to the symbol it declared,
	// so dead-local cleanup (§4.7) can read IsUsed after a body has been
	// fully walked without re-resolving the name through scope.
	localSymbols map[ast.NodeID]*VariableSymbol

	// topoOrder is the base-first order classes finished analysis in,
	// used by buildSemanticModel as the layout builder's classId order.
	topoOrder []string

	currentClass      *ClassSymbol
	currentReturnType Type
}

// New creates an Analyzer. logger may be nil; phase tracing is skipped
// when it is.
func New(logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{logger: logger}
}

func (a *Analyzer) reset() {
	a.classes = make(map[string]*ClassSymbol)
	a.order = nil
	a.exprTypes = make(map[ast.NodeID]Type)
	a.varTypes = make(map[ast.NodeID]Type)
	a.localSymbols = make(map[ast.NodeID]*VariableSymbol)
	a.topoOrder = nil
	a.currentClass = nil
	a.currentReturnType = Type{}
}

func (a *Analyzer) errf(kind errors.Kind, pos token.Position, format string, args ...interface{}) *errors.CompileError {
	return errors.New(kind, pos, format, args...)
}

// Analyze runs the full §4.1 protocol: reset, RegisterClasses,
// AnalyzeClasses, BuildSemanticModel.
func (a *Analyzer) Analyze(program *ast.Program) (*SemanticModel, *errors.CompileError) {
	a.reset()
	a.logger.Debug("analysis started", zap.Int("classes", len(program.Classes)))

	if err := a.registerClasses(program); err != nil {
		return nil, err
	}
	if err := a.analyzeClasses(); err != nil {
		return nil, err
	}

	model := a.buildSemanticModel()
	a.logger.Debug("analysis complete", zap.Int("resolvedClasses", len(a.classes)))
	return model, nil
}

// registerClasses implements step 2 of §4.1.
func (a *Analyzer) registerClasses(program *ast.Program) *errors.CompileError {
	for _, decl := range program.Classes {
		if _, exists := a.classes[decl.Name]; exists {
			return a.errf(errors.DuplicateClass, decl.NameTok.Pos, "class %q already declared", decl.Name)
		}
		cs := newClassSymbol(decl)
		a.classes[decl.Name] = cs
		a.order = append(a.order, decl.Name)
	}
	return nil
}

// builtinBaseNames are the only non-class base names permitted by §3's
// inheritance invariant.
var builtinBaseNames = map[string]bool{"Integer": true, "Real": true, "Boolean": true}

// analyzeClasses implements step 3 of §4.1: repeated sweeps over the
// pending class set, analyzing any class whose base is built-in, absent,
// or already analyzed. No progress on a full sweep with pending classes
// remaining means a cycle (or a base that will never resolve).
func (a *Analyzer) analyzeClasses() *errors.CompileError {
	pending := make(map[string]bool, len(a.order))
	for _, name := range a.order {
		pending[name] = true
	}

	for len(pending) > 0 {
		progressed := false
		for _, name := range a.order {
			if !pending[name] {
				continue
			}
			cs := a.classes[name]
			if cs.Base != "" && !builtinBaseNames[cs.Base] {
				base, ok := a.classes[cs.Base]
				if !ok {
					return a.errf(errors.UnknownBase, cs.Node.BaseTok.Pos, "class %q extends unknown base %q", cs.Name, cs.Base)
				}
				if !base.analyzed {
					continue // base not ready this sweep; try again next sweep
				}
			}
			if err := a.analyzeClass(cs); err != nil {
				return err
			}
			cs.analyzed = true
			a.topoOrder = append(a.topoOrder, name)
			delete(pending, name)
			progressed = true
		}
		if !progressed {
			var stuck string
			for name := range pending {
				stuck = name
				break
			}
			pos := a.classes[stuck].Node.Tok.Pos
			return a.errf(errors.InheritanceCycleOrUnresolved, pos, "inheritance cycle or unresolvable base involving %q", stuck)
		}
	}
	return nil
}

// analyzeClass is AnalyzeClass = RegisterMembers -> AnalyzeMembers ->
// OptimizeClassMembers.
func (a *Analyzer) analyzeClass(cs *ClassSymbol) *errors.CompileError {
	a.currentClass = cs
	defer func() { a.currentClass = nil }()

	if err := a.registerMembers(cs); err != nil {
		return err
	}
	if err := a.analyzeMembers(cs); err != nil {
		return err
	}
	a.optimizeClassMembers(cs)
	return nil
}

// registerMembers implements §4.2: resolves parameter/return types and
// registers method overloads and constructors, without walking bodies.
func (a *Analyzer) registerMembers(cs *ClassSymbol) *errors.CompileError {
	for _, member := range cs.Node.Members {
		switch m := member.(type) {
		case *ast.MethodDecl:
			if err := a.registerMethod(cs, m); err != nil {
				return err
			}
		case *ast.ConstructorDecl:
			if err := a.registerConstructor(cs, m); err != nil {
				return err
			}
		case *ast.FieldDecl:
			// fields are typed from their initializer during AnalyzeMembers
		}
	}
	return nil
}

func (a *Analyzer) resolveParams(params []*ast.Parameter) ([]*VariableSymbol, *errors.CompileError) {
	out := make([]*VariableSymbol, len(params))
	for i, p := range params {
		t, err := a.resolveTypeRef(p.Type)
		if err != nil {
			return nil, err
		}
		out[i] = &VariableSymbol{Name: p.Name, Type: t, Kind: Parameter, Node: p}
		a.varTypes[p.NodeID] = t
	}
	return out, nil
}

func (a *Analyzer) resolveReturnType(ref ast.TypeRef) (Type, *errors.CompileError) {
	if ref == nil {
		return VoidType, nil
	}
	return a.resolveTypeRef(ref)
}

// registerMethod implements §4.2's per-node overload registration rule.
func (a *Analyzer) registerMethod(cs *ClassSymbol, m *ast.MethodDecl) *errors.CompileError {
	if m.IsExprBody && m.ReturnType == nil {
		return a.errf(errors.ExpressionBodyWithoutReturnType, m.Tok.Pos,
			"method %q: an expression body (=> ...) requires a declared return type", m.Name)
	}
	params, err := a.resolveParams(m.Params)
	if err != nil {
		return err
	}
	retType, err := a.resolveReturnType(m.ReturnType)
	if err != nil {
		return err
	}

	paramNames := make([]string, len(params))
	for i, p := range params {
		paramNames[i] = p.Type.Name
	}

	sym := cs.findOverload(m.Name, paramNames)
	if sym == nil {
		sym = &MethodSymbol{Name: m.Name, Params: params, ReturnType: retType}
		cs.Overloads[m.Name] = append(cs.Overloads[m.Name], sym)
	} else if !sym.ReturnType.Equal(retType) {
		return a.errf(errors.ReturnTypeMismatchBetweenDeclarations, m.Tok.Pos,
			"method %q: return type %s disagrees with earlier declaration %s", m.Name, retType.Name, sym.ReturnType.Name)
	}

	if m.IsForwardDeclaration() {
		if sym.Declaration != nil && sym.Declaration != m {
			return a.errf(errors.DuplicateForwardDeclaration, m.Tok.Pos, "duplicate forward declaration of %q", m.Name)
		}
		sym.Declaration = m
		return nil
	}

	if sym.Implementation != nil && sym.Implementation != m {
		return a.errf(errors.DuplicateImplementation, m.Tok.Pos, "duplicate implementation of %q", m.Name)
	}
	sym.Implementation = m
	if sym.Declaration == nil {
		sym.Declaration = m
	}
	// the implementation's own parameter nodes are authoritative for
	// later body analysis (they carry the names bound in the body).
	sym.Params = params
	return nil
}

func (a *Analyzer) registerConstructor(cs *ClassSymbol, c *ast.ConstructorDecl) *errors.CompileError {
	params, err := a.resolveParams(c.Params)
	if err != nil {
		return err
	}
	paramNames := make([]string, len(params))
	for i, p := range params {
		paramNames[i] = p.Type.Name
	}
	if existing := cs.findConstructor(paramNames); existing != nil {
		return a.errf(errors.DuplicateConstructorSignature, c.Tok.Pos, "duplicate constructor signature (%v)", paramNames)
	}
	cs.Constructors = append(cs.Constructors, &ConstructorSymbol{Params: params, Node: c})
	return nil
}

// optimizeClassMembers implements the class-level half of §4.7:
// dead-field elimination, run once all of this class's members have been
// analyzed.
func (a *Analyzer) optimizeClassMembers(cs *ClassSymbol) {
	var drop []string
	for _, f := range cs.Fields {
		if !f.IsUsed {
			drop = append(drop, f.Name)
		}
	}
	for _, name := range drop {
		cs.removeField(name)
	}
	if len(drop) == 0 {
		return
	}
	kept := cs.Node.Members[:0]
	for _, m := range cs.Node.Members {
		if f, ok := m.(*ast.FieldDecl); ok {
			if containsName(drop, f.Name) {
				continue
			}
		}
		kept = append(kept, m)
	}
	cs.Node.Members = kept
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

// lookupField walks from cs up through base links, returning the first
// field named name and the class that owns it.
func (a *Analyzer) lookupField(cs *ClassSymbol, name string) (*VariableSymbol, *ClassSymbol) {
	for c := cs; c != nil; c = a.baseOf(c) {
		if f := c.FieldByName(name); f != nil {
			return f, c
		}
	}
	return nil, nil
}

func (a *Analyzer) baseOf(cs *ClassSymbol) *ClassSymbol {
	if cs.Base == "" {
		return nil
	}
	return a.classes[cs.Base] // nil for a builtin base, which has no fields/methods
}

// mergedOverloads returns cs's overload set for methodName merged with
// every ancestor's, base-first, with a subclass entry of identical
// parameter-type-name sequence overwriting its ancestor's (§4.8's
// override-by-overwrite rule, applied here so call resolution sees the
// same effective method table the layout builder will compute).
func (a *Analyzer) mergedOverloads(cs *ClassSymbol, methodName string) []*MethodSymbol {
	var result []*MethodSymbol
	if base := a.baseOf(cs); base != nil {
		result = append(result, a.mergedOverloads(base, methodName)...)
	}
	for _, own := range cs.Overloads[methodName] {
		ownNames := own.ParamTypeNames()
		replaced := false
		for i, r := range result {
			if sameTypeNames(r.ParamTypeNames(), ownNames) {
				result[i] = own
				replaced = true
				break
			}
		}
		if !replaced {
			result = append(result, own)
		}
	}
	return result
}
