// Package irgen implements the LLVM IR emitter (spec §4.9-§4.12): it
// walks a layout.Program against the sema.SemanticModel that produced it
// and renders a module of textual LLVM IR, ordered exactly as the frozen
// output contract requires: header, class type defs, constructors in
// classId order, methods in classId order, then @main. Grounded on the
// teacher's jvmgen.Generator shape (per-unit state, a reset-and-rebuild
// code buffer per function) with the classfile byte writer swapped for a
// strings.Builder emitting text.
package irgen

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/tangzhangming/nova/internal/ast"
	"github.com/tangzhangming/nova/internal/layout"
	"github.com/tangzhangming/nova/internal/runtimeabi"
	"github.com/tangzhangming/nova/internal/sema"
)

// Emitter holds the whole-module state: the finished semantic model and
// layout it renders from, the output buffer, and the logger used for
// phase tracing. One Emitter handles one EmitModule call.
type Emitter struct {
	model  *sema.SemanticModel
	prog   *layout.Program
	logger *zap.Logger
	out    strings.Builder
}

// New creates an Emitter over a finished layout.Program. logger may be
// nil; phase tracing is skipped when it is.
func New(model *sema.SemanticModel, prog *layout.Program, logger *zap.Logger) *Emitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Emitter{model: model, prog: prog, logger: logger}
}

// EmitModule implements §4.9-§4.12's fixed ordering and returns the
// finished IR text.
func (e *Emitter) EmitModule() string {
	e.out.Reset()
	e.logger.Debug("emit started", zap.Int("classes", len(e.prog.Ordered)))

	e.writeHeader()
	e.writeClassTypes()
	for _, cl := range e.prog.Ordered {
		e.writeConstructors(cl)
	}
	for _, cl := range e.prog.Ordered {
		e.writeMethods(cl)
	}
	e.writeMain()

	e.logger.Debug("emit complete", zap.Int("bytes", e.out.Len()))
	return e.out.String()
}

// writeHeader emits §6's byte-for-byte frozen preamble.
func (e *Emitter) writeHeader() {
	e.out.WriteString(`; ModuleID = 'languageOcompiler'
source_filename = "languageO"
%Array = type { i32, i8* }
%List = type { i8* }

declare i8* @malloc(i64)
declare %Array* @o_array_new(i32)
declare i32    @o_array_length(%Array*)
declare i8*    @o_array_get(%Array*, i32)
declare void   @o_array_set(%Array*, i32, i8*)
declare %List* @o_list_empty()
declare %List* @o_list_singleton(i8*)
declare %List* @o_list_replicate(i8*, i32)
declare %List* @o_list_append(%List*, i8*)
declare i8*    @o_list_head(%List*)
declare %List* @o_list_tail(%List*)
declare %Array* @o_list_to_array(%List*)
declare i32    @printf(i8*, ...)

@.fmt_int  = private unnamed_addr constant [4 x i8] c"%d\0A\00"
@.fmt_real = private unnamed_addr constant [4 x i8] c"%f\0A\00"

`)
}

// writeClassTypes emits one `%ClassName = type { ... }` per class, in
// classId order, per §4.9.
func (e *Emitter) writeClassTypes() {
	for _, cl := range e.prog.Ordered {
		fields := make([]string, len(cl.Fields))
		for i, f := range cl.Fields {
			fields[i] = llvmTypeForSemType(f.Type)
		}
		fmt.Fprintf(&e.out, "%%%s = type { %s }\n", cl.Name, strings.Join(fields, ", "))
	}
	e.out.WriteString("\n")
}

// llvmTypeForSemType maps a resolved semantic type to its runtime LLVM
// representation. Standard/Unknown fall back to an opaque i8* — the
// emitter only ever sees those kinds on values it need not interpret
// (§7: "it trusts the model").
func llvmTypeForSemType(t sema.Type) string {
	switch t.Kind {
	case sema.Integer:
		return "i32"
	case sema.Real:
		return "double"
	case sema.Boolean:
		return "i1"
	case sema.Void:
		return "void"
	case sema.Array:
		return "%Array*"
	case sema.List:
		return "%List*"
	case sema.Class:
		return "%" + t.Name + "*"
	default:
		return "i8*"
	}
}

// llvmParamType resolves a parameter's LLVM type from its own AST type
// reference rather than the resolved semantic type alone: a bare legacy
// `Array`/`List` parameter (no generic argument) resolves to Standard at
// the semantic-type level (§4.3's wildcard rule), which would otherwise
// collapse to the generic i8* fallback above and lose its real runtime
// shape.
func llvmParamType(p *ast.Parameter, resolved sema.Type) string {
	if g, ok := p.Type.(*ast.GenericTypeRef); ok && g.Elem == nil {
		if g.Name == "Array" {
			return "%Array*"
		}
		return "%List*"
	}
	return llvmTypeForSemType(resolved)
}

// defaultValueFor returns the LLVM default-value literal for a type,
// used for dispatch default cases and the "no candidate" fallback.
func defaultValueFor(llvmType string) string {
	switch llvmType {
	case "i32", "i1":
		return "0"
	case "double":
		return "0.0"
	case "void":
		return ""
	default:
		return "null"
	}
}

func boxedSize(llvmType string) int {
	switch llvmType {
	case "i32":
		return 4
	case "double":
		return 8
	case "i1":
		return 1
	default:
		return 0
	}
}

func isPrimitiveLLVM(llvmType string) bool {
	return llvmType == "i32" || llvmType == "double" || llvmType == "i1"
}

// mangleMethod and mangleCtor implement §6's frozen name-mangling
// scheme, delegating to runtimeabi so the algorithm has one source of
// truth shared with anything outside the emitter that needs to predict
// a mangled symbol (tests, -dump-* diagnostics).
func mangleMethod(className, methodName string, paramTypeNames []string) string {
	return runtimeabi.MangleMethod(className, methodName, paramTypeNames)
}

func mangleCtor(className string, paramTypeNames []string) string {
	return runtimeabi.MangleConstructor(className, paramTypeNames)
}

// formatReal renders a float64 the way LLVM expects a double constant:
// fixed-point, dot decimal separator, always with a fractional part.
func formatReal(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".") {
		s += ".0"
	}
	return s
}

// writeConstructors emits one `define void @Class_ctor__Types(...)` per
// declared constructor (§4.9), plus a synthetic zero-argument one when
// the class declares none, so the §4.9 object-allocation pattern always
// has a constructor to call.
func (e *Emitter) writeConstructors(cl *layout.ClassLayout) {
	sc := e.model.ClassesByName[cl.Name]
	if len(sc.Constructors) == 0 {
		e.writeConstructorBody(cl, nil)
		return
	}
	for _, ctor := range sc.Constructors {
		e.writeConstructorBody(cl, ctor)
	}
}

func (e *Emitter) writeConstructorBody(cl *layout.ClassLayout, ctor *sema.ConstructorSymbol) {
	var params []*sema.VariableSymbol
	var body *ast.BlockStmt
	if ctor != nil {
		params = ctor.Params
		body = ctor.Node.Body
	}
	paramNames := layout.CanonicalParamNames(params)
	mangled := mangleCtor(cl.Name, paramNames)

	sig := make([]string, 0, len(params)+1)
	sig = append(sig, fmt.Sprintf("%%%s* %%this", cl.Name))
	for _, p := range params {
		sig = append(sig, fmt.Sprintf("%s %%arg.%s", llvmParamType(p.Node.(*ast.Parameter), p.Type), p.Name))
	}
	fmt.Fprintf(&e.out, "define void %s(%s) {\n", mangled, strings.Join(sig, ", "))

	fc := newFuncCtx(e, cl)
	fc.openLabel("entry")
	fc.bindThis()
	for _, p := range params {
		fc.bindParam(p, p.Node.(*ast.Parameter))
	}
	for _, fi := range e.collectFieldInits(cl) {
		fc.emitFieldInit(fi)
	}
	if body != nil {
		fc.lowerBlock(body)
	}
	if !fc.terminated {
		fc.term("ret void")
	}
	e.out.WriteString(fc.b.String())
	e.out.WriteString("}\n\n")
}

// fieldInitEntry is one field's declared initializer, located at its
// position in the fully linearized layout.
type fieldInitEntry struct {
	Index int
	Init  ast.Expression
	Type  sema.Type
}

// collectFieldInits flattens a class's own-field initializers together
// with every ancestor's, base-first, so the constructor that actually
// runs (there is no base-constructor chaining in this language) leaves
// every inherited and own field holding its declared value. See
// DESIGN.md for why construction is responsible for the whole object
// rather than each level initializing only its own slice.
func (e *Emitter) collectFieldInits(cl *layout.ClassLayout) []fieldInitEntry {
	var chain []*layout.ClassLayout
	for c := cl; c != nil; c = c.BaseLayout {
		chain = append(chain, c)
	}
	var entries []fieldInitEntry
	for i := len(chain) - 1; i >= 0; i-- {
		sc := e.model.ClassesByName[chain[i].Name]
		for _, f := range sc.Fields {
			idx := cl.FieldIndex(f.Name)
			if idx < 0 {
				continue
			}
			fd := f.Node.(*ast.FieldDecl)
			entries = append(entries, fieldInitEntry{Index: idx, Init: fd.Init, Type: f.Type})
		}
	}
	return entries
}

// writeMethods emits one `define <ret> @Class_method__Types(...)` per
// method with a body declared directly on cl (forward declarations with
// no implementation are skipped per §4.9).
func (e *Emitter) writeMethods(cl *layout.ClassLayout) {
	sc := e.model.ClassesByName[cl.Name]
	for _, overloads := range sc.Methods {
		for _, m := range overloads {
			if m.Implementation == nil {
				continue
			}
			e.writeMethodBody(cl, m)
		}
	}
}

func (e *Emitter) writeMethodBody(cl *layout.ClassLayout, m *sema.MethodSymbol) {
	paramNames := layout.CanonicalParamNames(m.Params)
	mangled := mangleMethod(cl.Name, m.Name, paramNames)
	retLLVM := llvmTypeForSemType(m.ReturnType)

	sig := make([]string, 0, len(m.Params)+1)
	sig = append(sig, fmt.Sprintf("%%%s* %%this", cl.Name))
	for _, p := range m.Params {
		sig = append(sig, fmt.Sprintf("%s %%arg.%s", llvmParamType(p.Node.(*ast.Parameter), p.Type), p.Name))
	}
	fmt.Fprintf(&e.out, "define %s %s(%s) {\n", retLLVM, mangled, strings.Join(sig, ", "))

	fc := newFuncCtx(e, cl)
	fc.retLLVM = retLLVM
	fc.openLabel("entry")
	fc.bindThis()
	for _, p := range m.Params {
		fc.bindParam(p, p.Node.(*ast.Parameter))
	}
	fc.lowerBlock(m.Implementation.Body)
	if !fc.terminated {
		if retLLVM == "void" {
			fc.term("ret void")
		} else {
			fc.term(fmt.Sprintf("ret %s %s", retLLVM, defaultValueFor(retLLVM)))
		}
	}
	e.out.WriteString(fc.b.String())
	e.out.WriteString("}\n\n")
}

// writeMain implements §4.12.
func (e *Emitter) writeMain() {
	e.out.WriteString("define i32 @main() {\n")
	fc := newFuncCtx(e, nil)
	fc.openLabel("entry")

	start := e.prog.EntryClass()
	if start == nil {
		fc.term("ret i32 0")
		e.out.WriteString(fc.b.String())
		e.out.WriteString("}\n")
		return
	}

	obj := fc.emitNewInstance(start)
	sc := e.model.ClassesByName[start.Name]
	if zeroCtor := findZeroArgConstructor(sc); zeroCtor != nil || len(sc.Constructors) == 0 {
		mangled := mangleCtor(start.Name, nil)
		fc.emit(fmt.Sprintf("call void %s(%%%s* %s)", mangled, start.Name, obj))
	} else {
		fc.emit(fmt.Sprintf("; %s declares no zero-argument constructor; skipping construction call", start.Name))
	}
	fc.term("ret i32 0")

	e.out.WriteString(fc.b.String())
	e.out.WriteString("}\n")
}

func findZeroArgConstructor(sc *sema.SemanticClass) *sema.ConstructorSymbol {
	for _, c := range sc.Constructors {
		if len(c.Params) == 0 {
			return c
		}
	}
	return nil
}
