package irgen

import (
	"fmt"
	"strings"

	"github.com/tangzhangming/nova/internal/ast"
	"github.com/tangzhangming/nova/internal/layout"
	"github.com/tangzhangming/nova/internal/sema"
)

// localSlot is one stack slot: a pointer register plus the LLVM type it
// points at.
type localSlot struct {
	ptr      string
	llvmType string
	semType  sema.Type
}

// funcCtx is the per-function emission state §9's design notes call for:
// temp/label counters, a termination flag, and the variable map, all
// living in one value rather than hidden globals.
type funcCtx struct {
	e      *Emitter
	class  *layout.ClassLayout // enclosing class, nil inside @main
	b      strings.Builder
	tempN  int
	labelN int

	// terminated is set once the current basic block has emitted a
	// terminator (ret/br/switch). Further emit calls are suppressed
	// until openLabel starts a fresh block.
	terminated bool

	// retLLVM is this function's declared LLVM return type, used by
	// lowerReturn to coerce a return value whose lowered type disagrees
	// (e.g. a Standard-wildcarded i8* value returned from a concretely
	// typed method). "void" inside @main and inside constructors, which
	// never execute a return statement (the analyzer forbids return in
	// constructor scope).
	retLLVM string

	locals map[string]*localSlot
}

func newFuncCtx(e *Emitter, class *layout.ClassLayout) *funcCtx {
	return &funcCtx{e: e, class: class, retLLVM: "void", locals: make(map[string]*localSlot)}
}

func (fc *funcCtx) newTemp() string {
	r := fmt.Sprintf("%%t%d", fc.tempN)
	fc.tempN++
	return r
}

func (fc *funcCtx) newLabel(prefix string) string {
	r := fmt.Sprintf("%s_%d", prefix, fc.labelN)
	fc.labelN++
	return r
}

// emit appends one instruction line, suppressed if the block is already
// terminated.
func (fc *funcCtx) emit(s string) {
	if fc.terminated {
		return
	}
	fc.b.WriteString("  " + s + "\n")
}

// emitf is emit with Sprintf formatting.
func (fc *funcCtx) emitf(format string, args ...interface{}) {
	fc.emit(fmt.Sprintf(format, args...))
}

// term emits a terminator instruction and marks the block terminated.
func (fc *funcCtx) term(s string) {
	if fc.terminated {
		return
	}
	fc.b.WriteString("  " + s + "\n")
	fc.terminated = true
}

// openLabel starts a fresh basic block, clearing the termination flag
// even if the previous block never terminated explicitly (callers are
// expected to have branched into it).
func (fc *funcCtx) openLabel(name string) {
	fc.b.WriteString(name + ":\n")
	fc.terminated = false
}

// comment emits an IR comment line unconditionally (used for the §4.10
// "no candidate" diagnostic and the "reached codegen" diagnostics, which
// must still surface even in a terminated block).
func (fc *funcCtx) comment(format string, args ...interface{}) {
	fc.b.WriteString("  ; " + fmt.Sprintf(format, args...) + "\n")
}

// bindThis allocates the `this` parameter's own stack slot, copying the
// incoming pointer into it exactly like any other parameter (§4.9: "to
// make them indistinguishable from locals").
func (fc *funcCtx) bindThis() {
	if fc.class == nil {
		return
	}
	llvmType := fmt.Sprintf("%%%s*", fc.class.Name)
	ptr := fc.newTemp()
	fc.emitf("%s = alloca %s", ptr, llvmType)
	fc.emitf("store %s %%this, %s* %s", llvmType, llvmType, ptr)
	fc.locals["this"] = &localSlot{ptr: ptr, llvmType: llvmType, semType: sema.ClassType(fc.class.Name)}
}

// bindParam copies an incoming argument into its own stack slot.
func (fc *funcCtx) bindParam(p *sema.VariableSymbol, astParam *ast.Parameter) {
	llvmType := llvmParamType(astParam, p.Type)
	ptr := fc.newTemp()
	fc.emitf("%s = alloca %s", ptr, llvmType)
	fc.emitf("store %s %%arg.%s, %s* %s", llvmType, p.Name, llvmType, ptr)
	fc.locals[p.Name] = &localSlot{ptr: ptr, llvmType: llvmType, semType: p.Type}
}

// declareLocal allocates a fresh stack slot for a `var` statement and
// stores the already-lowered initializer value into it.
func (fc *funcCtx) declareLocal(name, valueReg, llvmType string, semType sema.Type) {
	ptr := fc.newTemp()
	fc.emitf("%s = alloca %s", ptr, llvmType)
	fc.emitf("store %s %s, %s* %s", llvmType, valueReg, llvmType, ptr)
	fc.locals[name] = &localSlot{ptr: ptr, llvmType: llvmType, semType: semType}
}

// fieldPointer returns a GEP'd pointer to a named field of `this`, or
// nil if no such field exists on the enclosing class's layout.
func (fc *funcCtx) fieldPointer(name string) (*localSlot, int) {
	idx := fc.class.FieldIndex(name)
	if idx < 0 {
		return nil, -1
	}
	slot := fc.class.FieldByIndex(idx)
	thisSlot := fc.locals["this"]
	thisReg := fc.loadSlot(thisSlot)
	llvmType := llvmTypeForSemType(slot.Type)
	ptr := fc.newTemp()
	fc.emitf("%s = getelementptr %%%s, %%%s* %s, i32 0, i32 %d", ptr, fc.class.Name, fc.class.Name, thisReg, idx)
	return &localSlot{ptr: ptr, llvmType: llvmType, semType: slot.Type}, idx
}

// fieldPointerOn GEPs a field pointer on an arbitrary already-lowered
// object register, used for member access on a non-`this` receiver and
// for assignment targets shaped `expr.field = value`.
func (fc *funcCtx) fieldPointerOn(reg, className, fieldName string) *localSlot {
	cl := fc.e.prog.ByName[className]
	if cl == nil {
		return nil
	}
	idx := cl.FieldIndex(fieldName)
	if idx < 0 {
		return nil
	}
	slot := cl.FieldByIndex(idx)
	llvmType := llvmTypeForSemType(slot.Type)
	ptr := fc.newTemp()
	fc.emitf("%s = getelementptr %%%s, %%%s* %s, i32 0, i32 %d", ptr, className, className, reg, idx)
	return &localSlot{ptr: ptr, llvmType: llvmType, semType: slot.Type}
}

// loadSlot loads a stack slot's current value.
func (fc *funcCtx) loadSlot(slot *localSlot) string {
	reg := fc.newTemp()
	fc.emitf("%s = load %s, %s* %s", reg, slot.llvmType, slot.llvmType, slot.ptr)
	return reg
}

func (fc *funcCtx) storeSlot(slot *localSlot, valueReg string) {
	fc.emitf("store %s %s, %s* %s", slot.llvmType, valueReg, slot.llvmType, slot.ptr)
}

// emitFieldInit stores a field's declared initializer into the object
// under construction, at the index the final layout assigned it.
func (fc *funcCtx) emitFieldInit(fi fieldInitEntry) {
	valueReg, llvmType, _ := fc.lowerExpr(fi.Init)
	thisSlot := fc.locals["this"]
	thisReg := fc.loadSlot(thisSlot)
	ptr := fc.newTemp()
	fc.emitf("%s = getelementptr %%%s, %%%s* %s, i32 0, i32 %d", ptr, fc.class.Name, fc.class.Name, thisReg, fi.Index)
	fc.emitf("store %s %s, %s* %s", llvmType, valueReg, llvmType, ptr)
}

// emitNewInstance implements §4.9's object-allocation pattern: the
// getelementptr-null size trick, malloc, bitcast, and classId store. It
// does not call a constructor; callers do that separately so the same
// helper serves both constructor-call expressions and §4.12's main.
func (fc *funcCtx) emitNewInstance(cl *layout.ClassLayout) string {
	cname := "%" + cl.Name
	sizeptr := fc.newTemp()
	fc.emitf("%s = getelementptr %s, %s* null, i32 1", sizeptr, cname, cname)
	sizeI := fc.newTemp()
	fc.emitf("%s = ptrtoint %s* %s to i64", sizeI, cname, sizeptr)
	raw := fc.newTemp()
	fc.emitf("%s = call i8* @malloc(i64 %s)", raw, sizeI)
	obj := fc.newTemp()
	fc.emitf("%s = bitcast i8* %s to %s*", obj, raw, cname)
	cidptr := fc.newTemp()
	fc.emitf("%s = getelementptr %s, %s* %s, i32 0, i32 0", cidptr, cname, cname, obj)
	fc.emitf("store i32 %d, i32* %s", cl.ClassID, cidptr)
	return obj
}

// box implements §4.9's primitive-boxing pattern for generic container
// element values; reference types pass straight through via bitcast.
func (fc *funcCtx) box(valueReg, llvmType string) string {
	if size := boxedSize(llvmType); size > 0 {
		raw := fc.newTemp()
		fc.emitf("%s = call i8* @malloc(i64 %d)", raw, size)
		ptr := fc.newTemp()
		fc.emitf("%s = bitcast i8* %s to %s*", ptr, raw, llvmType)
		fc.emitf("store %s %s, %s* %s", llvmType, valueReg, llvmType, ptr)
		return raw
	}
	out := fc.newTemp()
	fc.emitf("%s = bitcast %s %s to i8*", out, llvmType, valueReg)
	return out
}

// unbox is box's inverse.
func (fc *funcCtx) unbox(i8Reg, llvmType string) string {
	if isPrimitiveLLVM(llvmType) {
		ptr := fc.newTemp()
		fc.emitf("%s = bitcast i8* %s to %s*", ptr, i8Reg, llvmType)
		out := fc.newTemp()
		fc.emitf("%s = load %s, %s* %s", out, llvmType, llvmType, ptr)
		return out
	}
	out := fc.newTemp()
	fc.emitf("%s = bitcast i8* %s to %s", out, i8Reg, llvmType)
	return out
}

// fmtPtr returns an i8* pointer to the first byte of one of the two
// frozen format-string globals, for a printf call.
func (fc *funcCtx) fmtPtr(global string) string {
	reg := fc.newTemp()
	fc.emitf("%s = getelementptr [4 x i8], [4 x i8]* %s, i32 0, i32 0", reg, global)
	return reg
}

// coerceValue converts a lowered value from its actual LLVM type to a
// target LLVM type when the two disagree (§4.9's "converting the value
// if its LLVM type disagrees", §4.10's "coerces each argument to the
// declaring method's parameter type"). This only ever arises when one
// side is the opaque i8* a Standard-typed expression lowers to (a
// wildcarded built-in member call, see sema's evalMemberCall) and the
// other is the call site's own concrete type — box/unbox bridges that
// gap; identical types pass through untouched.
func (fc *funcCtx) coerceValue(reg, fromLLVM, toLLVM string) string {
	if fromLLVM == toLLVM {
		return reg
	}
	if fromLLVM == "i8*" {
		return fc.unbox(reg, toLLVM)
	}
	if toLLVM == "i8*" {
		return fc.box(reg, fromLLVM)
	}
	out := fc.newTemp()
	fc.emitf("%s = bitcast %s %s to %s", out, fromLLVM, reg, toLLVM)
	return out
}
