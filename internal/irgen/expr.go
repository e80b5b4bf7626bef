package irgen

import (
	"fmt"
	"strings"

	"github.com/tangzhangming/nova/internal/ast"
	"github.com/tangzhangming/nova/internal/layout"
	"github.com/tangzhangming/nova/internal/sema"
)

// semTypeOf reads the semantic type the analyzer already recorded for
// this expression, rather than recomputing it — the emitter trusts the
// model (§7).
func (fc *funcCtx) semTypeOf(expr ast.Expression) sema.Type {
	return fc.e.model.ExpressionTypes[expr.ID()]
}

// lowerExpr implements §4.9's expression lowering contract: every
// non-void expression yields a (register, llvmType, semanticType)
// triple.
func (fc *funcCtx) lowerExpr(expr ast.Expression) (string, string, sema.Type) {
	switch ex := expr.(type) {
	case *ast.IntLiteral:
		return fmt.Sprintf("%d", ex.Value), "i32", sema.IntegerType
	case *ast.RealLiteral:
		return formatReal(ex.Value), "double", sema.RealType
	case *ast.BoolLiteral:
		if ex.Value {
			return "1", "i1", sema.BooleanType
		}
		return "0", "i1", sema.BooleanType
	case *ast.ThisExpr:
		slot := fc.locals["this"]
		return fc.loadSlot(slot), slot.llvmType, slot.semType
	case *ast.Ident:
		return fc.lowerIdent(ex)
	case *ast.ConstructorCall:
		return fc.lowerConstructorCall(ex)
	case *ast.Call:
		return fc.lowerCall(ex)
	case *ast.MemberAccess:
		return fc.lowerMemberAccessValue(ex)
	default:
		fc.comment("unsupported expression form reached codegen")
		return "", "void", sema.VoidType
	}
}

// lowerIdent implements §4.9's identifier-load pattern: a stack slot if
// one is bound, else a `this` field.
func (fc *funcCtx) lowerIdent(e *ast.Ident) (string, string, sema.Type) {
	if slot, ok := fc.locals[e.Name]; ok {
		return fc.loadSlot(slot), slot.llvmType, slot.semType
	}
	slot, _ := fc.fieldPointer(e.Name)
	if slot == nil {
		fc.comment("undeclared identifier %q reached codegen", e.Name)
		return "", "void", sema.VoidType
	}
	return fc.loadSlot(slot), slot.llvmType, slot.semType
}

func (fc *funcCtx) lowerArgs(args []ast.Expression) ([]string, []string, []sema.Type) {
	regs := make([]string, len(args))
	llvms := make([]string, len(args))
	sems := make([]sema.Type, len(args))
	for i, a := range args {
		regs[i], llvms[i], sems[i] = fc.lowerExpr(a)
	}
	return regs, llvms, sems
}

// lowerConstructorCall dispatches the four ConstructorCall shapes §4.9
// names: Array/List generics, the three primitive literal-folding forms,
// and declared-class construction.
func (fc *funcCtx) lowerConstructorCall(e *ast.ConstructorCall) (string, string, sema.Type) {
	switch e.ClassName {
	case "Array":
		return fc.lowerArrayConstructor(e)
	case "List":
		return fc.lowerListConstructor(e)
	case "Integer", "Real", "Boolean":
		return fc.lowerPrimitiveConstructor(e)
	default:
		return fc.lowerClassConstructor(e)
	}
}

func primLLVM(className string) string {
	switch className {
	case "Integer":
		return "i32"
	case "Real":
		return "double"
	default:
		return "i1"
	}
}

func primSemType(className string) sema.Type {
	switch className {
	case "Integer":
		return sema.IntegerType
	case "Real":
		return sema.RealType
	default:
		return sema.BooleanType
	}
}

// lowerPrimitiveConstructor implements §4.9's literal-folding rule: a
// single matching-literal argument folds straight through with no extra
// instruction.
func (fc *funcCtx) lowerPrimitiveConstructor(e *ast.ConstructorCall) (string, string, sema.Type) {
	target := primLLVM(e.ClassName)
	semT := primSemType(e.ClassName)
	if len(e.Args) == 1 {
		reg, _, _ := fc.lowerExpr(e.Args[0])
		return reg, target, semT
	}
	for _, a := range e.Args {
		fc.lowerExpr(a)
	}
	return defaultValueFor(target), target, semT
}

func (fc *funcCtx) lowerArrayConstructor(e *ast.ConstructorCall) (string, string, sema.Type) {
	lenReg, _, _ := fc.lowerExpr(e.Args[0])
	r := fc.newTemp()
	fc.emitf("%s = call %%Array* @o_array_new(i32 %s)", r, lenReg)
	return r, "%Array*", fc.semTypeOf(e)
}

func (fc *funcCtx) lowerListConstructor(e *ast.ConstructorCall) (string, string, sema.Type) {
	semT := fc.semTypeOf(e)
	switch len(e.Args) {
	case 0:
		r := fc.newTemp()
		fc.emitf("%s = call %%List* @o_list_empty()", r)
		return r, "%List*", semT
	case 1:
		vReg, vLLVM, _ := fc.lowerExpr(e.Args[0])
		boxed := fc.box(vReg, vLLVM)
		r := fc.newTemp()
		fc.emitf("%s = call %%List* @o_list_singleton(i8* %s)", r, boxed)
		return r, "%List*", semT
	case 2:
		vReg, vLLVM, _ := fc.lowerExpr(e.Args[0])
		boxed := fc.box(vReg, vLLVM)
		nReg, _, _ := fc.lowerExpr(e.Args[1])
		r := fc.newTemp()
		fc.emitf("%s = call %%List* @o_list_replicate(i8* %s, i32 %s)", r, boxed, nReg)
		return r, "%List*", semT
	default:
		fc.comment("unsupported List constructor arity %d reached codegen", len(e.Args))
		return "null", "%List*", semT
	}
}

func matchCtorForArgs(ctors []*sema.ConstructorSymbol, argSem []sema.Type) *sema.ConstructorSymbol {
	for _, c := range ctors {
		if len(c.Params) != len(argSem) {
			continue
		}
		ok := true
		for i, p := range c.Params {
			if !p.Type.Equal(argSem[i]) {
				ok = false
				break
			}
		}
		if ok {
			return c
		}
	}
	return ctors[0]
}

func (fc *funcCtx) lowerClassConstructor(e *ast.ConstructorCall) (string, string, sema.Type) {
	cl := fc.e.prog.ByName[e.ClassName]
	if cl == nil {
		fc.comment("unknown class %q reached codegen", e.ClassName)
		return "null", "i8*", sema.UnknownType
	}
	sc := fc.e.model.ClassesByName[e.ClassName]
	argRegs, _, argSem := fc.lowerArgs(e.Args)
	obj := fc.emitNewInstance(cl)

	if len(sc.Constructors) == 0 {
		mangled := mangleCtor(e.ClassName, nil)
		fc.emitf("call void %s(%%%s* %s)", mangled, e.ClassName, obj)
		return obj, "%" + e.ClassName + "*", sema.ClassType(e.ClassName)
	}

	ctor := matchCtorForArgs(sc.Constructors, argSem)
	paramNames := layout.CanonicalParamNames(ctor.Params)
	mangled := mangleCtor(e.ClassName, paramNames)
	parts := []string{fmt.Sprintf("%%%s* %s", e.ClassName, obj)}
	for i, p := range ctor.Params {
		parts = append(parts, fmt.Sprintf("%s %s", llvmParamType(p.Node.(*ast.Parameter), p.Type), argRegs[i]))
	}
	fc.emitf("call void %s(%s)", mangled, strings.Join(parts, ", "))
	return obj, "%" + e.ClassName + "*", sema.ClassType(e.ClassName)
}

func isPrimitiveSemKind(k sema.TypeKind) bool {
	return k == sema.Integer || k == sema.Real || k == sema.Boolean
}

func canonicalNamesFromTypes(types []sema.Type) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = layout.CanonicalParamName(t)
	}
	return out
}

// lowerCall implements §4.4's two Call-callee shapes at the codegen
// level: an implicit-`this` call, or a call on an explicit receiver.
func (fc *funcCtx) lowerCall(e *ast.Call) (string, string, sema.Type) {
	switch callee := e.Callee.(type) {
	case *ast.Ident:
		return fc.lowerIdentCall(callee, e)
	case *ast.MemberAccess:
		return fc.lowerMemberCall(callee, e)
	default:
		fc.comment("unsupported call target reached codegen")
		return "", "void", sema.VoidType
	}
}

func (fc *funcCtx) lowerIdentCall(callee *ast.Ident, call *ast.Call) (string, string, sema.Type) {
	argRegs, argLLVM, argSem := fc.lowerArgs(call.Args)
	thisReg := fc.loadSlot(fc.locals["this"])
	paramNames := canonicalNamesFromTypes(argSem)
	retType := fc.semTypeOf(call)
	return fc.emitDispatch(fc.class, thisReg, callee.Name, paramNames, argRegs, argLLVM, retType)
}

func (fc *funcCtx) lowerMemberCall(member *ast.MemberAccess, call *ast.Call) (string, string, sema.Type) {
	targetReg, targetLLVM, targetSem := fc.lowerExpr(member.Target)
	argRegs, argLLVM, argSem := fc.lowerArgs(call.Args)

	switch {
	case isPrimitiveSemKind(targetSem.Kind) && member.Member == "Print" && len(call.Args) == 0:
		return fc.lowerPrint(targetReg, targetLLVM, targetSem)

	case targetSem.Kind == sema.Array:
		return fc.lowerArrayBuiltin(member, targetReg, targetSem, argRegs, argLLVM)

	case targetSem.Kind == sema.List:
		return fc.lowerListBuiltin(member, targetReg, targetSem, argRegs, argLLVM)

	case targetSem.Kind == sema.Class:
		cl := fc.e.prog.ByName[targetSem.Name]
		paramNames := canonicalNamesFromTypes(argSem)
		retType := fc.semTypeOf(call)
		return fc.emitDispatch(cl, targetReg, member.Member, paramNames, argRegs, argLLVM, retType)

	case isPrimitiveSemKind(targetSem.Kind):
		return fc.lowerPrimitiveBuiltin(member, targetReg, targetLLVM, targetSem, argRegs)

	default:
		retType := fc.semTypeOf(call)
		rl := llvmTypeForSemType(retType)
		fc.comment("member call %q on unsupported receiver reached codegen", member.Member)
		return defaultValueFor(rl), rl, retType
	}
}

func (fc *funcCtx) lowerPrint(recvReg, recvLLVM string, recvSem sema.Type) (string, string, sema.Type) {
	switch recvLLVM {
	case "i32":
		fmtReg := fc.fmtPtr("@.fmt_int")
		r := fc.newTemp()
		fc.emitf("%s = call i32 (i8*, ...) @printf(i8* %s, i32 %s)", r, fmtReg, recvReg)
	case "double":
		fmtReg := fc.fmtPtr("@.fmt_real")
		r := fc.newTemp()
		fc.emitf("%s = call i32 (i8*, ...) @printf(i8* %s, double %s)", r, fmtReg, recvReg)
	case "i1":
		fmtReg := fc.fmtPtr("@.fmt_int")
		z := fc.newTemp()
		fc.emitf("%s = zext i1 %s to i32", z, recvReg)
		r := fc.newTemp()
		fc.emitf("%s = call i32 (i8*, ...) @printf(i8* %s, i32 %s)", r, fmtReg, z)
	}
	return recvReg, recvLLVM, recvSem
}

// lowerPrimitiveBuiltin implements §4.11's fixed inlining table.
func (fc *funcCtx) lowerPrimitiveBuiltin(member *ast.MemberAccess, recvReg, recvLLVM string, recvSem sema.Type, argRegs []string) (string, string, sema.Type) {
	name := member.Member
	switch recvSem.Kind {
	case sema.Integer:
		switch name {
		case "Plus", "Minus", "Mult", "Div", "Rem":
			op := map[string]string{"Plus": "add", "Minus": "sub", "Mult": "mul", "Div": "sdiv", "Rem": "srem"}[name]
			r := fc.newTemp()
			fc.emitf("%s = %s i32 %s, %s", r, op, recvReg, argRegs[0])
			return r, "i32", sema.IntegerType
		case "Less", "Greater", "Equal":
			op := map[string]string{"Less": "slt", "Greater": "sgt", "Equal": "eq"}[name]
			r := fc.newTemp()
			fc.emitf("%s = icmp %s i32 %s, %s", r, op, recvReg, argRegs[0])
			return r, "i1", sema.BooleanType
		case "toReal":
			r := fc.newTemp()
			fc.emitf("%s = sitofp i32 %s to double", r, recvReg)
			return r, "double", sema.RealType
		case "toBoolean":
			r := fc.newTemp()
			fc.emitf("%s = icmp ne i32 %s, 0", r, recvReg)
			return r, "i1", sema.BooleanType
		}
	case sema.Real:
		switch name {
		case "Plus", "Minus", "Mult", "Div":
			op := map[string]string{"Plus": "fadd", "Minus": "fsub", "Mult": "fmul", "Div": "fdiv"}[name]
			r := fc.newTemp()
			fc.emitf("%s = %s double %s, %s", r, op, recvReg, argRegs[0])
			return r, "double", sema.RealType
		case "Less", "Greater", "Equal":
			op := map[string]string{"Less": "olt", "Greater": "ogt", "Equal": "oeq"}[name]
			r := fc.newTemp()
			fc.emitf("%s = fcmp %s double %s, %s", r, op, recvReg, argRegs[0])
			return r, "i1", sema.BooleanType
		case "toInteger":
			r := fc.newTemp()
			fc.emitf("%s = fptosi double %s to i32", r, recvReg)
			return r, "i32", sema.IntegerType
		}
	case sema.Boolean:
		switch name {
		case "And", "Or", "Xor":
			op := map[string]string{"And": "and", "Or": "or", "Xor": "xor"}[name]
			r := fc.newTemp()
			fc.emitf("%s = %s i1 %s, %s", r, op, recvReg, argRegs[0])
			return r, "i1", sema.BooleanType
		case "Not":
			r := fc.newTemp()
			fc.emitf("%s = xor i1 %s, 1", r, recvReg)
			return r, "i1", sema.BooleanType
		case "toInteger":
			r := fc.newTemp()
			fc.emitf("%s = zext i1 %s to i32", r, recvReg)
			return r, "i32", sema.IntegerType
		}
	}
	fc.comment("unknown primitive built-in %q reached codegen", name)
	return recvReg, recvLLVM, recvSem
}

// elemLLVMFromName maps a canonical element-type name (as stored inside
// Array[E]/List[E]) to its runtime LLVM representation.
func elemLLVMFromName(name string) string {
	switch name {
	case "Integer":
		return "i32"
	case "Real":
		return "double"
	case "Boolean":
		return "i1"
	case "Void":
		return "void"
	}
	if strings.HasPrefix(name, "Array[") {
		return "%Array*"
	}
	if strings.HasPrefix(name, "List[") {
		return "%List*"
	}
	return "%" + name + "*"
}

func elemSemFromName(name string) sema.Type {
	switch name {
	case "Integer":
		return sema.IntegerType
	case "Real":
		return sema.RealType
	case "Boolean":
		return sema.BooleanType
	case "Void":
		return sema.VoidType
	case "Standard":
		return sema.StandardType
	}
	if strings.HasPrefix(name, "Array[") && strings.HasSuffix(name, "]") {
		return sema.ArrayType(elemSemFromName(name[len("Array[") : len(name)-1]))
	}
	if strings.HasPrefix(name, "List[") && strings.HasSuffix(name, "]") {
		return sema.ListType(elemSemFromName(name[len("List[") : len(name)-1]))
	}
	return sema.ClassType(name)
}

func (fc *funcCtx) lowerArrayBuiltin(member *ast.MemberAccess, recvReg string, recvSem sema.Type, argRegs, argLLVM []string) (string, string, sema.Type) {
	elemName, _ := sema.ArrayElemName(recvSem)
	elemLLVM := elemLLVMFromName(elemName)
	switch member.Member {
	case "Length":
		r := fc.newTemp()
		fc.emitf("%s = call i32 @o_array_length(%%Array* %s)", r, recvReg)
		return r, "i32", sema.IntegerType
	case "get":
		raw := fc.newTemp()
		fc.emitf("%s = call i8* @o_array_get(%%Array* %s, i32 %s)", raw, recvReg, argRegs[0])
		out := fc.unbox(raw, elemLLVM)
		return out, elemLLVM, elemSemFromName(elemName)
	case "set":
		boxed := fc.box(argRegs[1], argLLVM[1])
		fc.emitf("call void @o_array_set(%%Array* %s, i32 %s, i8* %s)", recvReg, argRegs[0], boxed)
		return recvReg, "%Array*", recvSem
	}
	fc.comment("unknown Array built-in %q reached codegen", member.Member)
	return recvReg, "%Array*", recvSem
}

func (fc *funcCtx) lowerListBuiltin(member *ast.MemberAccess, recvReg string, recvSem sema.Type, argRegs, argLLVM []string) (string, string, sema.Type) {
	elemName, _ := sema.ListElemName(recvSem)
	elemLLVM := elemLLVMFromName(elemName)
	switch member.Member {
	case "append":
		boxed := fc.box(argRegs[0], argLLVM[0])
		r := fc.newTemp()
		fc.emitf("%s = call %%List* @o_list_append(%%List* %s, i8* %s)", r, recvReg, boxed)
		return r, "%List*", recvSem
	case "head":
		raw := fc.newTemp()
		fc.emitf("%s = call i8* @o_list_head(%%List* %s)", raw, recvReg)
		out := fc.unbox(raw, elemLLVM)
		return out, elemLLVM, elemSemFromName(elemName)
	case "tail":
		r := fc.newTemp()
		fc.emitf("%s = call %%List* @o_list_tail(%%List* %s)", r, recvReg)
		return r, "%List*", recvSem
	case "toArray":
		r := fc.newTemp()
		fc.emitf("%s = call %%Array* @o_list_to_array(%%List* %s)", r, recvReg)
		return r, "%Array*", sema.ArrayType(elemSemFromName(elemName))
	}
	fc.comment("unknown List built-in %q reached codegen", member.Member)
	return recvReg, "%List*", recvSem
}

// lowerMemberAccessValue implements §4.4's member-access-as-value rule
// at the codegen level: a MemberAccess that is not itself a Call's
// callee.
func (fc *funcCtx) lowerMemberAccessValue(e *ast.MemberAccess) (string, string, sema.Type) {
	targetReg, targetLLVM, targetSem := fc.lowerExpr(e.Target)
	switch targetSem.Kind {
	case sema.Class:
		slot := fc.fieldPointerOn(targetReg, targetSem.Name, e.Member)
		if slot == nil {
			fc.comment("class %q has no field %q reached codegen", targetSem.Name, e.Member)
			return "", "void", sema.VoidType
		}
		return fc.loadSlot(slot), slot.llvmType, slot.semType
	case sema.Unknown, sema.Standard:
		return targetReg, targetLLVM, targetSem
	default:
		fc.comment("member access %q on %s reached codegen", e.Member, targetSem.Name)
		return "null", "i8*", sema.UnknownType
	}
}

// emitDispatch implements §4.10's dynamic-dispatch switch.
func (fc *funcCtx) emitDispatch(staticClass *layout.ClassLayout, recvReg, methodName string, paramNames []string, argRegs, argLLVM []string, retType sema.Type) (string, string, sema.Type) {
	retLLVM := llvmTypeForSemType(retType)

	var candidates []*layout.ClassLayout
	for _, d := range staticClass.Descendants() {
		if d.MethodTable(methodName, paramNames) != nil {
			candidates = append(candidates, d)
		}
	}
	if len(candidates) == 0 {
		fc.comment("no implementation of %s.%s(%s) found", staticClass.Name, methodName, strings.Join(paramNames, ", "))
		return defaultValueFor(retLLVM), retLLVM, retType
	}

	cidPtr := fc.newTemp()
	fc.emitf("%s = getelementptr %%%s, %%%s* %s, i32 0, i32 0", cidPtr, staticClass.Name, staticClass.Name, recvReg)
	cid := fc.newTemp()
	fc.emitf("%s = load i32, i32* %s", cid, cidPtr)

	var resultPtr string
	if retLLVM != "void" {
		resultPtr = fc.newTemp()
		fc.emitf("%s = alloca %s", resultPtr, retLLVM)
	}

	defaultLabel := fc.newLabel("dispatch_default")
	mergeLabel := fc.newLabel("dispatch_merge")
	caseLabels := make([]string, len(candidates))
	for i := range candidates {
		caseLabels[i] = fc.newLabel("dispatch_case")
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "switch i32 %s, label %%%s [", cid, defaultLabel)
	for i, c := range candidates {
		fmt.Fprintf(&sb, " i32 %d, label %%%s", c.ClassID, caseLabels[i])
	}
	sb.WriteString(" ]")
	fc.term(sb.String())

	for i, c := range candidates {
		fc.openLabel(caseLabels[i])
		binding := c.MethodTable(methodName, paramNames)
		castReg := recvReg
		if binding.DeclaringClass != staticClass.Name {
			castReg = fc.newTemp()
			fc.emitf("%s = bitcast %%%s* %s to %%%s*", castReg, staticClass.Name, recvReg, binding.DeclaringClass)
		}
		mParamNames := layout.CanonicalParamNames(binding.Method.Params)
		mangled := mangleMethod(binding.DeclaringClass, methodName, mParamNames)
		parts := []string{fmt.Sprintf("%%%s* %s", binding.DeclaringClass, castReg)}
		for j, p := range binding.Method.Params {
			paramLLVM := llvmParamType(p.Node.(*ast.Parameter), p.Type)
			coerced := fc.coerceValue(argRegs[j], argLLVM[j], paramLLVM)
			parts = append(parts, fmt.Sprintf("%s %s", paramLLVM, coerced))
		}
		if retLLVM == "void" {
			fc.emitf("call void %s(%s)", mangled, strings.Join(parts, ", "))
		} else {
			r := fc.newTemp()
			fc.emitf("%s = call %s %s(%s)", r, retLLVM, mangled, strings.Join(parts, ", "))
			fc.emitf("store %s %s, %s* %s", retLLVM, r, retLLVM, resultPtr)
		}
		fc.term(fmt.Sprintf("br label %%%s", mergeLabel))
	}

	fc.openLabel(defaultLabel)
	if retLLVM != "void" {
		fc.emitf("store %s %s, %s* %s", retLLVM, defaultValueFor(retLLVM), retLLVM, resultPtr)
	}
	fc.term(fmt.Sprintf("br label %%%s", mergeLabel))

	fc.openLabel(mergeLabel)
	if retLLVM == "void" {
		return "", "void", retType
	}
	out := fc.newTemp()
	fc.emitf("%s = load %s, %s* %s", out, retLLVM, retLLVM, resultPtr)
	return out, retLLVM, retType
}
