package irgen

import (
	"fmt"

	"github.com/tangzhangming/nova/internal/ast"
)

// lowerBlock lowers every statement in order. A statement reached after
// the block has already terminated (return inside an earlier branch)
// is still walked for its side effects on the local/label counters, but
// emit/term are no-ops per funcCtx's termination gate — this is what
// makes unreachable-after-return code simply vanish from the output.
func (fc *funcCtx) lowerBlock(b *ast.BlockStmt) {
	for _, s := range b.Statements {
		fc.lowerStmt(s)
	}
}

func (fc *funcCtx) lowerStmt(s ast.Statement) {
	switch st := s.(type) {
	case *ast.VarDeclStmt:
		fc.lowerVarDecl(st)
	case *ast.AssignStmt:
		fc.lowerAssign(st)
	case *ast.WhileStmt:
		fc.lowerWhile(st)
	case *ast.IfStmt:
		fc.lowerIf(st)
	case *ast.ReturnStmt:
		fc.lowerReturn(st)
	case *ast.ExprStmt:
		fc.lowerExpr(st.Expr)
	default:
		fc.comment("unsupported statement form reached codegen")
	}
}

func (fc *funcCtx) lowerVarDecl(s *ast.VarDeclStmt) {
	reg, llvmType, semType := fc.lowerExpr(s.Init)
	fc.declareLocal(s.Name, reg, llvmType, semType)
}

// lowerAssign resolves the target's storage pointer — a local slot, a
// `this` field, or a field on an arbitrary lowered object — and stores
// the lowered value into it.
func (fc *funcCtx) lowerAssign(s *ast.AssignStmt) {
	valueReg, llvmType, _ := fc.lowerExpr(s.Value)

	switch target := s.Target.(type) {
	case *ast.Ident:
		if slot, ok := fc.locals[target.Name]; ok {
			fc.storeSlot(slot, valueReg)
			return
		}
		slot, _ := fc.fieldPointer(target.Name)
		if slot == nil {
			fc.comment("assignment to undeclared identifier %q reached codegen", target.Name)
			return
		}
		fc.storeSlot(slot, valueReg)

	case *ast.MemberAccess:
		if thisRef, ok := target.Target.(*ast.ThisExpr); ok {
			_ = thisRef
			slot, _ := fc.fieldPointer(target.Member)
			if slot == nil {
				fc.comment("assignment to undeclared field %q reached codegen", target.Member)
				return
			}
			fc.storeSlot(slot, valueReg)
			return
		}
		targetReg, _, targetSem := fc.lowerExpr(target.Target)
		slot := fc.fieldPointerOn(targetReg, targetSem.Name, target.Member)
		if slot == nil {
			fc.comment("assignment to field %q on %s reached codegen", target.Member, targetSem.Name)
			return
		}
		fc.storeSlot(slot, valueReg)

	default:
		fc.comment("unsupported assignment target reached codegen")
	}

	_ = llvmType
}

// lowerWhile implements the "While" key pattern: a condition block that
// every iteration re-enters, a body that branches back to it, and an
// exit block, with the termination flag respected at every branch site
// so a body ending in `return` does not also emit the backward branch.
func (fc *funcCtx) lowerWhile(s *ast.WhileStmt) {
	condLabel := fc.newLabel("while_cond")
	bodyLabel := fc.newLabel("while_body")
	exitLabel := fc.newLabel("while_exit")

	fc.term(fmt.Sprintf("br label %%%s", condLabel))

	fc.openLabel(condLabel)
	condReg, _, _ := fc.lowerExpr(s.Cond)
	fc.term(fmt.Sprintf("br i1 %s, label %%%s, label %%%s", condReg, bodyLabel, exitLabel))

	fc.openLabel(bodyLabel)
	fc.lowerBlock(s.Body)
	fc.term(fmt.Sprintf("br label %%%s", condLabel))

	fc.openLabel(exitLabel)
}

// lowerIf implements the "If" key pattern: a then-block, an optional
// else-block falling back to a direct branch when absent, and a merge
// block — skipped as unreachable only via the termination flag, never
// by omitting the label itself, since LLVM IR requires every block a
// predecessor branches to actually exist.
func (fc *funcCtx) lowerIf(s *ast.IfStmt) {
	condReg, _, _ := fc.lowerExpr(s.Cond)

	thenLabel := fc.newLabel("if_then")
	mergeLabel := fc.newLabel("if_merge")

	if s.Else == nil {
		fc.term(fmt.Sprintf("br i1 %s, label %%%s, label %%%s", condReg, thenLabel, mergeLabel))
		fc.openLabel(thenLabel)
		fc.lowerBlock(s.Then)
		fc.term(fmt.Sprintf("br label %%%s", mergeLabel))
		fc.openLabel(mergeLabel)
		return
	}

	elseLabel := fc.newLabel("if_else")
	fc.term(fmt.Sprintf("br i1 %s, label %%%s, label %%%s", condReg, thenLabel, elseLabel))

	fc.openLabel(thenLabel)
	fc.lowerBlock(s.Then)
	fc.term(fmt.Sprintf("br label %%%s", mergeLabel))

	fc.openLabel(elseLabel)
	fc.lowerBlock(s.Else)
	fc.term(fmt.Sprintf("br label %%%s", mergeLabel))

	fc.openLabel(mergeLabel)
}

func (fc *funcCtx) lowerReturn(s *ast.ReturnStmt) {
	if s.Value == nil {
		fc.term("ret void")
		return
	}
	reg, llvmType, _ := fc.lowerExpr(s.Value)
	reg = fc.coerceValue(reg, llvmType, fc.retLLVM)
	fc.term(fmt.Sprintf("ret %s %s", fc.retLLVM, reg))
}
