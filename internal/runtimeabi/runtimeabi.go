// Package runtimeabi documents the frozen external C runtime contract
// that emitted IR links against (spec.md §6): the Array/List allocation
// functions, malloc, and printf. The emitter writes these as literal
// `declare` lines in its preamble (internal/irgen.Emitter.writeHeader);
// this package exists so tooling that needs the symbol names or
// signatures by reference — tests, -dump-* diagnostics — has one place to read them from instead of re-deriving
// them from the preamble text. It implements nothing: the actual
// runtime is the C object file named in original_source/runtime.c.
package runtimeabi

// Symbol is one externally-linked runtime function or global the
// emitted module declares but never defines.
type Symbol struct {
	Name      string
	Signature string
	Purpose   string
}

// Malloc is the one general-purpose allocator every object/array/list
// allocation and primitive-boxing site routes through.
var Malloc = Symbol{Name: "malloc", Signature: "i8* @malloc(i64)", Purpose: "general allocator backing object, array, list, and boxed-primitive allocation"}

// Printf backs the Print inlining of spec.md §4.11.
var Printf = Symbol{Name: "printf", Signature: "i32 @printf(i8*, ...)", Purpose: "backs Integer/Real/Boolean.Print()"}

// Array is the fixed-length, boxed-element array runtime type: a
// length field plus an opaque payload pointer (internal/original_source
// grounds this on the real C struct, which this package does not
// reimplement).
var Array = []Symbol{
	{Name: "o_array_new", Signature: "%Array* @o_array_new(i32)", Purpose: "allocate a len-element array of i8*, zeroed; negative len yields a 0-length array"},
	{Name: "o_array_length", Signature: "i32 @o_array_length(%Array*)", Purpose: "stored length; null receiver yields 0"},
	{Name: "o_array_get", Signature: "i8* @o_array_get(%Array*, i32)", Purpose: "bounds-checked load; out-of-range aborts"},
	{Name: "o_array_set", Signature: "void @o_array_set(%Array*, i32, i8*)", Purpose: "bounds-checked store"},
}

// List is the singly-linked, boxed-element list runtime type. Spec.md
// freezes this surface even though original_source/runtime.c — the
// implementation the Array functions above are grounded on — does not
// itself implement List; a conforming runtime object file supplies it
// alongside the Array functions.
var List = []Symbol{
	{Name: "o_list_empty", Signature: "%List* @o_list_empty()", Purpose: "the empty list"},
	{Name: "o_list_singleton", Signature: "%List* @o_list_singleton(i8*)", Purpose: "one-element list"},
	{Name: "o_list_replicate", Signature: "%List* @o_list_replicate(i8*, i32)", Purpose: "n-element list of the same boxed value"},
	{Name: "o_list_append", Signature: "%List* @o_list_append(%List*, i8*)", Purpose: "new list with value appended, sharing no nodes with the receiver's spine"},
	{Name: "o_list_head", Signature: "i8* @o_list_head(%List*)", Purpose: "first element; head of an empty list yields null"},
	{Name: "o_list_tail", Signature: "%List* @o_list_tail(%List*)", Purpose: "remaining list, sharing tail nodes with the receiver"},
	{Name: "o_list_to_array", Signature: "%Array* @o_list_to_array(%List*)", Purpose: "materialize as a fixed-length array"},
}

// All returns every declared runtime symbol in preamble order.
func All() []Symbol {
	out := []Symbol{Malloc}
	out = append(out, Array...)
	out = append(out, List...)
	out = append(out, Printf)
	return out
}

// MangleMethod and MangleConstructor mirror the frozen name-mangling
// scheme of spec.md §6 (`@<ClassName>_<methodName>(__<TypeName>)*` /
// `@<ClassName>_ctor(__<TypeName>)*`) so callers outside internal/irgen
// (diagnostics, tests) can predict a mangled symbol without importing
// the emitter.
func MangleMethod(className, methodName string, paramTypeNames []string) string {
	return mangle(className+"_"+methodName, paramTypeNames)
}

func MangleConstructor(className string, paramTypeNames []string) string {
	return mangle(className+"_ctor", paramTypeNames)
}

func mangle(base string, paramTypeNames []string) string {
	out := "@" + base
	for _, n := range paramTypeNames {
		out += "__" + n
	}
	return out
}
