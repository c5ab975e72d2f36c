package typedesc

import "io"

// Deparse writes t's type-descriptor expression to w as a compact
// s-expression-shaped dump for diagnostics. Every Type already implements
// this as a method; the free function exists for callers, like
// cmd/arenainspect, that only want to print a type without naming its
// concrete kind.
func Deparse(w io.Writer, t Type) { t.Deparse(w) }
