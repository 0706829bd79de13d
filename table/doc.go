// Package table loads delimited files into a row-oriented, typed, in-memory
// table and splits oversized files into line-bounded parts.
//
// The loader infers one type per column (int64, float64 or string) and
// records empty cells as missing, so DropIncomplete can discard rows that
// would otherwise produce partial documents.
package table
