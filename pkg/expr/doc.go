// Package expr builds CEL (Common Expression Language) environments over
// record fields, for rule predicates that the set and range leaves cannot
// express, such as strict inequalities.
//
// An [Environment] declares one variable per field in scope, typed from the
// field schema:
//   - categorical fields and pass attributes are `string`
//   - integer fields are `int`
//   - real fields are `double`
//
// Besides the standard library, expressions may use the cel-go math,
// strings and lists extensions, and:
//   - `between(x, low, high)`: inclusive numeric range test
//
// A field that is absent or unset in a record leaves its variable
// unresolved, so [Program.Eval] reports the expression as undecided rather
// than true or false.
package expr
