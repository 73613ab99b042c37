package expr

import (
	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/ext"
)

type lib struct{}

func (lib) CompileOptions() []cel.EnvOption {
	return []cel.EnvOption{
		ext.Math(),
		ext.Strings(),
		ext.Lists(),

		// `between` tests an inclusive numeric range.
		// Example: between(Diameter, 5.0, 8.0).
		cel.Function("between",
			cel.Overload("between_double", []*cel.Type{cel.DoubleType, cel.DoubleType, cel.DoubleType}, cel.BoolType,
				cel.FunctionBinding(func(args ...ref.Val) ref.Val {
					return between(args)
				}),
			),
			cel.Overload("between_int", []*cel.Type{cel.IntType, cel.IntType, cel.IntType}, cel.BoolType,
				cel.FunctionBinding(func(args ...ref.Val) ref.Val {
					return between(args)
				}),
			),
		),
	}
}

func (lib) ProgramOptions() []cel.ProgramOption {
	return []cel.ProgramOption{}
}

//nolint:ireturn // Following CEL's function signature.
func between(args []ref.Val) ref.Val {
	if len(args) != 3 {
		return types.NewErr("between: expected 3 arguments")
	}

	vals := make([]float64, 3)
	for i, arg := range args {
		switch v := arg.(type) {
		case types.Int:
			vals[i] = float64(v)
		case types.Double:
			vals[i] = float64(v)
		default:
			return types.NewErr("between: argument %d is not a number", i)
		}
	}

	return types.Bool(vals[1] <= vals[0] && vals[0] <= vals[2])
}
