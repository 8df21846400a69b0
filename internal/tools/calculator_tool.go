// In file: internal/tools/calculator_tool.go
package tools

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
)

// --- Calculator Tool Implementation ---

const maxCalculatorPrecision = 15

// numericLiteral matches integer and decimal literals, with optional exponent.
var numericLiteral = regexp.MustCompile(`(\d+\.\d*|\.\d+|\d+)([eE][+-]?\d+)?`)

// calculatorEnv is shared by every CalculatorTool; a CEL environment is
// immutable once built and safe for concurrent use.
var calculatorEnv = sync.OnceValues(func() (*cel.Env, error) {
	return cel.NewEnv()
})

// CalculatorTool evaluates arithmetic expressions such as "25 * 4 + 10".
// Expressions are compiled and evaluated with CEL, so only arithmetic on
// literals is possible: there are no variables, functions with side effects
// or loops.
type CalculatorTool struct{}

// Statically verify that CalculatorTool implements the ToolExecutor interface.
var _ ToolExecutor = (*CalculatorTool)(nil)

func NewCalculatorTool() *CalculatorTool {
	return &CalculatorTool{}
}

func (ct *CalculatorTool) Definition() Tool {
	return NewFunctionTool(
		"calculator",
		"Evaluates an arithmetic expression using +, -, *, / and parentheses, and returns the numeric result.",
		JSONSchema{
			Type: "object",
			Properties: map[string]*JSONSchema{
				"expr": {
					Type:        "string",
					Description: "The arithmetic expression to evaluate, e.g. '25 * 4 + 10' or '(3.5 + 1) / 2'.",
				},
				"precision": {
					Type:        "integer",
					Description: "Optional number of decimal places to round the result to.",
				},
			},
			Required: []string{"expr"},
		},
	)
}

func (ct *CalculatorTool) Execute(ctx context.Context, arguments map[string]any) (any, error) {
	var args struct {
		Expr      string `json:"expr"`
		Precision *int   `json:"precision"`
	}
	if err := DecodeArgs(arguments, &args); err != nil {
		return nil, err
	}
	if strings.TrimSpace(args.Expr) == "" {
		return nil, fmt.Errorf("expression is empty")
	}
	if args.Precision != nil && (*args.Precision < 0 || *args.Precision > maxCalculatorPrecision) {
		return nil, fmt.Errorf("precision must be between 0 and %d", maxCalculatorPrecision)
	}

	result, err := evaluateArithmetic(args.Expr)
	if err != nil {
		return nil, err
	}
	if args.Precision != nil {
		scale := math.Pow(10, float64(*args.Precision))
		result = math.Round(result*scale) / scale
	}
	return result, nil
}

// evaluateArithmetic compiles expr as a CEL expression over doubles.
// Integer literals are promoted to doubles first so that "7 / 2" is 3.5 and
// mixed expressions like "2 * 1.5" type-check.
func evaluateArithmetic(expr string) (float64, error) {
	env, err := calculatorEnv()
	if err != nil {
		return 0, fmt.Errorf("calculator unavailable: %w", err)
	}

	src := numericLiteral.ReplaceAllStringFunc(expr, promoteLiteral)
	ast, iss := env.Compile(src)
	if iss != nil && iss.Err() != nil {
		return 0, fmt.Errorf("invalid expression %q: %w", expr, iss.Err())
	}
	if !ast.OutputType().IsExactType(cel.DoubleType) {
		return 0, fmt.Errorf("expression %q does not evaluate to a number", expr)
	}
	prg, err := env.Program(ast)
	if err != nil {
		return 0, fmt.Errorf("invalid expression %q: %w", expr, err)
	}
	out, _, err := prg.Eval(map[string]any{})
	if err != nil {
		return 0, fmt.Errorf("evaluating %q: %w", expr, err)
	}
	value, ok := out.Value().(float64)
	if !ok {
		return 0, fmt.Errorf("expression %q does not evaluate to a number", expr)
	}
	if math.IsInf(value, 0) || math.IsNaN(value) {
		return 0, fmt.Errorf("expression %q has no finite result (division by zero?)", expr)
	}
	return value, nil
}

func promoteLiteral(lit string) string {
	switch {
	case strings.HasSuffix(lit, "."):
		return lit + "0"
	case strings.HasPrefix(lit, "."):
		return "0" + lit
	case strings.ContainsAny(lit, ".eE"):
		return lit
	default:
		return lit + ".0"
	}
}
