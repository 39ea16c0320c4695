//go:build js_eval

package filter

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJSRules(t *testing.T) {
	evaluator, err := NewEvaluator(EngineJS, WithFunctionRegistry(testFunctions(t)))
	require.NoError(t, err)

	ctx := RuleContext{Line: "hi there", Number: 2, Metadata: map[string]any{"level": "debug"}}
	cases := map[string]bool{
		`line.indexOf("there") >= 0`: true,
		`number === 2`:               true,
		`metadata.level === "info"`:  false,
		`shout(line) === "HI THERE"`: true,
	}
	for expression, want := range cases {
		result, err := Evaluate(evaluator, ctx, expression)
		require.NoError(t, err, expression)
		require.Equal(t, want, result, expression)
	}
}
