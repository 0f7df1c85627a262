package builtins

import (
	"fmt"
	"math"
	"math/rand"
	"sync"

	"etamoo/types"
)

// rng is the process-wide random source used by random(); a single
// lock keeps it safe for host threads that also draw from it.
var (
	rngMu sync.Mutex
	rng   = rand.New(rand.NewSource(1))
)

// SeedRandom reseeds the shared generator; the server does this at
// boot.
func SeedRandom(seed int64) {
	rngMu.Lock()
	defer rngMu.Unlock()
	rng = rand.New(rand.NewSource(seed))
}

func registerMath(r *Registry) {
	r.Register("random", sig(0, 1, types.TYPE_INT), bfRandom)
	r.Register("min", sig(1, -1, types.TYPE_NUM), bfMin)
	r.Register("max", sig(1, -1, types.TYPE_NUM), bfMax)
	r.Register("abs", sig(1, 1, types.TYPE_NUM), bfAbs)
	r.Register("floatstr", sig(2, 3, types.TYPE_FLOAT, types.TYPE_INT, types.TYPE_ANY), bfFloatstr)
	r.Register("sqrt", sig(1, 1, types.TYPE_FLOAT), mathFn1(math.Sqrt))
	r.Register("sin", sig(1, 1, types.TYPE_FLOAT), mathFn1(math.Sin))
	r.Register("cos", sig(1, 1, types.TYPE_FLOAT), mathFn1(math.Cos))
	r.Register("tan", sig(1, 1, types.TYPE_FLOAT), mathFn1(math.Tan))
	r.Register("asin", sig(1, 1, types.TYPE_FLOAT), mathFn1(math.Asin))
	r.Register("acos", sig(1, 1, types.TYPE_FLOAT), mathFn1(math.Acos))
	r.Register("atan", sig(1, 2, types.TYPE_FLOAT, types.TYPE_FLOAT), bfAtan)
	r.Register("sinh", sig(1, 1, types.TYPE_FLOAT), mathFn1(math.Sinh))
	r.Register("cosh", sig(1, 1, types.TYPE_FLOAT), mathFn1(math.Cosh))
	r.Register("tanh", sig(1, 1, types.TYPE_FLOAT), mathFn1(math.Tanh))
	r.Register("exp", sig(1, 1, types.TYPE_FLOAT), mathFn1(math.Exp))
	r.Register("log", sig(1, 1, types.TYPE_FLOAT), mathFn1(math.Log))
	r.Register("log10", sig(1, 1, types.TYPE_FLOAT), mathFn1(math.Log10))
	r.Register("ceil", sig(1, 1, types.TYPE_FLOAT), mathFn1(math.Ceil))
	r.Register("floor", sig(1, 1, types.TYPE_FLOAT), mathFn1(math.Floor))
	r.Register("trunc", sig(1, 1, types.TYPE_FLOAT), mathFn1(math.Trunc))
}

func bfRandom(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	max := int64(math.MaxInt64)
	if len(args) == 1 {
		max = args[0].(types.IntValue).Val
		if max < 1 {
			return types.Err(types.E_INVARG)
		}
	}
	rngMu.Lock()
	n := rng.Int63n(max)
	rngMu.Unlock()
	return types.Ok(types.NewInt(n + 1))
}

// minMax enforces a uniform numeric kind across all arguments.
func minMax(args []types.Value, pickGreater bool) types.Result {
	best := args[0]
	for _, a := range args[1:] {
		if a.Type() != best.Type() {
			return types.Err(types.E_TYPE)
		}
		cmp, code := types.Compare(a, best)
		if code != types.E_NONE {
			return types.Err(code)
		}
		if (pickGreater && cmp > 0) || (!pickGreater && cmp < 0) {
			best = a
		}
	}
	return types.Ok(best)
}

func bfMin(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	return minMax(args, false)
}

func bfMax(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	return minMax(args, true)
}

func bfAbs(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	switch v := args[0].(type) {
	case types.IntValue:
		if v.Val < 0 {
			return types.Ok(types.NewInt(-v.Val))
		}
		return types.Ok(v)
	case types.FloatValue:
		return types.Ok(types.NewFloat(math.Abs(v.Val)))
	}
	return types.Err(types.E_TYPE)
}

func bfFloatstr(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	f := args[0].(types.FloatValue).Val
	prec := args[1].(types.IntValue).Val
	if prec < 0 {
		return types.Err(types.E_INVARG)
	}
	if prec > 19 {
		prec = 19
	}
	sci := len(args) > 2 && args[2].Truthy()
	if sci {
		return types.Ok(types.NewStr(fmt.Sprintf("%.*e", prec, f)))
	}
	return types.Ok(types.NewStr(fmt.Sprintf("%.*f", prec, f)))
}

func bfAtan(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
	if len(args) == 1 {
		return floatResult(math.Atan(args[0].(types.FloatValue).Val))
	}
	y := args[0].(types.FloatValue).Val
	x := args[1].(types.FloatValue).Val
	return floatResult(math.Atan2(y, x))
}

// mathFn1 wraps a float function with the NaN/infinity policy: NaN
// results are E_INVARG, infinite results are E_FLOAT.
func mathFn1(f func(float64) float64) Fn {
	return func(r *Registry, ctx *types.TaskContext, args []types.Value) types.Result {
		return floatResult(f(args[0].(types.FloatValue).Val))
	}
}

func floatResult(v float64) types.Result {
	if math.IsNaN(v) {
		return types.Err(types.E_INVARG)
	}
	if math.IsInf(v, 0) {
		return types.Err(types.E_FLOAT)
	}
	return types.Ok(types.NewFloat(v))
}
