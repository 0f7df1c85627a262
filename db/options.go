package db

import (
	"sync/atomic"

	"etamoo/types"
)

// ServerOptions is an immutable snapshot of the tunable limits. Reads
// between load_server_options() calls see one stable snapshot.
type ServerOptions struct {
	FgTicks       int64
	BgTicks       int64
	FgSeconds     float64
	BgSeconds     float64
	MaxStackDepth int
}

// DefaultOptions are the limits used before #0.server_options exists.
func DefaultOptions() *ServerOptions {
	return &ServerOptions{
		FgTicks:       30000,
		BgTicks:       15000,
		FgSeconds:     5,
		BgSeconds:     3,
		MaxStackDepth: 50,
	}
}

type optionsHolder struct {
	current atomic.Pointer[ServerOptions]
}

var options optionsHolder

func init() {
	options.current.Store(DefaultOptions())
}

// Options returns the current snapshot.
func Options() *ServerOptions {
	return options.current.Load()
}

// SetOptions installs a snapshot directly; used at boot from the
// config file before any database is loaded.
func SetOptions(o *ServerOptions) {
	options.current.Store(o)
}

// LoadServerOptions rebuilds the snapshot from the properties of the
// object named by #0.server_options. Unset or ill-typed properties
// keep their previous values.
func (s *Store) LoadServerOptions() {
	prev := Options()
	next := *prev

	optsVal, code := s.GetProperty(0, "server_options")
	if code != types.E_NONE {
		options.current.Store(&next)
		return
	}
	optsObj, ok := optsVal.(types.ObjValue)
	if !ok || !s.Valid(optsObj.Val) {
		options.current.Store(&next)
		return
	}
	o := optsObj.Val

	readInt := func(name string, dst *int64) {
		if v, code := s.GetProperty(o, name); code == types.E_NONE {
			if iv, ok := v.(types.IntValue); ok && iv.Val > 0 {
				*dst = iv.Val
			}
		}
	}
	readFloat := func(name string, dst *float64) {
		if v, code := s.GetProperty(o, name); code == types.E_NONE {
			switch n := v.(type) {
			case types.IntValue:
				if n.Val > 0 {
					*dst = float64(n.Val)
				}
			case types.FloatValue:
				if n.Val > 0 {
					*dst = n.Val
				}
			}
		}
	}

	readInt("fg_ticks", &next.FgTicks)
	readInt("bg_ticks", &next.BgTicks)
	readFloat("fg_seconds", &next.FgSeconds)
	readFloat("bg_seconds", &next.BgSeconds)
	var depth int64 = int64(next.MaxStackDepth)
	readInt("max_stack_depth", &depth)
	next.MaxStackDepth = int(depth)

	options.current.Store(&next)
}
