package strategy

import (
	"github.com/appnet-org/codecbench/pkg/bench"
)

// All returns one instance of every built-in strategy.
func All() []bench.Strategy {
	return []bench.Strategy{
		NewMsgpack(),
		NewCBOR(),
		NewProtobuf(),
		NewCapnp(),
		NewFlatBuffers(),
		NewJSONIter(),
		NewGojay(),
		NewGob(),
		NewSymphony(),
	}
}

// Builtin returns a registry holding every built-in strategy.
func Builtin() *bench.Registry {
	r := bench.NewRegistry()
	for _, s := range All() {
		r.MustRegister(s)
	}
	return r
}
