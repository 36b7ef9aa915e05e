// Package builtin assembles the adapter registry shipped with bitegraph.
package builtin

import (
	"github.com/sells-group/bitegraph/internal/adapter"
	"github.com/sells-group/bitegraph/internal/adapter/csvimport"
	"github.com/sells-group/bitegraph/internal/adapter/ubereats"
	"github.com/sells-group/bitegraph/internal/adapter/xlsximport"
)

// Default returns a registry with every built-in adapter. Uber Eats is
// registered first so its format hint wins over the generic CSV adapter.
func Default() *adapter.Registry {
	r := adapter.NewRegistry()
	for _, a := range []adapter.Adapter{
		ubereats.New(),
		csvimport.New(),
		xlsximport.New(),
	} {
		if err := r.Register(a); err != nil {
			panic(err)
		}
	}
	return r
}
