package runtime

import (
	"soma/internal/foreign"
	"soma/internal/object"
)

// storeExtension saves and restores the Store through the configured
// database.
func storeExtension(r *Runtime) *foreign.Extension {
	return &foreign.Extension{
		Name: "store",
		Natives: map[string]object.NativeFunc{
			"save": func(m object.Machine) error {
				return r.SaveStore(m.Context())
			},
			"load": func(m object.Machine) error {
				return r.LoadStore(m.Context())
			},
		},
	}
}
