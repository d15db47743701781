// Package factory provides a small generic registry used to instantiate modules
// from configuration. A module is described by a type string and a map of raw
// settings; its factory decodes the settings into a typed struct and returns
// the concrete implementation.
//
//	reg := factory.NewRegistry[reading.Source]()
//	reg.Register("redis", func(conf map[string]any) (reading.Source, error) {
//	    var c struct{ Addr string `json:"addr"` }
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return newRedisSource(c.Addr), nil
//	})
package factory
