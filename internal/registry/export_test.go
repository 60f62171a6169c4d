package registry

// Reset empties the registry between test cases.
func (r *Registry) Reset() { r.reset() }

func (r *Registry) SetIDFunc(fn func() string) { r.newID = fn }
