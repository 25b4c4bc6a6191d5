package entity

// Create builds a projected entity for every description. Descriptions
// that fail (missing capability, bad definition) are logged and skipped
// without affecting the others.
func Create(descs []Description, deps Deps) []*Projected {
	out := make([]*Projected, 0, len(descs))
	for _, d := range descs {
		if deps.Logger != nil {
			deps.Logger.Debug("creating entity", "key", d.Key, "kind", string(d.Kind))
		}
		p, err := New(d, deps)
		if err != nil {
			if deps.Logger != nil {
				deps.Logger.Warn("failed to create entity", "key", d.Key, "error", err)
			}
			continue
		}
		out = append(out, p)
	}
	return out
}
