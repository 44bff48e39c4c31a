package attendance

// ResolvePolicy resolves the effective policy for a department code from the
// configured prefix overrides. Every configured prefix of the code
// participates; readonly anywhere in the ancestry wins over edit, which wins
// over auto. With no override the department is editable.
func ResolvePolicy(overrides map[string]Policy, department string) Policy {
	resolved := Policy("")
	for i := len(department); i > 0; i-- {
		p, ok := overrides[department[:i]]
		if !ok {
			continue
		}
		switch p {
		case PolicyReadonly:
			return PolicyReadonly
		case PolicyEdit:
			resolved = PolicyEdit
		case PolicyAuto:
			if resolved == "" {
				resolved = PolicyAuto
			}
		}
	}
	if resolved == "" {
		return PolicyEdit
	}
	return resolved
}
