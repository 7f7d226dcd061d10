package enumdb

// next returns the positional successor of prev.
func (r *EnumRecord) next(prev uint64, first bool) uint64 {
	if !r.Bitfield {
		if first {
			return 0
		}
		return prev + 1
	}
	if first || prev == 0 {
		return 1
	}
	return prev << 1
}

// BindValues assigns every computed entry of a non-extension enum. Unbound
// entries continue from the previous entry (+1, or <<1 for bitfields);
// explicit values and references to earlier entries reset the counter.
func (r *EnumRecord) BindValues() error {
	if r.IsExtension() {
		return enumErr(r.FullName(), "BindValues called on an extension enum")
	}
	var prev uint64
	for i := range r.Entries {
		e := &r.Entries[i]
		switch {
		case e.HasValue:
		case e.BoundName != "":
			ref, ok := r.EntryByCPPName(e.BoundName)
			if !ok || ref.CPPName == e.CPPName {
				return enumErr(r.FullName(), "%w: %s", ErrUnknownBoundName, e.BoundName)
			}
			e.Value = ref.Value
		default:
			e.Value = r.next(prev, i == 0)
		}
		prev = e.Value
	}
	r.ExtensionInitialized = true
	return nil
}

// StartFromBase resolves the starting value of an extension enum from its
// linked base: the first entry must reference a symbol of the base.
func (r *EnumRecord) StartFromBase(base *EnumRecord) error {
	if len(r.Entries) == 0 || r.Entries[0].BoundName == "" {
		return enumErr(r.FullName(), "%w %s", ErrMissingBaseBinding, base.FullName())
	}
	ref, ok := base.EntryByCPPName(r.Entries[0].BoundName)
	if !ok {
		return enumErr(r.FullName(), "%w: %s in %s", ErrUnknownBaseEntry, r.Entries[0].BoundName, base.FullName())
	}
	r.StartingValue = ref.Value
	return nil
}

// BindExtensionValues assigns every entry of an extension enum starting from
// StartingValue. The first entry takes the starting value itself. Any entry
// with an explicit value, or a symbol reference after the first entry, fails
// with ErrIllegalBoundEntry.
func (r *EnumRecord) BindExtensionValues() error {
	if len(r.Entries) == 0 {
		return enumErr(r.FullName(), "%w", ErrNoEntries)
	}
	value := r.StartingValue
	for i := range r.Entries {
		e := &r.Entries[i]
		if e.HasValue || (i > 0 && e.BoundName != "") {
			return enumErr(r.FullName(), "%w: %s", ErrIllegalBoundEntry, e.CPPName)
		}
		if i > 0 {
			value = r.next(value, false)
		}
		e.Value = value
	}
	r.ExtensionInitialized = true
	return nil
}
