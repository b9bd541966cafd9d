package patient

// Profile is the identity and clinical baseline of a patient. It is fixed for
// the lifetime of a portal session.
type Profile struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Age               int      `json:"age"`
	BloodGroup        string   `json:"blood_group"`
	Allergies         []string `json:"allergies"`
	ChronicConditions []string `json:"chronic_conditions"`
}

// Clone returns a deep copy so callers can hand the profile out without
// exposing the session's backing slices.
func (p Profile) Clone() Profile {
	out := p
	out.Allergies = cloneStrings(p.Allergies)
	out.ChronicConditions = cloneStrings(p.ChronicConditions)
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
