package domain

// TemplateState is the outcome of checking one catalog file
type TemplateState string

const (
	TemplatePresent TemplateState = "present"
	TemplateMissing TemplateState = "missing"
	TemplateInvalid TemplateState = "invalid"
)

// TemplateCheck is the check result for a single catalog file
type TemplateCheck struct {
	Filename   string        `json:"filename"`
	Categories []Category    `json:"categories"`
	State      TemplateState `json:"state"`
	Width      int           `json:"width,omitempty"`
	Height     int           `json:"height,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// CheckReport lists the presence of every catalog file in a templates directory
type CheckReport struct {
	Dir     string          `json:"dir"`
	Entries []TemplateCheck `json:"entries"`
	Extra   []string        `json:"extra,omitempty"` // .png files not in the catalog
}

// Complete reports whether every catalog file is present and decodable
func (r *CheckReport) Complete() bool {
	for _, e := range r.Entries {
		if e.State != TemplatePresent {
			return false
		}
	}
	return true
}

// Filter returns entries in the given state
func (r *CheckReport) Filter(state TemplateState) []TemplateCheck {
	var out []TemplateCheck
	for _, e := range r.Entries {
		if e.State == state {
			out = append(out, e)
		}
	}
	return out
}

// Count returns the number of entries in the given state
func (r *CheckReport) Count(state TemplateState) int {
	return len(r.Filter(state))
}
