package viewmodel

// FormField is one rendered input of a schema-driven form.
type FormField struct {
	Name      string
	Label     string
	InputType string
	Value     string
	Error     string
	Required  bool
	ReadOnly  bool
	Checked   bool
	Step      string
}
