package classify

// DefaultTable returns a starter table covering common imaging procedures.
// Deployments normally replace it with a rule file; the defaults keep the
// service useful out of the box and give the simulator something to hit.
func DefaultTable() *Table {
	direct := map[string]Result{
		"XR CHEST 1 VIEW": {StudyType: "XR Chest", RVU: 0.18},
	}
	rules := []Rule{
		{
			StudyType: "CTA Head and Neck", RVU: 2.5,
			Groups: []ConditionGroup{
				{Required: []string{"cta"}, AnyOf: []string{"head", "neck", "brain"}},
			},
		},
		{
			StudyType: "CT Head", RVU: 0.85,
			Groups: []ConditionGroup{
				{Required: []string{"ct"}, AnyOf: []string{"head", "brain"}, Excluded: []string{"angio"}},
			},
		},
		{
			StudyType: "CT Abdomen Pelvis", RVU: 1.82,
			Groups: []ConditionGroup{
				{Required: []string{"ct"}, AnyOf: []string{"abd", "abdomen", "pelvis", "pel"}},
			},
		},
		{
			StudyType: "CT Chest", RVU: 1.08,
			Groups: []ConditionGroup{
				{Required: []string{"ct", "chest"}, Excluded: []string{"angio", "cta"}},
				{Required: []string{"ct", "thorax"}},
			},
		},
		{
			StudyType: "MRI Brain", RVU: 2.29,
			Groups: []ConditionGroup{
				{Required: []string{"mr"}, AnyOf: []string{"brain", "head"}},
			},
		},
		{
			StudyType: "MRI Spine", RVU: 2.2,
			Groups: []ConditionGroup{
				{Required: []string{"mr"}, AnyOf: []string{"spine", "cervical", "lumbar", "thoracic"}},
			},
		},
		{
			StudyType: "US Abdomen", RVU: 0.8,
			Groups: []ConditionGroup{
				{Required: []string{"us"}, AnyOf: []string{"abd", "abdomen", "ruq"}},
			},
		},
		{
			StudyType: "XR Chest", RVU: 0.22,
			Groups: []ConditionGroup{
				{AnyOf: []string{"xr", "x-ray", "radiograph"}, Required: []string{"chest"}},
			},
		},
		{
			StudyType: "XR Extremity", RVU: 0.17,
			Groups: []ConditionGroup{
				{AnyOf: []string{"xr", "x-ray", "radiograph"}, Required: []string{}},
			},
		},
	}
	return NewTable(direct, rules)
}
