package config

// MapSource serves options from memory, keyed by section then option. It is
// handy for command-line overrides and tests.
type MapSource map[string]map[string]string

// Set stores value under (section, option).
func (m MapSource) Set(section, option, value string) {
	if m[section] == nil {
		m[section] = make(map[string]string)
	}
	m[section][option] = value
}

// Get implements Source.
func (m MapSource) Get(section, option string) (string, bool) {
	v, ok := m[section][option]
	return v, ok
}
