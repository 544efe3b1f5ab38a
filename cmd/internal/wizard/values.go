package wizard

import "maps"

// Values holds the inputs collected so far, keyed by field name.
type Values map[string]any

func (v Values) clone() Values {
	if v == nil {
		return Values{}
	}
	return maps.Clone(v)
}

// Int returns the int stored under key.
func (v Values) Int(key string) (int, bool) {
	n, ok := v[key].(int)
	return n, ok
}

// String returns the string stored under key.
func (v Values) String(key string) (string, bool) {
	s, ok := v[key].(string)
	return s, ok
}

// Has reports whether key was collected.
func (v Values) Has(key string) bool {
	_, ok := v[key]
	return ok
}
