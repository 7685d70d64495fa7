package filters

// Params carries decode parameters from a stream's /DecodeParms
// dictionary. Values are plain Go ints, bools, and strings; the
// caller converts from its object model.
type Params map[string]interface{}

// Int returns the integer parameter for key, or def when the key is
// missing or has the wrong type.
func (p Params) Int(key string, def int) int {
	if p == nil {
		return def
	}
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}

// Bool returns the boolean parameter for key, or def when the key is
// missing or has the wrong type.
func (p Params) Bool(key string, def bool) bool {
	if p == nil {
		return def
	}
	if v, ok := p[key].(bool); ok {
		return v
	}
	return def
}
