package courier

// Merge folds src into dst with right bias: on key collision the src value
// wins, except that two object values merge recursively. Arrays are replaced
// wholesale, never concatenated. dst is modified and returned.
func Merge(dst, src map[string]any) map[string]any {
	for key, value := range src {
		if existing, ok := dst[key].(map[string]any); ok {
			if incoming, ok := value.(map[string]any); ok {
				dst[key] = Merge(existing, incoming)
				continue
			}
		}
		dst[key] = value
	}
	return dst
}
