package engine

// Escape percent-encodes every byte of s outside the URL-unreserved
// set [A-Za-z0-9-._~]. Unlike url.QueryEscape it never emits '+' and
// also encodes sub-delims, matching what transfer tooling expects when
// embedding arbitrary strings in URLs.
func Escape(s string) string {
	const hex = "0123456789ABCDEF"

	var out []byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if unreserved(c) {
			out = append(out, c)
			continue
		}
		out = append(out, '%', hex[c>>4], hex[c&0xf])
	}

	return string(out)
}

func unreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	case c == '-' || c == '.' || c == '_' || c == '~':
		return true
	default:
		return false
	}
}
