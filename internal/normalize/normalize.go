package normalize

import (
	"html"
	"net/url"
	"strings"
)

const defaultDecodeDepth = 2

// Decode peels bounded layers of URL encoding. Attackers stack encodings to
// hide payloads; the depth bound keeps decoding from looping on crafted input.
func Decode(input string, depth int) string {
	if depth <= 0 {
		depth = defaultDecodeDepth
	}

	decoded := input
	for i := 0; i < depth; i++ {
		next, ok := decodeOnce(decoded)
		if !ok || next == decoded {
			break
		}
		decoded = next
	}
	return decoded
}

// Text prepares free-form request text for feature measurement: bounded URL
// decode, HTML entity decode, lowercase.
func Text(input string) string {
	out := Decode(input, defaultDecodeDepth)
	out = html.UnescapeString(out)
	return strings.ToLower(out)
}

// Path collapses dot segments and duplicate slashes so that path-shape
// features measure the effective path, not its encoding.
func Path(path string) string {
	if path == "" {
		return "/"
	}

	decoded := Decode(path, defaultDecodeDepth)

	parts := strings.Split(decoded, "/")
	stack := make([]string, 0, len(parts))
	for _, part := range parts {
		switch part {
		case "", ".":
			continue
		case "..":
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		default:
			stack = append(stack, part)
		}
	}

	if len(stack) == 0 {
		return "/"
	}
	return "/" + strings.Join(stack, "/")
}

func decodeOnce(input string) (string, bool) {
	decoded, err := url.PathUnescape(input)
	if err != nil {
		return input, false
	}
	return decoded, true
}
