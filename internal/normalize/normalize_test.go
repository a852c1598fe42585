package normalize

import "testing"

func TestDecode(t *testing.T) {
	cases := []struct {
		name  string
		input string
		depth int
		want  string
	}{
		{"plain", "/index.html", 2, "/index.html"},
		{"single", "%2e%2e%2f", 2, "../"},
		{"double", "%252e%252e%252f", 2, "../"},
		{"depth-bounded", "%25252e", 1, "%252e"},
		{"invalid-escape", "%zz", 2, "%zz"},
	}

	for _, tt := range cases {
		if got := Decode(tt.input, tt.depth); got != tt.want {
			t.Fatalf("%s: Decode(%q) = %q, want %q", tt.name, tt.input, got, tt.want)
		}
	}
}

func TestPath(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{"", "/"},
		{"/", "/"},
		{"/a/b/c", "/a/b/c"},
		{"/a//b/./c", "/a/b/c"},
		{"/a/b/../c", "/a/c"},
		{"/../..", "/"},
		{"%2e%2e/admin", "/admin"},
	}

	for _, tt := range cases {
		if got := Path(tt.input); got != tt.want {
			t.Fatalf("Path(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestText(t *testing.T) {
	if got := Text("SELECT%20*%20FROM&#39;"); got != "select * from'" {
		t.Fatalf("Text = %q", got)
	}
}
