package assessment

import "testing"

func TestStripFences(t *testing.T) {
	const obj = `{"score":1}`
	cases := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: obj, want: obj},
		{name: "padded", in: "\n  " + obj + "  \n", want: obj},
		{name: "json fence", in: "```json\n" + obj + "\n```", want: obj},
		{name: "bare fence", in: "```\n" + obj + "\n```", want: obj},
		{name: "fence with outer whitespace", in: "  ```json\n" + obj + "\n```\n", want: obj},
		{name: "opening fence only", in: "```json\n" + obj, want: obj},
		{name: "closing fence only", in: obj + "\n```", want: obj},
		{name: "single line", in: "```json" + obj + "```", want: obj},
		{name: "empty", in: "", want: ""},
		{name: "just fences", in: "```json\n```", want: ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := StripFences(tc.in); got != tc.want {
				t.Fatalf("StripFences(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
