package blog

import "testing"

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Hello World":                   "hello-world",
		"  Lots   of\tspace ":           "lots-of-space",
		"What's new? (v2.0)":            "whats-new-v20",
		"Crème brûlée: a recipe!":       "creme-brulee-a-recipe",
		"email@example + tilde~ *star*": "emailexample-tilde-star",
		"":                              "",
	}
	for in, want := range cases {
		if got := Slugify(in); got != want {
			t.Fatalf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}
}
