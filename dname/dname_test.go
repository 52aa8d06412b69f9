package dname

import "testing"

func TestIsSubdomain(t *testing.T) {
	cases := []struct {
		child, parent string
		want          bool
	}{
		{"www.example.com.", "example.com.", true},
		{"example.com.", "example.com.", true},
		{"example.com.", "www.example.com.", false},
		{"evil-example.com.", "example.com.", false},
	}
	for _, c := range cases {
		if got := IsSubdomain(c.child, c.parent); got != c.want {
			t.Errorf("IsSubdomain(%q, %q) = %v, want %v", c.child, c.parent, got, c.want)
		}
	}
}

func TestIsWildcard(t *testing.T) {
	if !IsWildcard("*.example.com.") {
		t.Error("*.example.com. should be a wildcard")
	}
	if IsWildcard("www.example.com.") {
		t.Error("www.example.com. should not be a wildcard")
	}
	if IsWildcard("starstruck.example.com.") {
		t.Error("a label merely starting with * should not count")
	}
}

func TestWildcardForAndTrim(t *testing.T) {
	w := WildcardFor("example.com.")
	if w != "*.example.com." {
		t.Fatalf("WildcardFor = %q", w)
	}
	if got := TrimWildcard(w); got != "example.com." {
		t.Fatalf("TrimWildcard(%q) = %q", w, got)
	}
	if got := TrimWildcard("example.com."); got != "example.com." {
		t.Fatalf("TrimWildcard on non-wildcard changed the name: %q", got)
	}
}

func TestLabelSequence(t *testing.T) {
	name := "a.b.c.example.com."
	if got := LabelSequence(name, 2); got != "example.com." {
		t.Fatalf("LabelSequence(keep=2) = %q", got)
	}
	if got := LabelSequence(name, 0); got != "." {
		t.Fatalf("LabelSequence(keep=0) = %q", got)
	}
	if got := LabelSequence(name, 100); got != name {
		t.Fatalf("LabelSequence(keep>len) = %q, want %q", got, name)
	}
}

func TestConcat(t *testing.T) {
	got, ok := Concat("www.old.example.com.", "old.example.com.", "new.example.net.")
	if !ok {
		t.Fatal("Concat reported not a subdomain")
	}
	if got != "www.new.example.net." {
		t.Fatalf("Concat = %q", got)
	}

	if _, ok := Concat("www.other.com.", "old.example.com.", "new.example.net."); ok {
		t.Fatal("Concat should fail for a name outside the DNAME owner")
	}
}

func TestCanonicalKeyOrdering(t *testing.T) {
	// RFC 4034 6.1: "a.example" < "yljkjljk.a.example" < "Z.a.example"
	// < "zABC.a.EXAMPLE" < "z.example" < "\001.z.example" < "*.z.example"
	// < "\200.z.example" -- verify the subset relevant to our label
	// comparisons sorts correctly once reversed into our key form.
	names := []string{"z.example.", "a.example.", "yljkjljk.a.example.", "zabc.a.example."}
	keys := make(map[string]string, len(names))
	for _, n := range names {
		keys[n] = CanonicalKey(n)
	}
	if !(keys["a.example."] < keys["yljkjljk.a.example."]) {
		t.Errorf("a.example. should sort before yljkjljk.a.example.")
	}
	if !(keys["yljkjljk.a.example."] < keys["zabc.a.example."]) {
		t.Errorf("yljkjljk.a.example. should sort before zabc.a.example.")
	}
	if !(keys["zabc.a.example."] < keys["z.example."]) {
		t.Errorf("zabc.a.example. should sort before z.example.")
	}
}
