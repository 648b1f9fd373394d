package validation

import "testing"

func TestValidISO9660FileIdentifier(t *testing.T) {
	cases := []struct {
		id    string
		level InterchangeLevel
		ok    bool
	}{
		{"FOO.TXT;1", Level1, true},
		{"FOO.TXT;32768", Level1, false},
		{"FOO.TXT;0", Level1, false},
		{"FOO.TXT;1", Level1, true},
		{"LONGFILENAME.TXT;1", Level1, false},
		{"LONGFILENAME.TXT;1", Level3, true},
		{"FOO.TXT", Level1, false},
		{"FOO.BAR.TXT;1", Level1, false},
	}
	for _, c := range cases {
		err := ValidISO9660FileIdentifier(c.id, c.level)
		if (err == nil) != c.ok {
			t.Errorf("ValidISO9660FileIdentifier(%q, %d) error=%v, want ok=%v", c.id, c.level, err, c.ok)
		}
	}
}

func TestValidISO9660DirIdentifier(t *testing.T) {
	if err := ValidISO9660DirIdentifier("\x00", Level1); err != nil {
		t.Errorf("current-dir identifier should be valid: %v", err)
	}
	if err := ValidISO9660DirIdentifier("\x01", Level1); err != nil {
		t.Errorf("parent-dir identifier should be valid: %v", err)
	}
	if err := ValidISO9660DirIdentifier("lowercase", Level1); err == nil {
		t.Errorf("lowercase identifier should be rejected")
	}
	if err := ValidISO9660DirIdentifier("DOCS", Level1); err != nil {
		t.Errorf("DOCS should be valid: %v", err)
	}
}

func TestValidJolietIdentifier(t *testing.T) {
	if err := ValidJolietIdentifier("a normal name.txt"); err != nil {
		t.Errorf("expected valid: %v", err)
	}
	long := make([]rune, 65)
	for i := range long {
		long[i] = 'a'
	}
	if err := ValidJolietIdentifier(string(long)); err == nil {
		t.Errorf("expected 65-unit identifier to be rejected")
	}
}

func TestValidRockRidgeName(t *testing.T) {
	if err := ValidRockRidgeName(""); err == nil {
		t.Errorf("expected empty name rejected")
	}
	if err := ValidRockRidgeName("a/b"); err == nil {
		t.Errorf("expected name with slash rejected")
	}
	if err := ValidRockRidgeName("normal-name.txt"); err != nil {
		t.Errorf("expected valid: %v", err)
	}
}

func TestValidDepth(t *testing.T) {
	if err := ValidDepth(9, 10, Level1); err == nil {
		t.Errorf("expected depth 9 to exceed limit")
	}
	if err := ValidDepth(8, 10, Level1); err != nil {
		t.Errorf("expected depth 8 to be valid: %v", err)
	}
}
