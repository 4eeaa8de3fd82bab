package teamid

import "testing"

func TestExtractFromOrgUnit(t *testing.T) {
	cases := []struct {
		name string
		ou   string
		want string
	}{
		{"plain team id", "ABCDE12345", "ABCDE12345"},
		{"embedded in longer string", "iPhone Developer: ABCDE12345", "ABCDE12345"},
		{"absent", "Some Org Unit", ""},
		{"lowercase does not match", "abcde12345", ""},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := ExtractFromOrgUnit(c.ou); got != c.want {
				t.Errorf("ExtractFromOrgUnit(%q) = %q, want %q", c.ou, got, c.want)
			}
		})
	}
}

func TestIsValid(t *testing.T) {
	valid := []string{"ABCDE12345", "0123456789"}
	invalid := []string{"", "abcde12345", "ABCDE1234", "ABCDE123456"}
	for _, v := range valid {
		if !IsValid(v) {
			t.Errorf("IsValid(%q) = false, want true", v)
		}
	}
	for _, v := range invalid {
		if IsValid(v) {
			t.Errorf("IsValid(%q) = true, want false", v)
		}
	}
}
