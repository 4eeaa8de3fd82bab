package crypto

import "testing"

func TestClassifyVariant(t *testing.T) {
	cases := map[string]Variant{
		"Apple Development: Jane Doe (ABCDE12345)":    VariantDevelopment,
		"iPhone Developer: Jane Doe":                  VariantDevelopment,
		"Apple Distribution: Acme Inc":                VariantDistribution,
		"iPhone Distribution: Acme Inc":                VariantDistribution,
		"Some Unrelated Name":                          VariantUnknown,
	}
	for cn, want := range cases {
		if got := classifyVariant(cn); got != want {
			t.Errorf("classifyVariant(%q) = %q, want %q", cn, got, want)
		}
	}
}
