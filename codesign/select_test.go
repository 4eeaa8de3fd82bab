package codesign

import "testing"

func TestSelectReturnsASigner(t *testing.T) {
	signer := Select()
	if signer == nil {
		t.Fatal("Select() returned nil")
	}
}
