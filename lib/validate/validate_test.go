package validate

import (
	"strings"
	"testing"
)

type sample struct {
	Id    string `form:"id" validate:"required"`
	Value string `json:"value" validate:"omitempty,number"`
	Note  string `validate:"max=3"`
}

func TestStruct(t *testing.T) {
	if err := Struct(&sample{Id: "a", Value: "10"}); err != nil {
		t.Errorf("valid struct: %v", err)
	}

	err := Struct(&sample{Value: "1.5", Note: "long"})
	if err == nil {
		t.Fatal("invalid struct accepted")
	}
	for _, want := range []string{"id required", "value number", "Note max"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q misses %q", err, want)
		}
	}
}

func TestStructRejectsNonStruct(t *testing.T) {
	if err := Struct(nil); err == nil {
		t.Error("nil accepted")
	}
	if err := Struct("text"); err == nil {
		t.Error("string accepted")
	}
}
