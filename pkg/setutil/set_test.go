package setutil_test

import (
	"testing"

	"github.com/fri-wier/besela/pkg/setutil"
)

func TestAddContainsRemove(t *testing.T) {
	set := setutil.New[string]()

	if set.Size() != 0 {
		t.Errorf("should have zero size, got: %d", set.Size())
	}

	set.Add("https://www.gov.si/")
	set.Add("https://www.gov.si/")
	set.Add("https://evem.gov.si/")

	if set.Size() != 2 {
		t.Errorf("should have size 2, got: %d", set.Size())
	}

	if !set.Contains("https://www.gov.si/") {
		t.Error("should contain added item")
	}

	set.Remove("https://www.gov.si/")
	if set.Contains("https://www.gov.si/") {
		t.Error("should not contain removed item")
	}
	if set.Size() != 1 {
		t.Errorf("should have size 1, got: %d", set.Size())
	}
}

func TestValues(t *testing.T) {
	set := setutil.New[int]()
	set.Add(1)
	set.Add(2)

	values := set.Values()
	if len(values) != 2 {
		t.Errorf("should return 2 values, got: %d", len(values))
	}
}
