package model

import (
	"encoding/json"
	"testing"
)

func TestOptionalTriState(t *testing.T) {
	var p RoutePatch
	if err := json.Unmarshal([]byte(`{"totalDistance":3.5,"routeName":null}`), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !p.TotalDistance.Set || !p.TotalDistance.Valid || p.TotalDistance.Value != 3.5 {
		t.Fatalf("value field: %+v", p.TotalDistance)
	}
	if !p.RouteName.Set || p.RouteName.Valid {
		t.Fatalf("null field: %+v", p.RouteName)
	}
	if p.EndTime.Set || p.Status.Set || p.TotalDuration.Set {
		t.Fatalf("absent fields marked set: %+v", p)
	}
}

func TestOptionalPtr(t *testing.T) {
	o := Optional[string]{Set: true, Valid: true, Value: "x"}
	if v := o.Ptr(); v == nil || *v != "x" {
		t.Fatalf("Ptr value: %v", v)
	}
	o = Optional[string]{Set: true, Valid: false}
	if v := o.Ptr(); v != nil {
		t.Fatalf("Ptr null: %v", *v)
	}
}

func TestOptionalRejectsWrongType(t *testing.T) {
	var p RoutePatch
	if err := json.Unmarshal([]byte(`{"totalDuration":"soon"}`), &p); err == nil {
		t.Fatal("string for int accepted")
	}
}
