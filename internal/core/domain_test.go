package core

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestDateOfUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	// 22:30 UTC on Jan 31 is already Feb 1 at UTC+3
	ts := time.Date(2024, 1, 31, 22, 30, 0, 0, time.UTC)
	if got := DateOf(ts, time.UTC).MonthKey(); got != "2024-01" {
		t.Fatalf("UTC month = %s", got)
	}
	if got := DateOf(ts, loc).MonthKey(); got != "2024-02" {
		t.Fatalf("UTC+3 month = %s", got)
	}
}

func TestMonthKeyIsZeroPadded(t *testing.T) {
	if got := NewDate(2024, 3, 9).MonthKey(); got != "2024-03" {
		t.Fatalf("MonthKey = %q", got)
	}
}

func TestDateJSON(t *testing.T) {
	var body struct {
		Date Date `json:"date"`
	}
	if err := json.Unmarshal([]byte(`{"date":"2024-01-20"}`), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !body.Date.Equal(NewDate(2024, 1, 20).Time) {
		t.Fatalf("unexpected date %v", body.Date)
	}
	err := json.Unmarshal([]byte(`{"date":"20/01/2024"}`), &body)
	var vErr *ValidationError
	if !errors.As(err, &vErr) || vErr.Field != "date" {
		t.Fatalf("expected date validation error, got %v", err)
	}
}

func TestExpenseValidate(t *testing.T) {
	good := Expense{
		Title:    "Rent March",
		Category: CategoryRent,
		Amount:   Money{Cents: 50000},
		Date:     NewDate(2024, 3, 1),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := map[string]Expense{
		"title":    {Title: " ", Category: CategoryMisc, Amount: Money{Cents: 1}, Date: NewDate(2024, 1, 1)},
		"category": {Title: "x", Category: "Food", Amount: Money{Cents: 1}, Date: NewDate(2024, 1, 1)},
		"amount":   {Title: "x", Category: CategoryMisc, Amount: Money{Cents: 0}, Date: NewDate(2024, 1, 1)},
		"date":     {Title: "x", Category: CategoryMisc, Amount: Money{Cents: 1}},
	}
	for field, e := range bads {
		err := e.Validate()
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("%s: expected ValidationError, got %v", field, err)
		}
		if vErr.Field != field {
			t.Fatalf("expected field %q, got %q", field, vErr.Field)
		}
	}
}

func TestFoodItemValidate(t *testing.T) {
	if err := (FoodItem{Name: "Samosa", Price: Money{Cents: 1000}}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (FoodItem{Name: "", Price: Money{Cents: 1000}}).Validate(); err == nil {
		t.Fatalf("expected error for blank name")
	}
	if err := (FoodItem{Name: "x", Price: Money{Cents: 100}, CostPrice: Money{Cents: -1}}).Validate(); err == nil {
		t.Fatalf("expected error for negative cost")
	}
	for _, img := range []string{"/media/food_images/samosa.jpg", "https://cdn.example.com/samosa.png"} {
		if err := (FoodItem{Name: "x", Image: img}).Validate(); err != nil {
			t.Errorf("image %q: %v", img, err)
		}
	}
	for _, img := range []string{"samosa.jpg", "javascript:alert(1)", "/" + strings.Repeat("a", 100)} {
		var vErr *ValidationError
		if err := (FoodItem{Name: "x", Image: img}).Validate(); !errors.As(err, &vErr) || vErr.Field != "image" {
			t.Errorf("image %q: got %v, want image error", img, err)
		}
	}
}

func TestValidateQuantity(t *testing.T) {
	for _, q := range []int{1, 3, MaxQuantity} {
		if err := ValidateQuantity(q); err != nil {
			t.Errorf("ValidateQuantity(%d) = %v", q, err)
		}
	}
	for _, q := range []int{0, -1, MaxQuantity + 1, 922337203685477581} {
		var vErr *ValidationError
		if err := ValidateQuantity(q); !errors.As(err, &vErr) || vErr.Field != "quantity" {
			t.Errorf("ValidateQuantity(%d) = %v, want quantity error", q, err)
		}
	}
}

func TestIdentityCanManage(t *testing.T) {
	cases := []struct {
		id   Identity
		want bool
	}{
		{Identity{IsStudent: true}, false},
		{Identity{IsManager: true}, true},
		{Identity{IsSuperuser: true}, true},
		{Identity{IsStudent: true, IsManager: true}, true},
		{Identity{}, false},
	}
	for i, tc := range cases {
		if got := tc.id.CanManage(); got != tc.want {
			t.Errorf("case %d: CanManage() = %v, want %v", i, got, tc.want)
		}
	}
}

func TestOrderFilterMatches(t *testing.T) {
	student := int64(7)
	cleared := true
	f := OrderFilter{StudentID: &student, Cleared: &cleared}
	if !f.Matches(Order{StudentID: 7, Cleared: true}) {
		t.Fatalf("expected match")
	}
	if f.Matches(Order{StudentID: 7, Cleared: false}) {
		t.Fatalf("expected cleared mismatch")
	}
	if f.Matches(Order{StudentID: 8, Cleared: true}) {
		t.Fatalf("expected student mismatch")
	}
}
