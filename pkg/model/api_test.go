package model

import "testing"

func TestFilters_NormalizeDropsStatusAll(t *testing.T) {
	tests := []struct {
		name string
		in   Filters
		want Filters
	}{
		{"all", Filters{"status": "all"}, Filters{}},
		{"all upper", Filters{"status": "ALL", "backend": "git"}, Filters{"backend": "git"}},
		{"concrete", Filters{"status": "failed"}, Filters{"status": "failed"}},
		{"empty value", Filters{"uri": " "}, Filters{}},
		{"last run all kept", Filters{"last_run_status": "all"}, Filters{"last_run_status": "all"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.Normalize()
			if len(got) != len(tt.want) {
				t.Fatalf("Normalize() = %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("Normalize()[%q] = %q, want %q", k, got[k], v)
				}
			}
			if _, ok := got["status"]; ok && tt.in["status"] != "" && got["status"] == StatusAll {
				t.Error("status=all leaked into normalized filters")
			}
		})
	}
}

func TestQuery_Clamp(t *testing.T) {
	tests := []struct {
		name     string
		input    Query
		wantPage int
		wantSize int
	}{
		{"defaults", Query{}, 1, DefaultPageSize},
		{"negative", Query{Page: -2, Size: -5}, 1, DefaultPageSize},
		{"over max", Query{Page: 3, Size: 200}, 3, MaxPageSize},
		{"valid", Query{Page: 2, Size: 50}, 2, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.input.Clamp()
			if tt.input.Page != tt.wantPage {
				t.Errorf("Page = %d, want %d", tt.input.Page, tt.wantPage)
			}
			if tt.input.Size != tt.wantSize {
				t.Errorf("Size = %d, want %d", tt.input.Size, tt.wantSize)
			}
		})
	}
}

func TestQuery_ValuesOmitsStatusAll(t *testing.T) {
	q := Query{Page: 2, Size: 10, Filters: Filters{"status": "all", "backend": "git"}}
	v := q.Values()
	if _, ok := v["status"]; ok {
		t.Errorf("Values() contains status: %v", v)
	}
	if v["page"] != "2" || v["size"] != "10" || v["backend"] != "git" {
		t.Errorf("Values() = %v", v)
	}
}

func TestPage_InRange(t *testing.T) {
	tests := []struct {
		name string
		page Page[int]
		want bool
	}{
		{"empty listing", Page[int]{Number: 1}, true},
		{"first", Page[int]{Items: []int{1}, Number: 1, TotalPages: 3, TotalCount: 7, Size: 3}, true},
		{"beyond", Page[int]{Number: 4, TotalPages: 3, TotalCount: 7, Size: 3}, false},
		{"oversized", Page[int]{Items: []int{1, 2, 3, 4}, Number: 1, TotalPages: 1, TotalCount: 4, Size: 3}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.page.InRange(); got != tt.want {
				t.Errorf("InRange() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestListResponse_ToPage(t *testing.T) {
	r := ListResponse[string]{Results: nil, Count: 0, TotalPages: 0}
	p := r.ToPage(Query{Page: 1, Size: 25})
	if p.Items == nil {
		t.Error("Items should be an empty slice, not nil")
	}
	if p.Number != 1 {
		t.Errorf("Number = %d, want 1", p.Number)
	}
}
