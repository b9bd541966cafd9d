package pagination

import (
	"errors"
	"iter"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"

	"github.com/labstack/echo/v4"
)

func paramsFor(t *testing.T, query string) Params {
	t.Helper()
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/"+query, nil), httptest.NewRecorder())
	return FromContext(c)
}

func TestFromContext(t *testing.T) {
	tests := []struct {
		query  string
		limit  int
		offset int
	}{
		{"", DefaultLimit, 0},
		{"?limit=50&offset=10", 50, 10},
		{"?limit=500", MaxLimit, 0},
		{"?limit=-3&offset=-1", DefaultLimit, 0},
		{"?limit=abc", DefaultLimit, 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			p := paramsFor(t, tt.query)
			if p.Limit != tt.limit || p.Offset != tt.offset {
				t.Errorf("got %+v, want limit=%d offset=%d", p, tt.limit, tt.offset)
			}
		})
	}
}

func TestPage(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6, 7}

	r := Page(slices.Values(items), Params{Limit: 3, Offset: 2})
	if !slices.Equal(r.Data, []int{3, 4, 5}) {
		t.Errorf("unexpected page %v", r.Data)
	}
	if r.Total != 7 || !r.HasMore {
		t.Errorf("expected total 7 with more, got %d %v", r.Total, r.HasMore)
	}

	last := Page(slices.Values(items), Params{Limit: 3, Offset: 6})
	if !slices.Equal(last.Data, []int{7}) || last.HasMore {
		t.Errorf("unexpected last page %+v", last)
	}

	beyond := Page(slices.Values(items), Params{Limit: 3, Offset: 50})
	if beyond.Data == nil || len(beyond.Data) != 0 {
		t.Errorf("expected empty non-nil data, got %#v", beyond.Data)
	}
}

func TestPageErr(t *testing.T) {
	boom := errors.New("boom")
	var failing iter.Seq2[int, error] = func(yield func(int, error) bool) {
		if !yield(1, nil) {
			return
		}
		yield(0, boom)
	}
	if _, err := PageErr(failing, Params{Limit: 10}); !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}

	var ok iter.Seq2[string, error] = func(yield func(string, error) bool) {
		for _, s := range []string{"a", "b"} {
			if !yield(s, nil) {
				return
			}
		}
	}
	r, err := PageErr(ok, Params{Limit: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Total != 2 || len(r.Data) != 1 || r.Data[0] != "a" {
		t.Errorf("unexpected response %+v", r)
	}
}

func TestParams_Navigation(t *testing.T) {
	p := Params{Limit: 10, Offset: 5}
	if !p.HasPrevious() || p.PreviousOffset() != 0 || p.NextOffset() != 15 {
		t.Errorf("unexpected navigation for %+v", p)
	}
	if p.HasNext(15) || !p.HasNext(16) {
		t.Error("unexpected HasNext")
	}
}
