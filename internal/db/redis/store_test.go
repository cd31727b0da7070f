package redis

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/redis/rueidis"
	"github.com/redis/rueidis/mock"
	"go.uber.org/mock/gomock"

	"github.com/kailas-cloud/askdex/internal/db"
)

// --- client.go tests ---

func TestPing_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("PING")).
		Return(mock.Result(mock.RedisString("PONG")))

	s := NewStoreForTest(c)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPing_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("PING")).
		Return(mock.ErrorResult(context.DeadlineExceeded))

	s := NewStoreForTest(c)
	if err := s.Ping(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

// --- hash.go tests ---

func TestHSetMulti_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		DoMulti(gomock.Any(), gomock.Any(), gomock.Any()).
		Return([]rueidis.RedisResult{
			mock.Result(mock.RedisInt64(2)),
			mock.Result(mock.RedisInt64(2)),
		})

	s := NewStoreForTest(c)
	err := s.HSetMulti(context.Background(), []db.HashSetItem{
		{Key: "askdex:finding:F-1", Fields: map[string]string{"title": "a", "severity": "High"}},
		{Key: "askdex:finding:F-2", Fields: map[string]string{"title": "b", "severity": "Low"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestHSetMulti_PartialError(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		DoMulti(gomock.Any(), gomock.Any(), gomock.Any()).
		Return([]rueidis.RedisResult{
			mock.Result(mock.RedisInt64(2)),
			mock.ErrorResult(context.DeadlineExceeded),
		})

	s := NewStoreForTest(c)
	err := s.HSetMulti(context.Background(), []db.HashSetItem{
		{Key: "k1", Fields: map[string]string{"f": "v"}},
		{Key: "k2", Fields: map[string]string{"f": "v"}},
	})
	if !isDBError(err) || !strings.Contains(err.Error(), "k2") {
		t.Errorf("expected db.Error naming k2, got %v", err)
	}
}

func TestHSetMulti_Empty(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	s := NewStoreForTest(c)
	if err := s.HSetMulti(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestHGetAll_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("HGETALL", "mykey")).
		Return(mock.Result(mock.RedisMap(map[string]rueidis.RedisMessage{
			"f1": mock.RedisString("v1"),
			"f2": mock.RedisString("v2"),
		})))

	s := NewStoreForTest(c)
	m, err := s.HGetAll(context.Background(), "mykey")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m["f1"] != "v1" || m["f2"] != "v2" {
		t.Errorf("unexpected map: %v", m)
	}
}

func TestHGetAll_Missing(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("HGETALL", "nokey")).
		Return(mock.Result(mock.RedisMap(map[string]rueidis.RedisMessage{})))

	s := NewStoreForTest(c)
	if _, err := s.HGetAll(context.Background(), "nokey"); !errors.Is(err, db.ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestHGetAll_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("HGETALL", "mykey")).
		Return(mock.ErrorResult(context.DeadlineExceeded))

	s := NewStoreForTest(c)
	_, err := s.HGetAll(context.Background(), "mykey")
	if !isDBError(err) || errors.Is(err, db.ErrKeyNotFound) {
		t.Fatalf("expected db.Error, got %v", err)
	}
}

func TestDel_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("DEL", "mykey")).
		Return(mock.Result(mock.RedisInt64(1)))

	s := NewStoreForTest(c)
	if err := s.Del(context.Background(), "mykey"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// --- kv.go tests ---

func TestGet_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("GET", "mykey")).
		Return(mock.Result(mock.RedisBlobString("value")))

	s := NewStoreForTest(c)
	data, err := s.Get(context.Background(), "mykey")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "value" {
		t.Errorf("unexpected data: %s", data)
	}
}

func TestGet_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("GET", "mykey")).
		Return(mock.Result(mock.RedisNil()))

	s := NewStoreForTest(c)
	_, err := s.Get(context.Background(), "mykey")
	if !errors.Is(err, db.ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestSetWithTTL_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("SET", "mykey", "myvalue", "EX", "60")).
		Return(mock.Result(mock.RedisString("OK")))

	s := NewStoreForTest(c)
	if err := s.SetWithTTL(context.Background(), "mykey", []byte("myvalue"), time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestIncrIfBelow(t *testing.T) {
	tests := []struct {
		name        string
		reply       rueidis.RedisMessage
		wantUsed    int64
		wantAllowed bool
	}{
		{"allowed", mock.RedisArray(mock.RedisInt64(3), mock.RedisInt64(1)), 3, true},
		{"at limit", mock.RedisArray(mock.RedisInt64(50), mock.RedisInt64(0)), 50, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			c := mock.NewClient(ctrl)

			c.EXPECT().
				Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
					return cmd[0] == "EVALSHA" && cmd[2] == "1" &&
						cmd[3] == "askdex:quota:u:2025-04-02" && cmd[4] == "50" && cmd[5] == "172800"
				})).
				Return(mock.Result(tc.reply))

			s := NewStoreForTest(c)
			used, allowed, err := s.IncrIfBelow(context.Background(), "askdex:quota:u:2025-04-02", 50, 48*time.Hour)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if used != tc.wantUsed || allowed != tc.wantAllowed {
				t.Errorf("got (%d, %v), want (%d, %v)", used, allowed, tc.wantUsed, tc.wantAllowed)
			}
		})
	}
}

func TestIncrIfBelow_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool { return cmd[0] == "EVALSHA" })).
		Return(mock.ErrorResult(context.DeadlineExceeded))

	s := NewStoreForTest(c)
	if _, _, err := s.IncrIfBelow(context.Background(), "k", 1, time.Hour); !isDBError(err) {
		t.Errorf("expected db.Error, got %v", err)
	}
}

// --- index.go tests ---

func TestCreateIndex_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			joined := strings.Join(cmd, " ")
			return cmd[0] == "FT.CREATE" &&
				strings.Contains(joined, "ON HASH PREFIX 1 askdex:finding:") &&
				strings.Contains(joined, "identified_at NUMERIC SORTABLE")
		})).
		Return(mock.Result(mock.RedisString("OK")))

	s := NewStoreForTest(c)
	idx := db.NewIndex("askdex:findings").
		Prefix("askdex:finding:").
		Tag("severity").
		SortableNumeric("identified_at").
		MustBuild()
	if err := s.CreateIndex(context.Background(), idx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCreateIndex_AlreadyExists(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool { return cmd[0] == "FT.CREATE" })).
		Return(mock.Result(mock.RedisError("Index already exists")))

	s := NewStoreForTest(c)
	idx := db.NewIndex("idx").Tag("f").MustBuild()
	if err := s.CreateIndex(context.Background(), idx); !errors.Is(err, db.ErrIndexExists) {
		t.Errorf("expected ErrIndexExists, got %v", err)
	}
}

func TestDropIndex_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT.DROPINDEX", "idx")).
		Return(mock.Result(mock.RedisError("Unknown Index name")))

	s := NewStoreForTest(c)
	if err := s.DropIndex(context.Background(), "idx"); !errors.Is(err, db.ErrIndexNotFound) {
		t.Errorf("expected ErrIndexNotFound, got %v", err)
	}
}

func TestIndexExists(t *testing.T) {
	tests := []struct {
		name  string
		reply rueidis.RedisResult
		want  bool
	}{
		{"present", mock.Result(mock.RedisArray(mock.RedisString("index_name"), mock.RedisString("idx"))), true},
		{"absent", mock.Result(mock.RedisError("Unknown index name")), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			c := mock.NewClient(ctrl)

			c.EXPECT().
				Do(gomock.Any(), mock.Match("FT.INFO", "idx")).
				Return(tc.reply)

			s := NewStoreForTest(c)
			got, err := s.IndexExists(context.Background(), "idx")
			if err != nil || got != tc.want {
				t.Errorf("IndexExists = %v, %v; want %v", got, err, tc.want)
			}
		})
	}
}

func TestBuildFieldArgs(t *testing.T) {
	tests := []struct {
		field db.IndexField
		want  string
	}{
		{db.IndexField{Name: "year", Type: db.IndexFieldNumeric}, "year NUMERIC"},
		{db.IndexField{Name: "ts", Type: db.IndexFieldNumeric, Sortable: true}, "ts NUMERIC SORTABLE"},
		{db.IndexField{Name: "title", Type: db.IndexFieldText}, "title TEXT"},
		{db.IndexField{Name: "dept", Type: db.IndexFieldTag, TagSeparator: "|"}, "dept TAG SEPARATOR |"},
		{db.IndexField{Name: "code", Alias: "c", Type: db.IndexFieldTag, TagCaseSensitive: true}, "code AS c TAG CASESENSITIVE"},
	}
	for _, tc := range tests {
		args, err := buildFieldArgs(&tc.field)
		if err != nil {
			t.Fatalf("%s: %v", tc.field.Name, err)
		}
		if got := strings.Join(args, " "); got != tc.want {
			t.Errorf("got %q, want %q", got, tc.want)
		}
	}

	if _, err := buildFieldArgs(&db.IndexField{Name: "x", Type: db.IndexFieldType(99)}); err == nil {
		t.Error("expected error for unknown type")
	}
}

// --- search.go tests ---

func TestSearch_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match(
			"FT.SEARCH", "idx", "@severity:{High | Critical}",
			"SORTBY", "identified_at", "DESC",
			"LIMIT", "0", "500",
			"DIALECT", "2",
		)).
		Return(mock.Result(mock.RedisArray(
			mock.RedisInt64(2),
			mock.RedisString("askdex:finding:F-1"),
			mock.RedisArray(mock.RedisString("title"), mock.RedisString("Blocked exit")),
			mock.RedisString("askdex:finding:F-2"),
			mock.RedisArray(mock.RedisString("title"), mock.RedisString("Loose rail")),
		)))

	s := NewStoreForTest(c)
	result, err := s.Search(context.Background(), &db.SearchQuery{
		Index:      "idx",
		Clauses:    []db.Clause{db.Tag("severity", "High", "Critical")},
		SortBy:     "identified_at",
		Descending: true,
		Limit:      500,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Total != 2 || len(result.Entries) != 2 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Entries[1].Fields["title"] != "Loose rail" {
		t.Errorf("fields = %v", result.Entries[1].Fields)
	}
}

func TestSearch_Empty(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool { return cmd[0] == "FT.SEARCH" && cmd[2] == "*" })).
		Return(mock.Result(mock.RedisArray(mock.RedisInt64(0))))

	s := NewStoreForTest(c)
	result, err := s.Search(context.Background(), &db.SearchQuery{Index: "idx", Limit: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Total != 0 || len(result.Entries) != 0 {
		t.Errorf("expected empty result, got %+v", result)
	}
}

func TestSearch_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool { return cmd[0] == "FT.SEARCH" })).
		Return(mock.ErrorResult(context.DeadlineExceeded))

	s := NewStoreForTest(c)
	_, err := s.Search(context.Background(), &db.SearchQuery{Index: "idx", Limit: 10})
	if !isDBError(err) || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected wrapped db.Error, got %v", err)
	}
}

func TestSearch_Validation(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)
	s := NewStoreForTest(c)

	if _, err := s.Search(context.Background(), &db.SearchQuery{Limit: 1}); err == nil {
		t.Error("expected error for missing index")
	}
	if _, err := s.Search(context.Background(), &db.SearchQuery{Index: "idx"}); err == nil {
		t.Error("expected error for zero limit")
	}
}

func TestBuildQuery(t *testing.T) {
	lo, hi := 1704067200.0, 1735689599.0
	year := 2024.0

	tests := []struct {
		name    string
		clauses []db.Clause
		want    string
	}{
		{"empty", nil, "*"},
		{"empty values dropped", []db.Clause{db.Tag("severity"), db.Text("title")}, "*"},
		{"tag set", []db.Clause{db.Tag("status", "Open", "In Progress")}, `@status:{Open | In\ Progress}`},
		{"tag escaping", []db.Clause{db.Tag("department", "Food & Beverage")}, `@department:{Food\ \&\ Beverage}`},
		{"exact year", []db.Clause{db.Range("year", &year, &year)}, "@year:[2024 2024]"},
		{"date range", []db.Clause{db.Range("identified_at", &lo, &hi)}, "@identified_at:[1704067200 1735689599]"},
		{"open range", []db.Clause{db.Range("identified_at", &lo, nil)}, "@identified_at:[1704067200 +inf]"},
		{"keywords any field", []db.Clause{db.Text("", "fire", "exit")}, "(fire | exit)"},
		{"keywords one field", []db.Clause{db.Text("title", "e-mail")}, `@title:(e\-mail)`},
		{"conjunction", []db.Clause{
			db.Range("year", &year, &year),
			db.Tag("category", "Hotel"),
		}, "@year:[2024 2024] @category:{Hotel}"},
	}
	for _, tc := range tests {
		if got := BuildQuery(tc.clauses); got != tc.want {
			t.Errorf("%s: got %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestEscapeQuery(t *testing.T) {
	input := `hello "world" @user {tag}`
	escaped := escapeQuery(input)
	expected := `hello \"world\" \@user \{tag\}`
	if escaped != expected {
		t.Errorf("expected %q, got %q", expected, escaped)
	}
}

// --- helpers ---

// isDBError is a test helper for checking wrapped db.Error.
func isDBError(err error) bool {
	var dbErr *db.Error
	return errors.As(err, &dbErr)
}
